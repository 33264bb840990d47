package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gittester123213asdasd/earth-clicker/api"
	"github.com/Gittester123213asdasd/earth-clicker/config"
	"github.com/Gittester123213asdasd/earth-clicker/db"
	"github.com/Gittester123213asdasd/earth-clicker/service"
)

const (
	rateLimitCeiling = 20
	rateLimitWindow  = time.Second
	presenceTTL      = 30 * time.Second
)

func main() {

	appConfig := config.NewConfig()

	database, err := db.NewDB(appConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	redisClient := db.NewRedisClient(appConfig)

	repo := &db.PSQLStatsRepository{DB: database}
	clickService := service.NewClickService(repo, redisClient.Client)
	statsService := service.NewStatsService(repo, redisClient.Client)

	limiter := service.NewRateLimiter(rateLimitCeiling, rateLimitWindow)
	defer limiter.Stop()

	handler := &api.Handler{
		Service:      clickService,
		StatsService: statsService,
		Resolver:     service.NewVisitorResolver(appConfig.GeoLookupURL),
		Limiter:      limiter,
		Presence:     service.NewPresenceTracker(presenceTTL),
	}

	r := gin.Default()
	handler.RegisterRoutes(r)

	if err := r.Run(":" + appConfig.HTTPPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
