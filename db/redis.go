package db

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/Gittester123213asdasd/earth-clicker/config"
)

var ctx = context.Background()

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(config *config.Config) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Unable to connect to Redis: %v", err)
	}

	log.Println("Connected to Redis successfully")
	return &RedisClient{Client: client}
}
