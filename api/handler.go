package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/models"
	"github.com/Gittester123213asdasd/earth-clicker/service"
)

type Handler struct {
	Service      *service.ClickService
	StatsService *service.StatsService
	Resolver     *service.VisitorResolver
	Limiter      *service.RateLimiter
	Presence     *service.PresenceTracker
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/clicks", h.HandleSubmitBatch)
	router.GET("/counter", h.HandleGetCounter)
	router.GET("/leaderboard", h.HandleGetLeaderboard)
	router.GET("/stats", h.HandleGetUserStats)
	router.GET("/rank", h.HandleGetUserCountryRank)
	router.GET("/online", h.HandleGetOnlineUsers)
	router.POST("/heartbeat", h.HandleHeartbeat)
}

func (h *Handler) HandleSubmitBatch(c *gin.Context) {
	var request models.SubmitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	identityKey, country := h.Resolver.Resolve(c.Request, request.Country)
	now := time.Now()

	if !h.Limiter.Admit(identityKey, now) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": service.ErrRateLimited.Error()})
		return
	}

	if err := h.Service.ApplyBatch(c.Request.Context(), identityKey, country, request.Count); err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidAmount.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     errors.Wrapf(err, "failed to submit batch of %d", request.Count).Error(),
			"retryable": true,
		})
		return
	}

	h.Presence.Heartbeat(identityKey, now)

	c.JSON(http.StatusOK, models.SubmitResponse{Success: true, DetectedCountry: country})
}

func (h *Handler) HandleGetCounter(c *gin.Context) {
	total, err := h.StatsService.GlobalCounter(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalClicks": total})
}

func (h *Handler) HandleGetLeaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := h.StatsService.TopCountries(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) HandleGetUserStats(c *gin.Context) {
	identityKey, _ := h.Resolver.Resolve(c.Request, "")

	visitor, err := h.StatsService.UserStats(c.Request.Context(), identityKey)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identityKey": visitor.IdentityKey,
		"totalClicks": visitor.TotalClicks,
		"country":     visitor.Country,
	})
}

func (h *Handler) HandleGetUserCountryRank(c *gin.Context) {
	identityKey, _ := h.Resolver.Resolve(c.Request, "")

	visitor, err := h.StatsService.UserStats(c.Request.Context(), identityKey)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}

	rank, err := h.StatsService.CountryRank(c.Request.Context(), visitor.Country)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
		return
	}
	c.JSON(http.StatusOK, rank)
}

func (h *Handler) HandleGetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.Presence.OnlineCount(time.Now())})
}

// HandleHeartbeat records presence for the caller and, like the read
// endpoint, returns the current online count. The body may carry an explicit
// connection key; otherwise the resolved identity is used.
func (h *Handler) HandleHeartbeat(c *gin.Context) {
	var request struct {
		Key string `json:"key"`
	}
	_ = c.ShouldBindJSON(&request)

	key := request.Key
	if key == "" {
		key, _ = h.Resolver.Resolve(c.Request, "")
	}

	now := time.Now()
	h.Presence.Heartbeat(key, now)
	c.JSON(http.StatusOK, gin.H{"online": h.Presence.OnlineCount(now)})
}
