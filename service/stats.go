package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/db"
	"github.com/Gittester123213asdasd/earth-clicker/models"
)

const (
	globalCounterCacheKey = "cache:global"

	globalCounterCacheTTL = 2 * time.Second
	leaderboardCacheTTL   = 30 * time.Second
	countryRankCacheTTL   = 60 * time.Second

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// StatsService is the read side. The leaderboard and rank queries are
// fast-changing aggregates, so they are served cache-aside from Redis with
// short TTLs; a cache fault degrades to the store, never to an error.
type StatsService struct {
	Repo  db.StatsRepository
	Redis *redis.Client
}

func NewStatsService(repo db.StatsRepository, redisClient *redis.Client) *StatsService {
	return &StatsService{Repo: repo, Redis: redisClient}
}

func (s *StatsService) GlobalCounter(ctx context.Context) (int64, error) {
	var cached int64
	if s.cacheGet(ctx, globalCounterCacheKey, &cached) {
		return cached, nil
	}

	counter, err := s.Repo.GetGlobalCounter(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch global counter")
	}

	s.cacheSet(ctx, globalCounterCacheKey, counter.TotalClicks, globalCounterCacheTTL)
	return counter.TotalClicks, nil
}

// TopCountries returns the ranked per-country totals. limit is clamped to
// [1, 100]; non-positive values fall back to the default of 10.
func (s *StatsService) TopCountries(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	cacheKey := fmt.Sprintf("cache:leaderboard:%d", limit)
	var cached []models.LeaderboardEntry
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	entries, err := s.Repo.GetCountryLeaderboard(ctx, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch leaderboard (limit %d)", limit)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.cacheSet(ctx, cacheKey, entries, leaderboardCacheTTL)
	return entries, nil
}

// UserStats returns the stored visitor, or a zero-valued visitor with
// country "UN" when the identity has never submitted.
func (s *StatsService) UserStats(ctx context.Context, identityKey string) (models.Visitor, error) {
	visitor, err := s.Repo.GetVisitor(ctx, identityKey)
	if err != nil {
		return models.Visitor{}, errors.Wrapf(err, "failed to fetch stats for %q", identityKey)
	}
	if visitor == nil {
		return models.Visitor{IdentityKey: identityKey, Country: UnknownCountry}, nil
	}
	return *visitor, nil
}

// CountryRank returns the country's leaderboard position; rank 0 means the
// country has no recorded clicks yet.
func (s *StatsService) CountryRank(ctx context.Context, country string) (models.CountryRank, error) {
	if code, ok := normalizeCountry(country); ok {
		country = code
	} else {
		country = UnknownCountry
	}

	cacheKey := "cache:rank:" + country
	var cached models.CountryRank
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	rank, err := s.Repo.GetCountryRank(ctx, country)
	if err != nil {
		return models.CountryRank{}, errors.Wrapf(err, "failed to fetch rank for country %q", country)
	}

	result := models.CountryRank{Rank: rank, Country: country}
	s.cacheSet(ctx, cacheKey, result, countryRankCacheTTL)
	return result, nil
}

func (s *StatsService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.Redis == nil {
		return false
	}
	raw, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("Cache read failed for %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Printf("Cache entry %s is corrupt, ignoring: %v", key, err)
		return false
	}
	return true
}

func (s *StatsService) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("Cache encode failed for %s: %v", key, err)
		return
	}
	if err := s.Redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Printf("Cache write failed for %s: %v", key, err)
	}
}
