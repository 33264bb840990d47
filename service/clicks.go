package service

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/db"
)

var (
	// ErrInvalidAmount rejects non-positive batch amounts before any store access.
	ErrInvalidAmount = errors.New("batch amount must be a positive integer")
	// ErrRateLimited is returned when an identity exceeds its submission ceiling.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ClickService is the write side: it validates a batch and merges it into
// the shared counters through the repository's atomic upserts.
type ClickService struct {
	Repo  db.StatsRepository
	Redis *redis.Client
}

func NewClickService(repo db.StatsRepository, redisClient *redis.Client) *ClickService {
	return &ClickService{Repo: repo, Redis: redisClient}
}

// ApplyBatch adds amount to the visitor's total and the global total. Each
// write is individually atomic; they are not wrapped in one transaction.
// The visitor row goes first so a failure there commits nothing. A global
// increment failure after a visitor success is logged loudly: the country
// totals derive from visitor rows, so only the global counter can lag, and
// it only lags low.
func (s *ClickService) ApplyBatch(ctx context.Context, identityKey, country string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if code, ok := normalizeCountry(country); ok {
		country = code
	} else {
		country = UnknownCountry
	}

	if err := s.Repo.UpsertVisitor(ctx, identityKey, country, amount); err != nil {
		return errors.Wrapf(err, "failed to apply batch of %d for %q", amount, identityKey)
	}

	if err := s.Repo.IncrementGlobal(ctx, amount); err != nil {
		log.Printf("ALERT: counters diverged: visitor %q gained %d clicks but global increment failed: %v",
			identityKey, amount, err)
		return errors.Wrapf(err, "failed to apply batch of %d for %q", amount, identityKey)
	}

	s.invalidateCounterCache(ctx)
	return nil
}

// invalidateCounterCache drops the cached global counter so read-side polls
// converge quickly after a flush. The leaderboard cache rides out its own
// TTL instead.
func (s *ClickService) invalidateCounterCache(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, globalCounterCacheKey).Err(); err != nil && err != redis.Nil {
		log.Printf("Failed to invalidate counter cache: %v", err)
	}
}
