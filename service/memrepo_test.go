package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/models"
)

// memRepo mimics the Postgres repository semantics in memory: atomic
// upserts under a mutex and a leaderboard derived by grouping visitors.
type memRepo struct {
	mu       sync.Mutex
	global   int64
	visitors map[string]*models.Visitor

	failGlobal  bool
	failVisitor bool
}

func newMemRepo() *memRepo {
	return &memRepo{visitors: make(map[string]*models.Visitor)}
}

func (r *memRepo) IncrementGlobal(ctx context.Context, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGlobal {
		return errors.New("storage unavailable")
	}
	r.global += amount
	return nil
}

func (r *memRepo) UpsertVisitor(ctx context.Context, identityKey, country string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failVisitor {
		return errors.New("storage unavailable")
	}
	visitor, ok := r.visitors[identityKey]
	if !ok {
		visitor = &models.Visitor{IdentityKey: identityKey}
		r.visitors[identityKey] = visitor
	}
	visitor.TotalClicks += amount
	visitor.Country = country
	visitor.UpdatedAt = time.Now()
	return nil
}

func (r *memRepo) GetGlobalCounter(ctx context.Context) (models.GlobalCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.GlobalCounter{ID: 1, TotalClicks: r.global}, nil
}

func (r *memRepo) GetVisitor(ctx context.Context, identityKey string) (*models.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitor, ok := r.visitors[identityKey]
	if !ok {
		return nil, nil
	}
	copied := *visitor
	return &copied, nil
}

func (r *memRepo) aggregate() []models.LeaderboardEntry {
	totals := make(map[string]*models.LeaderboardEntry)
	for _, visitor := range r.visitors {
		entry, ok := totals[visitor.Country]
		if !ok {
			entry = &models.LeaderboardEntry{CountryCode: visitor.Country}
			totals[visitor.Country] = entry
		}
		entry.TotalClicks += visitor.TotalClicks
		entry.UserCount++
	}

	entries := make([]models.LeaderboardEntry, 0, len(totals))
	for _, entry := range totals {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalClicks != entries[j].TotalClicks {
			return entries[i].TotalClicks > entries[j].TotalClicks
		}
		return entries[i].CountryCode < entries[j].CountryCode
	})
	return entries
}

func (r *memRepo) GetCountryLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.aggregate()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *memRepo) GetCountryRank(ctx context.Context, country string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.aggregate() {
		if entry.CountryCode == country {
			return i + 1, nil
		}
	}
	return 0, nil
}
