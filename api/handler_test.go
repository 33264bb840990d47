package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gittester123213asdasd/earth-clicker/models"
	"github.com/Gittester123213asdasd/earth-clicker/service"
)

// stubRepo keeps counters in memory with the same merge semantics as the
// Postgres repository.
type stubRepo struct {
	mu       sync.Mutex
	global   int64
	visitors map[string]*models.Visitor
}

func newStubRepo() *stubRepo {
	return &stubRepo{visitors: make(map[string]*models.Visitor)}
}

func (r *stubRepo) IncrementGlobal(ctx context.Context, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global += amount
	return nil
}

func (r *stubRepo) UpsertVisitor(ctx context.Context, identityKey, country string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitor, ok := r.visitors[identityKey]
	if !ok {
		visitor = &models.Visitor{IdentityKey: identityKey}
		r.visitors[identityKey] = visitor
	}
	visitor.TotalClicks += amount
	visitor.Country = country
	return nil
}

func (r *stubRepo) GetGlobalCounter(ctx context.Context) (models.GlobalCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.GlobalCounter{ID: 1, TotalClicks: r.global}, nil
}

func (r *stubRepo) GetVisitor(ctx context.Context, identityKey string) (*models.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visitor, ok := r.visitors[identityKey]
	if !ok {
		return nil, nil
	}
	copied := *visitor
	return &copied, nil
}

func (r *stubRepo) leaderboard() []models.LeaderboardEntry {
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

func (r *stubRepo) GetCountryLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.leaderboard()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *stubRepo) GetCountryRank(ctx context.Context, country string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.leaderboard() {
		if entry.CountryCode == country {
			return i + 1, nil
		}
	}
	return 0, nil
}

func setupRouter(t *testing.T, rateLimit int) (*gin.Engine, *stubRepo, *service.RateLimiter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newStubRepo()
	limiter := service.NewRateLimiter(rateLimit, time.Second)
	t.Cleanup(limiter.Stop)

	handler := &Handler{
		Service:      service.NewClickService(repo, nil),
		StatsService: service.NewStatsService(repo, nil),
		Resolver:     service.NewVisitorResolver(""),
		Limiter:      limiter,
		Presence:     service.NewPresenceTracker(30 * time.Second),
	}

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, repo, limiter
}

func performJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	request.RemoteAddr = "10.0.0.9:40000"
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestSubmitBatchEndToEnd(t *testing.T) {
	router, _, _ := setupRouter(t, 20)
	fromDE := map[string]string{"X-Forwarded-For": "198.51.100.77"}

	// Fresh identity submits a batch of 7 with client-detected country DE.
	response := performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: 7, Country: "DE"}, fromDE)
	require.Equal(t, http.StatusOK, response.Code)

	var submit models.SubmitResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &submit))
	assert.True(t, submit.Success)
	assert.Equal(t, "DE", submit.DetectedCountry)

	// Global counter reflects the batch.
	response = performJSON(router, http.MethodGet, "/counter", nil, nil)
	require.Equal(t, http.StatusOK, response.Code)
	var counter struct {
		TotalClicks int64 `json:"totalClicks"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &counter))
	assert.Equal(t, int64(7), counter.TotalClicks)

	// Leaderboard includes DE with 7 clicks.
	response = performJSON(router, http.MethodGet, "/leaderboard?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, response.Code)
	var entries []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.LeaderboardEntry{Rank: 1, CountryCode: "DE", TotalClicks: 7, UserCount: 1}, entries[0])

	// The submitting identity sees its own stats.
	response = performJSON(router, http.MethodGet, "/stats", nil, fromDE)
	require.Equal(t, http.StatusOK, response.Code)
	var stats struct {
		TotalClicks int64  `json:"totalClicks"`
		Country     string `json:"country"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &stats))
	assert.Equal(t, int64(7), stats.TotalClicks)
	assert.Equal(t, "DE", stats.Country)

	// And its country rank.
	response = performJSON(router, http.MethodGet, "/rank", nil, fromDE)
	require.Equal(t, http.StatusOK, response.Code)
	var rank models.CountryRank
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &rank))
	assert.Equal(t, models.CountryRank{Rank: 1, Country: "DE"}, rank)

	// A submission counts as presence.
	response = performJSON(router, http.MethodGet, "/online", nil, nil)
	require.Equal(t, http.StatusOK, response.Code)
	var online struct {
		Online int `json:"online"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &online))
	assert.Equal(t, 1, online.Online)
}

func TestSubmitBatchRejectsInvalidAmount(t *testing.T) {
	router, repo, _ := setupRouter(t, 20)

	response := performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: 0, Country: "DE"}, nil)
	assert.Equal(t, http.StatusBadRequest, response.Code)

	response = performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: -5}, nil)
	assert.Equal(t, http.StatusBadRequest, response.Code)

	assert.Zero(t, func() int64 {
		counter, _ := repo.GetGlobalCounter(context.Background())
		return counter.TotalClicks
	}())
}

func TestSubmitBatchRateLimited(t *testing.T) {
	router, _, _ := setupRouter(t, 2)
	fromDE := map[string]string{"X-Forwarded-For": "198.51.100.77"}

	for i := 0; i < 2; i++ {
		response := performJSON(router, http.MethodPost, "/clicks",
			models.SubmitRequest{Count: 1, Country: "DE"}, fromDE)
		require.Equal(t, http.StatusOK, response.Code)
	}

	response := performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: 1, Country: "DE"}, fromDE)
	assert.Equal(t, http.StatusTooManyRequests, response.Code)

	// A different identity is not affected.
	response = performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: 1, Country: "FR"},
		map[string]string{"X-Forwarded-For": "203.0.113.5"})
	assert.Equal(t, http.StatusOK, response.Code)
}

func TestLeaderboardRejectsMalformedLimit(t *testing.T) {
	router, _, _ := setupRouter(t, 20)

	response := performJSON(router, http.MethodGet, "/leaderboard?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestLeaderboardEmptyStore(t *testing.T) {
	router, _, _ := setupRouter(t, 20)

	response := performJSON(router, http.MethodGet, "/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, "[]", response.Body.String())
}

func TestStatsUnknownVisitorIsZeroValued(t *testing.T) {
	router, _, _ := setupRouter(t, 20)

	response := performJSON(router, http.MethodGet, "/stats", nil,
		map[string]string{"X-Forwarded-For": "192.0.2.200"})
	require.Equal(t, http.StatusOK, response.Code)

	var stats struct {
		TotalClicks int64  `json:"totalClicks"`
		Country     string `json:"country"`
	}
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalClicks)
	assert.Equal(t, "UN", stats.Country)
}

func TestHeartbeatEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t, 20)

	var online struct {
		Online int `json:"online"`
	}

	response := performJSON(router, http.MethodPost, "/heartbeat",
		map[string]string{"key": "conn-1"}, nil)
	require.Equal(t, http.StatusOK, response.Code)
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &online))
	assert.Equal(t, 1, online.Online)

	// A second distinct key raises the count; repeating a key does not.
	response = performJSON(router, http.MethodPost, "/heartbeat",
		map[string]string{"key": "conn-2"}, nil)
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &online))
	assert.Equal(t, 2, online.Online)

	response = performJSON(router, http.MethodPost, "/heartbeat",
		map[string]string{"key": "conn-1"}, nil)
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &online))
	assert.Equal(t, 2, online.Online)
}

func TestAuthenticatedIdentityWinsOverAddress(t *testing.T) {
	router, repo, _ := setupRouter(t, 20)

	response := performJSON(router, http.MethodPost, "/clicks",
		models.SubmitRequest{Count: 3, Country: "GB"},
		map[string]string{"X-User-ID": "42", "X-Forwarded-For": "198.51.100.77"})
	require.Equal(t, http.StatusOK, response.Code)

	visitor, err := repo.GetVisitor(context.Background(), "user:42")
	require.NoError(t, err)
	require.NotNil(t, visitor)
	assert.Equal(t, int64(3), visitor.TotalClicks)
}
