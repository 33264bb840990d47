// Package client is the submitting side of the clicker: a typed HTTP client
// for the API and a batching accumulator that turns many local clicks into
// one periodic submission.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/models"
)

// Client talks to the clicker API. Country, when set, is forwarded with each
// batch so the server can skip its own geolocation; UserID, when set, pins
// the identity to a logged-in user instead of the caller's address.
type Client struct {
	BaseURL string
	Country string
	UserID  string

	HTTP *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SubmitBatch sends one aggregated "add count" request.
func (c *Client) SubmitBatch(ctx context.Context, count int64) (models.SubmitResponse, error) {
	var response models.SubmitResponse
	request := models.SubmitRequest{Count: count, Country: c.Country}
	err := c.do(ctx, http.MethodPost, "/clicks", request, &response)
	if err != nil {
		return response, errors.Wrapf(err, "failed to submit batch of %d", count)
	}
	return response, nil
}

func (c *Client) GlobalCounter(ctx context.Context) (int64, error) {
	var response struct {
		TotalClicks int64 `json:"totalClicks"`
	}
	if err := c.do(ctx, http.MethodGet, "/counter", nil, &response); err != nil {
		return 0, errors.Wrap(err, "failed to fetch global counter")
	}
	return response.TotalClicks, nil
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	path := "/leaderboard"
	if limit > 0 {
		path = fmt.Sprintf("/leaderboard?limit=%d", limit)
	}
	var entries []models.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, errors.Wrap(err, "failed to fetch leaderboard")
	}
	return entries, nil
}

func (c *Client) UserStats(ctx context.Context) (models.Visitor, error) {
	var visitor models.Visitor
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &visitor); err != nil {
		return visitor, errors.Wrap(err, "failed to fetch user stats")
	}
	return visitor, nil
}

func (c *Client) UserCountryRank(ctx context.Context) (models.CountryRank, error) {
	var rank models.CountryRank
	if err := c.do(ctx, http.MethodGet, "/rank", nil, &rank); err != nil {
		return rank, errors.Wrap(err, "failed to fetch country rank")
	}
	return rank, nil
}

func (c *Client) OnlineUsers(ctx context.Context) (int, error) {
	var response struct {
		Online int `json:"online"`
	}
	if err := c.do(ctx, http.MethodGet, "/online", nil, &response); err != nil {
		return 0, errors.Wrap(err, "failed to fetch online users")
	}
	return response.Online, nil
}

// Heartbeat reports presence under the given connection key and returns the
// server's current online count.
func (c *Client) Heartbeat(ctx context.Context, key string) (int, error) {
	request := struct {
		Key string `json:"key"`
	}{Key: key}
	var response struct {
		Online int `json:"online"`
	}
	if err := c.do(ctx, http.MethodPost, "/heartbeat", request, &response); err != nil {
		return 0, errors.Wrap(err, "failed to send heartbeat")
	}
	return response.Online, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	request.Header.Set("Content-Type", "application/json")
	if c.UserID != "" {
		request.Header.Set("X-User-ID", c.UserID)
	}

	response, err := c.HTTP.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(response.Body).Decode(&failure)
		if failure.Error != "" {
			return errors.Errorf("%s %s: %s (status %d)", method, path, failure.Error, response.StatusCode)
		}
		return errors.Errorf("%s %s: unexpected status %d", method, path, response.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}
