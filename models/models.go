package models

import "time"

// GlobalCounter is the singleton row holding the worldwide click total.
type GlobalCounter struct {
	ID          int       `json:"id"`
	TotalClicks int64     `json:"totalClicks"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Visitor is one coarse identity (IP-derived or login-derived) and its
// accumulated clicks. Country holds the latest submitted country code.
type Visitor struct {
	IdentityKey string    `json:"identityKey"`
	DisplayName string    `json:"displayName"`
	Country     string    `json:"country"`
	TotalClicks int64     `json:"totalClicks"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LeaderboardEntry is one row of the per-country ranking.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	CountryCode string `json:"countryCode"`
	TotalClicks int64  `json:"totalClicks"`
	UserCount   int    `json:"userCount"`
}

// CountryRank is a single country's position in the leaderboard.
type CountryRank struct {
	Rank    int    `json:"rank"`
	Country string `json:"country"`
}

// SubmitRequest is the body of a batch submission.
type SubmitRequest struct {
	Count   int64  `json:"count"`
	Country string `json:"country,omitempty"`
}

// SubmitResponse acknowledges a batch submission.
type SubmitResponse struct {
	Success         bool   `json:"success"`
	DetectedCountry string `json:"detectedCountry,omitempty"`
}
