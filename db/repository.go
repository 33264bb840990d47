package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/Gittester123213asdasd/earth-clicker/models"
)

type StatsRepository interface {
	IncrementGlobal(ctx context.Context, amount int64) error
	UpsertVisitor(ctx context.Context, identityKey, country string, amount int64) error
	GetGlobalCounter(ctx context.Context) (models.GlobalCounter, error)
	GetVisitor(ctx context.Context, identityKey string) (*models.Visitor, error)
	GetCountryLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetCountryRank(ctx context.Context, country string) (int, error)
}

type PSQLStatsRepository struct {
	DB *DB
}

// IncrementGlobal adds amount to the singleton counter row. The upsert keeps
// the increment atomic under concurrent callers; the row is seeded by
// EnsureSchema so the conflict branch is the normal path.
func (r *PSQLStatsRepository) IncrementGlobal(ctx context.Context, amount int64) error {
	query := `INSERT INTO global_counter (id, total_clicks, updated_at)
              VALUES (1, $1, now())
              ON CONFLICT (id)
              DO UPDATE SET total_clicks = global_counter.total_clicks + EXCLUDED.total_clicks,
                            updated_at = now()`
	_, err := r.DB.Conn.ExecContext(ctx, query, amount)
	if err != nil {
		return errors.Wrapf(err, "failed to increment global counter by %d", amount)
	}
	return nil
}

// UpsertVisitor creates the visitor with amount clicks or adds amount to the
// existing row, overwriting the stored country with the latest one.
func (r *PSQLStatsRepository) UpsertVisitor(ctx context.Context, identityKey, country string, amount int64) error {
	query := `INSERT INTO visitors (identity_key, country, total_clicks, updated_at)
              VALUES ($1, $2, $3, now())
              ON CONFLICT (identity_key)
              DO UPDATE SET total_clicks = visitors.total_clicks + EXCLUDED.total_clicks,
                            country = EXCLUDED.country,
                            updated_at = now()`
	_, err := r.DB.Conn.ExecContext(ctx, query, identityKey, country, amount)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert visitor %q with %d clicks", identityKey, amount)
	}
	return nil
}

func (r *PSQLStatsRepository) GetGlobalCounter(ctx context.Context) (models.GlobalCounter, error) {
	var counter models.GlobalCounter
	query := `SELECT id, total_clicks, updated_at FROM global_counter WHERE id = 1`
	err := r.DB.Conn.QueryRowContext(ctx, query).Scan(&counter.ID, &counter.TotalClicks, &counter.UpdatedAt)
	if err == sql.ErrNoRows {
		counter.ID = 1
		return counter, nil
	}
	if err != nil {
		return counter, errors.Wrap(err, "failed to fetch global counter")
	}
	return counter, nil
}

func (r *PSQLStatsRepository) GetVisitor(ctx context.Context, identityKey string) (*models.Visitor, error) {
	var visitor models.Visitor
	query := `SELECT identity_key, display_name, country, total_clicks, updated_at
              FROM visitors WHERE identity_key = $1`
	err := r.DB.Conn.QueryRowContext(ctx, query, identityKey).Scan(
		&visitor.IdentityKey, &visitor.DisplayName, &visitor.Country, &visitor.TotalClicks, &visitor.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch visitor %q", identityKey)
	}
	return &visitor, nil
}

// GetCountryLeaderboard derives per-country totals by grouping visitors.
// Ties are broken by country code ascending so repeated queries over equal
// scores stay stable. Rank is filled in by the caller after truncation.
func (r *PSQLStatsRepository) GetCountryLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `SELECT country, SUM(total_clicks) AS total, COUNT(*) AS users
              FROM visitors
              GROUP BY country
              ORDER BY total DESC, country ASC
              LIMIT $1`
	rows, err := r.DB.Conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch country leaderboard (limit %d)", limit)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.CountryCode, &entry.TotalClicks, &entry.UserCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan leaderboard row")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read leaderboard rows")
	}

	return entries, nil
}

// GetCountryRank returns the 1-based leaderboard position of country, or 0
// when no visitor from that country exists yet.
func (r *PSQLStatsRepository) GetCountryRank(ctx context.Context, country string) (int, error) {
	query := `SELECT pos FROM (
                SELECT country,
                       ROW_NUMBER() OVER (ORDER BY SUM(total_clicks) DESC, country ASC) AS pos
                FROM visitors
                GROUP BY country
              ) ranked WHERE country = $1`
	var rank int
	err := r.DB.Conn.QueryRowContext(ctx, query, country).Scan(&rank)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to fetch rank for country %q", country)
	}
	return rank, nil
}
