package repository

import (
	"context"
	"database/sql"

	"credbroker/internal/model"
)

// StatsRepo aggregates counts across the broker's tables.
type StatsRepo struct{ DB *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{DB: db} }

// Counts runs one COUNT per table. The counts are not taken in a single
// snapshot; the dashboard tolerates slight skew between them.
func (r *StatsRepo) Counts(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	for _, c := range []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM users", &s.TotalUsers},
		{"SELECT COUNT(*) FROM allowed_users WHERE is_active=1", &s.WhitelistedUsers},
		{"SELECT COUNT(*) FROM user_sessions WHERE is_active=1 AND expires_at > UTC_TIMESTAMP()", &s.ActiveSessions},
		{"SELECT COUNT(*) FROM oauth_tokens WHERE is_revoked=0", &s.ActiveTokens},
	} {
		if err := r.DB.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return model.Stats{}, err
		}
	}
	return s, nil
}
