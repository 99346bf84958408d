package threat

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL alert archive.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SaveAlert records a newly raised alert. Re-raising the same alert ID
// refreshes its timestamp and severity.
func (r *PostgresRepository) SaveAlert(ctx context.Context, alert Alert) error {
	query := `
		INSERT INTO threat_alerts (
			alert_id, raised_at, lat, lng, category, title,
			severity_level, severity_score, severity_confidence,
			recommendation, rationale, dismissed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (alert_id) DO UPDATE SET
			raised_at = EXCLUDED.raised_at,
			severity_level = EXCLUDED.severity_level,
			severity_score = EXCLUDED.severity_score,
			severity_confidence = EXCLUDED.severity_confidence
	`

	_, err := r.pool.Exec(ctx, query,
		alert.ID,
		alert.Timestamp,
		alert.Location.Lat,
		alert.Location.Lng,
		string(alert.Category),
		alert.Title,
		string(alert.Severity.Level),
		alert.Severity.Score,
		alert.Severity.Confidence,
		alert.Recommendation,
		alert.Rationale,
		alert.Dismissed,
	)
	return err
}

// MarkDismissed records that an alert was dismissed.
func (r *PostgresRepository) MarkDismissed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE threat_alerts SET dismissed = TRUE WHERE alert_id = $1`, id)
	return err
}
