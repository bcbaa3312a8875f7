package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ,
	duration     BIGINT NOT NULL DEFAULT 0,
	peak_viewers INT NOT NULL DEFAULT 0,
	total_views  INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS streams_status_idx ON streams (status);
`

// PostgresStreamRepository is the durable side of the stream record. Live
// operations never wait on it: callers write through the orchestrator's
// best-effort path.
type PostgresStreamRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStreamRepository(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PostgresStreamRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Postgres")
	}
	return &PostgresStreamRepository{pool: pool}, nil
}

var _ ports.StreamRepository = (*PostgresStreamRepository)(nil)

func (r *PostgresStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	// Upsert: the best-effort writer may retry a create after a partial
	// failure.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO streams (id, title, owner_id, status, created_at, started_at, ended_at, duration, peak_viewers, total_views)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration = EXCLUDED.duration,
			peak_viewers = EXCLUDED.peak_viewers,
			total_views = EXCLUDED.total_views`,
		stream.ID, stream.Title, stream.OwnerID, stream.Status, stream.CreatedAt,
		stream.StartedAt, stream.EndedAt, stream.Duration, stream.PeakViewers, stream.TotalViews,
	)
	if err != nil {
		return fmt.Errorf("insert stream: %w", err)
	}
	return nil
}

func (r *PostgresStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.Stream, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, title, owner_id, status, created_at, started_at, ended_at, duration, peak_viewers, total_views
		FROM streams WHERE id = $1`, id)

	stream, err := scanStream(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select stream: %w", err)
	}
	return stream, nil
}

func (r *PostgresStreamRepository) Update(ctx context.Context, stream *domain.Stream) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE streams SET
			title = $2, status = $3, started_at = $4, ended_at = $5,
			duration = $6, peak_viewers = $7, total_views = $8
		WHERE id = $1`,
		stream.ID, stream.Title, stream.Status, stream.StartedAt, stream.EndedAt,
		stream.Duration, stream.PeakViewers, stream.TotalViews,
	)
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The create may still be in flight; upsert keeps them convergent.
		return r.Create(ctx, stream)
	}
	return nil
}

func (r *PostgresStreamRepository) ListLive(ctx context.Context) ([]*domain.Stream, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, owner_id, status, created_at, started_at, ended_at, duration, peak_viewers, total_views
		FROM streams WHERE status = $1 ORDER BY created_at DESC`, domain.StreamLive)
	if err != nil {
		return nil, fmt.Errorf("list live streams: %w", err)
	}
	defer rows.Close()

	var out []*domain.Stream
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		out = append(out, stream)
	}
	return out, rows.Err()
}

func (r *PostgresStreamRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresStreamRepository) Close() {
	r.pool.Close()
}

func scanStream(row pgx.Row) (*domain.Stream, error) {
	var s domain.Stream
	err := row.Scan(
		&s.ID, &s.Title, &s.OwnerID, &s.Status, &s.CreatedAt,
		&s.StartedAt, &s.EndedAt, &s.Duration, &s.PeakViewers, &s.TotalViews,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
