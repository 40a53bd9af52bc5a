package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"renderfarm/internal/models"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// FrameRepository records where each rendered frame was stored. Only the
// latest upload of a frame is kept.
type FrameRepository struct {
	db DB
}

func NewFrameRepository(db DB) *FrameRepository {
	return &FrameRepository{db: db}
}

const createFrameResults = `
	CREATE TABLE IF NOT EXISTS frame_results (
		id          UUID PRIMARY KEY,
		frame_id    BIGINT NOT NULL UNIQUE,
		worker_id   TEXT NOT NULL,
		provider    TEXT NOT NULL,
		location    TEXT NOT NULL,
		size_bytes  BIGINT NOT NULL,
		stored_at   TIMESTAMPTZ NOT NULL
	)`

func (r *FrameRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, createFrameResults)
	return translate("repositories.EnsureSchema", err)
}

// Record upserts the result for f.FrameID. An empty ID is filled in.
func (r *FrameRepository) Record(ctx context.Context, f *models.FrameResult) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO frame_results (id, frame_id, worker_id, provider, location, size_bytes, stored_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (frame_id) DO UPDATE SET
			id = EXCLUDED.id,
			worker_id = EXCLUDED.worker_id,
			provider = EXCLUDED.provider,
			location = EXCLUDED.location,
			size_bytes = EXCLUDED.size_bytes,
			stored_at = EXCLUDED.stored_at
	`, f.ID, int64(f.FrameID), f.WorkerID, f.Provider, f.Location, f.SizeBytes, f.StoredAt)
	return translate("repositories.Record", err)
}

func (r *FrameRepository) List(ctx context.Context) ([]models.FrameResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, frame_id, worker_id, provider, location, size_bytes, stored_at
		FROM frame_results
		ORDER BY frame_id
	`)
	if err != nil {
		return nil, translate("repositories.List", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FrameResult, error) {
		var (
			f       models.FrameResult
			frameID int64
		)
		err := row.Scan(&f.ID, &frameID, &f.WorkerID, &f.Provider, &f.Location, &f.SizeBytes, &f.StoredAt)
		f.FrameID = uint64(frameID)
		return f, err
	})
	if err != nil {
		return nil, translate("repositories.List", err)
	}
	return results, nil
}
