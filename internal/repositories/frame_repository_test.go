package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/internal/models"
	apperrors "renderfarm/internal/pkg/errors"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execErr error
	rows    [][]any
	qErr    error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.qErr != nil {
		return nil, f.qErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

// fakeRows serves canned rows to pgx.CollectRows.
type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int64:
			*p = row[i].(int64)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	repo := NewFrameRepository(db)

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS frame_results")
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	repo := NewFrameRepository(db)
	storedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	res := &models.FrameResult{
		FrameID:   12,
		WorkerID:  "3",
		Provider:  "localfs",
		Location:  "frames/12",
		SizeBytes: 2048,
		StoredAt:  storedAt,
	}
	require.NoError(t, repo.Record(context.Background(), res))

	assert.Len(t, res.ID, 36, "a uuid is assigned")
	require.Len(t, db.execs, 1)
	call := db.execs[0]
	assert.True(t, strings.Contains(call.sql, "ON CONFLICT (frame_id) DO UPDATE"))
	assert.Equal(t, []any{res.ID, int64(12), "3", "localfs", "frames/12", int64(2048), storedAt}, call.args)
}

func TestRecordMissingTable(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "42P01"}}
	repo := NewFrameRepository(db)

	err := repo.Record(context.Background(), &models.FrameResult{FrameID: 1})
	assert.ErrorIs(t, err, ErrLedgerMissing)

	db.execErr = errors.New("connection refused")
	err = repo.Record(context.Background(), &models.FrameResult{FrameID: 1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable))
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrLedgerMissing)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   apperrors.Code
		pgCode any
	}{
		{name: "undefined table", err: &pgconn.PgError{Code: "42P01"}, code: apperrors.CodeNotFound, pgCode: "42P01"},
		{name: "undefined column", err: &pgconn.PgError{Code: "42703"}, code: apperrors.CodeNotFound, pgCode: "42703"},
		{name: "other server error", err: &pgconn.PgError{Code: "23505"}, code: apperrors.CodeInternal, pgCode: "23505"},
		{name: "transport", err: errors.New("dial tcp: refused"), code: apperrors.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate("repositories.Test", tt.err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.pgCode, apperrors.GetFields(err)["pg_code"])
		})
	}

	assert.NoError(t, translate("repositories.Test", nil))
}

func TestList(t *testing.T) {
	storedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"a", int64(0), "1", "localfs", "frames/0", int64(10), storedAt},
		{"b", int64(1), "2", "gdrive", "drive-id", int64(20), storedAt},
	}}
	repo := NewFrameRepository(db)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[1].FrameID)
	assert.Equal(t, "drive-id", got[1].Location)

	db.qErr = &pgconn.PgError{Code: "42P01"}
	_, err = repo.List(context.Background())
	assert.ErrorIs(t, err, ErrLedgerMissing)
}
