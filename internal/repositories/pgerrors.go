package repositories

import (
	"github.com/jackc/pgx/v5/pgconn"

	"renderfarm/internal/pkg/errors"
)

// Postgres SQLSTATE codes the ledger cares about.
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// ErrLedgerMissing matches errors caused by a missing or outdated
// frame_results table.
var ErrLedgerMissing = errors.New(errors.CodeNotFound, "frame_results table does not exist")

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translate turns a driver error into a coded ledger error. Errors that never
// reached the server are reported as unavailable.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	switch code := pgCode(err); code {
	case pgUndefinedTable, pgUndefinedColumn:
		return errors.WrapWithCode(err, errors.CodeNotFound, op, "frame ledger table missing").
			WithField("pg_code", code)
	case "":
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "frame ledger unreachable")
	default:
		return errors.Wrap(err, op, "frame ledger query failed").WithField("pg_code", code)
	}
}
