package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// errorCode extracts the Postgres SQLSTATE from err, or "" if err isn't a
// *pgconn.PgError.
func errorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
