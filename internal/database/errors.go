package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Describe renders err for logs, adding SQLSTATE and detail for PostgreSQL
// errors.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Sprintf("%v: %s (%s)", err, pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Sprintf("%v (%s)", err, pgErr.SQLState())
	}
	return err.Error()
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
