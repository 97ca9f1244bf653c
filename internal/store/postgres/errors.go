package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/narvanalabs/causeway/internal/store"
)

// ErrNotFound is returned when a requested job does not exist.
var ErrNotFound = store.ErrNotFound

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation, "duplicate key")
}

// isForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation, "foreign key constraint")
}

func hasCode(err error, code, text string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return strings.Contains(err.Error(), code) || strings.Contains(err.Error(), text)
}
