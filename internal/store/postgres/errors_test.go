package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestViolationDetection(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isForeignKeyViolation(unique))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isUniqueViolation(fk))

	assert.True(t, isUniqueViolation(errors.New("ERROR: duplicate key value violates unique constraint")))
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isForeignKeyViolation(errors.New("connection reset")))
}
