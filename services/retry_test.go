package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryable(errors.Wrap(&pgconn.PgError{Code: "40P01"}, "wrapped")))
	assert.True(t, isRetryable(errInternal("op", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isRetryable(errors.New("boom")))
	assert.False(t, isRetryable(nil))
}

func TestRunTxRetriesConflicts(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := runTx(context.Background(), db, 3, "test", func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunTxGivesUpAsTransient(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := runTx(context.Background(), db, 2, "test", func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.Equal(t, ErrTransient, CodeOf(err))
	assert.Equal(t, 3, attempts, "one try plus two retries")
}

func TestRunTxDoesNotRetryOtherErrors(t *testing.T) {
	db := newTestDB(t)

	attempts := 0
	err := runTx(context.Background(), db, 5, "test", func(tx *gorm.DB) error {
		attempts++
		return NewError(ErrForbidden, "nope")
	})
	assert.Equal(t, ErrForbidden, CodeOf(err))
	assert.Equal(t, 1, attempts)

	err = runTx(context.Background(), db, 5, "test", func(tx *gorm.DB) error {
		return errors.New("disk on fire")
	})
	assert.Equal(t, ErrInternal, CodeOf(err))
	assert.Equal(t, "test failed", MessageOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrInternal, CodeOf(errors.New("x")))
	assert.Equal(t, ErrNotFound, CodeOf(errors.Wrap(errNotFound("challenge"), "ctx")))
	assert.Equal(t, "challenge not found", MessageOf(errNotFound("challenge")))
	assert.Equal(t, "internal server error", MessageOf(errors.New("x")))
}
