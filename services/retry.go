// services/retry.go - Transaction runner with conflict retries
package services

import (
	"context"
	"time"

	"fitchallenge/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTxMaxRetries bounds conflict retries when no limit is configured
const DefaultTxMaxRetries = 5

// PostgreSQL SQLSTATE codes that mean "run the transaction again"
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
			return true
		}
	}
	return false
}

func newTxBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// runTx runs fn in a transaction, retrying the whole transaction on
// serialization failures and deadlocks. fn must only use the tx it is given.
// A conflict that outlives maxRetries comes back as ErrTransient; errors that
// are not ServiceErrors come back as ErrInternal.
func runTx(ctx context.Context, db *gorm.DB, maxRetries int, op string, fn func(tx *gorm.DB) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newTxBackoff(), uint64(maxRetries)), ctx)

	err := backoff.RetryNotify(func() error {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil || isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		txRetries.WithLabelValues(op).Inc()
		utils.Logger.Debug("retrying transaction",
			zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	})

	switch {
	case err == nil:
		return nil
	case isRetryable(err):
		utils.Logger.Warn("transaction retries exhausted", zap.String("op", op), zap.Error(err))
		return WrapError(ErrTransient, "the server is busy, please try again", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return WrapError(ErrTransient, "request cancelled", err)
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return errInternal(op, err)
}

// forUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serializes writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
