package base

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{MaxRetries: 3, Base: time.Millisecond}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	require.True(t, IsRetryable(fmt.Errorf("claim: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected})))
	require.True(t, IsRetryable(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
	require.False(t, IsRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	require.False(t, IsRetryable(model.ErrAlreadyClaimed))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	require.False(t, IsUniqueViolation(errors.New("boom")))
	require.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}

func TestWithRetry_RecoversFromTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustedIsStorageUnavailable(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
	})
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
	require.Equal(t, 4, calls)
}

func TestWithRetry_DomainErrorNotRetried(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		return model.ErrAlreadyClaimed
	})
	require.ErrorIs(t, err, model.ErrAlreadyClaimed)
	require.Equal(t, 1, calls)
}
