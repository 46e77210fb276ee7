package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy параметры повторов при временных сбоях хранилища
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

// DefaultRetryPolicy три повтора с экспоненциальной задержкой от 50мс
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Base: 50 * time.Millisecond}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.Base)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool   *pgxpool.Pool
	policy RetryPolicy
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool, policy RetryPolicy) *Repository {
	return &Repository{pool: pool, policy: policy}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// WithRetry выполняет fn, повторяя временные сбои
func (r *Repository) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithRetry(ctx, r.policy, fn)
}

// InTx выполняет fn в транзакции с повторами при конфликтах
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return r.WithRetry(ctx, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
	})
}

// WithRetry повторяет fn по политике. Доменные ошибки не повторяются,
// исчерпанные повторы превращаются в ErrStorageUnavailable.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var transient error
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			transient = err
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && transient != nil && errors.Is(err, transient) {
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}
	return err
}

// IsRetryable временный сбой: конфликт сериализации, дедлок или обрыв соединения
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}
	return pgconn.SafeToRetry(err)
}

// IsUniqueViolation нарушение уникального ключа
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
