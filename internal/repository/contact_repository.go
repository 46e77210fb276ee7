package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// ContactRepository каналы доставки уведомлений пользователям
type ContactRepository struct {
	*base.Repository
}

func NewContactRepository(repo *base.Repository) *ContactRepository {
	return &ContactRepository{Repository: repo}
}

// CreateLinkCode сохраняет выданный код привязки
func (r *ContactRepository) CreateLinkCode(ctx context.Context, code *model.LinkCode) error {
	query := `
		INSERT INTO link_codes (code, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	err := r.WithRetry(ctx, func(ctx context.Context) error {
		_, err := r.Pool().Exec(ctx, query, code.Code, code.UserID, code.ExpiresAt, code.CreatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("create link code: %w", err)
	}

	return nil
}

// RedeemLinkCode гасит код и привязывает чат к владельцу кода в одной транзакции.
// Чат, привязанный к другому пользователю, переходит к новому.
func (r *ContactRepository) RedeemLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (string, error) {
	var userID string
	err := r.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE link_codes
			SET used_at = $2
			WHERE code = $1
			  AND used_at IS NULL
			  AND expires_at > $2
			RETURNING user_id
		`, code, now).Scan(&userID)
		if err != nil {
			if base.IsNotFound(err) {
				return model.ErrInvalidLinkCode
			}
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM contacts WHERE telegram_chat_id = $1 AND user_id <> $2`,
			chatID, userID,
		); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO contacts (user_id, telegram_chat_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET telegram_chat_id = EXCLUDED.telegram_chat_id
		`, userID, chatID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("redeem link code: %w", err)
	}

	return userID, nil
}

// TelegramChatID возвращает ErrNotFound, если пользователь не подключил бота
func (r *ContactRepository) TelegramChatID(ctx context.Context, userID string) (int64, error) {
	query := `SELECT telegram_chat_id FROM contacts WHERE user_id = $1`

	var chatID int64
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		return r.Pool().QueryRow(ctx, query, userID).Scan(&chatID)
	})
	if err != nil {
		if base.IsNotFound(err) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("get telegram chat id: %w", err)
	}

	return chatID, nil
}

// UserID пользователь, привязавший чат
func (r *ContactRepository) UserID(ctx context.Context, chatID int64) (string, error) {
	query := `SELECT user_id FROM contacts WHERE telegram_chat_id = $1`

	var userID string
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		return r.Pool().QueryRow(ctx, query, chatID).Scan(&userID)
	})
	if err != nil {
		if base.IsNotFound(err) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("get contact user: %w", err)
	}

	return userID, nil
}
