package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"go.uber.org/zap"
)

// linkCodeBytes 80 бит, 16 символов base32 без паддинга
const linkCodeBytes = 10

// ContactStore коды привязки и привязанные чаты
type ContactStore interface {
	CreateLinkCode(ctx context.Context, code *model.LinkCode) error
	// RedeemLinkCode гасит код атомарно; ErrInvalidLinkCode для чужого, истёкшего или использованного
	RedeemLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (string, error)
	UserID(ctx context.Context, chatID int64) (string, error)
}

// ContactService привязка Telegram-чатов через одноразовые коды
type ContactService struct {
	store  ContactStore
	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

func NewContactService(store ContactStore, clk clock.Clock, ttl time.Duration, logger *zap.Logger) *ContactService {
	return &ContactService{
		store:  store,
		clock:  clk,
		ttl:    ttl,
		logger: logger,
	}
}

func generateLinkCode() (string, error) {
	bytes := make([]byte, linkCodeBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(bytes), "="), nil
}

// IssueLinkCode выдаёт код для /start пользователю, прошедшему аутентификацию
func (s *ContactService) IssueLinkCode(ctx context.Context, userID string) (*model.LinkCode, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", model.ErrInvalidInput)
	}

	code, err := generateLinkCode()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	lc := &model.LinkCode{
		Code:      code,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateLinkCode(ctx, lc); err != nil {
		return nil, fmt.Errorf("issue link code: %w", err)
	}

	s.logger.Info("Link code issued",
		zap.String("user_id", userID),
		zap.Time("expires_at", lc.ExpiresAt),
	)
	return lc, nil
}

// RedeemLinkCode привязывает чат к владельцу кода
func (s *ContactService) RedeemLinkCode(ctx context.Context, code string, chatID int64) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("redeem link code: %w", model.ErrInvalidLinkCode)
	}

	userID, err := s.store.RedeemLinkCode(ctx, code, chatID, s.clock.Now())
	if err != nil {
		return "", err
	}

	s.logger.Info("Telegram chat linked", zap.String("user_id", userID), zap.Int64("chat_id", chatID))
	return userID, nil
}

// ChatUser пользователь, привязавший чат
func (s *ContactService) ChatUser(ctx context.Context, chatID int64) (string, error) {
	userID, err := s.store.UserID(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("get chat user: %w", err)
	}
	return userID, nil
}
