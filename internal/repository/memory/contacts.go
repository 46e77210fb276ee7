package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
)

// Contacts привязки чатов и коды привязки в памяти
type Contacts struct {
	mu    sync.Mutex
	chats map[string]int64
	codes map[string]*model.LinkCode
}

func NewContacts() *Contacts {
	return &Contacts{
		chats: make(map[string]int64),
		codes: make(map[string]*model.LinkCode),
	}
}

func (c *Contacts) CreateLinkCode(ctx context.Context, code *model.LinkCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.codes[code.Code]; exists {
		return fmt.Errorf("create link code: duplicate code")
	}
	stored := *code
	c.codes[code.Code] = &stored
	return nil
}

func (c *Contacts) RedeemLinkCode(ctx context.Context, code string, chatID int64, now time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lc, ok := c.codes[code]
	if !ok || !lc.CanUse(now) {
		return "", fmt.Errorf("redeem link code: %w", model.ErrInvalidLinkCode)
	}
	lc.UsedAt = &now

	for userID, chat := range c.chats {
		if chat == chatID && userID != lc.UserID {
			delete(c.chats, userID)
		}
	}
	c.chats[lc.UserID] = chatID
	return lc.UserID, nil
}

func (c *Contacts) TelegramChatID(ctx context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chatID, ok := c.chats[userID]
	if !ok {
		return 0, model.ErrNotFound
	}
	return chatID, nil
}

func (c *Contacts) UserID(ctx context.Context, chatID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, chat := range c.chats {
		if chat == chatID {
			return userID, nil
		}
	}
	return "", model.ErrNotFound
}
