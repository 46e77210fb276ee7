package model

import "time"

// LinkCode одноразовый код привязки Telegram-чата, выдаётся авторизованному пользователю
type LinkCode struct {
	Code      string     `json:"code"`
	UserID    string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"-"`
	CreatedAt time.Time  `json:"-"`
}

// CanUse код не использован и не истёк
func (c *LinkCode) CanUse(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}
