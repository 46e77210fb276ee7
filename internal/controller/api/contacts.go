package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
)

type telegramLinkResponse struct {
	Code         string    `json:"code"`
	StartCommand string    `json:"start_command"`
	Link         string    `json:"link,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreateTelegramLink POST /api/v1/me/telegram-link
func (h *Handler) CreateTelegramLink(c *gin.Context) {
	code, err := h.contacts.IssueLinkCode(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, "issue link code", err)
		return
	}

	resp := telegramLinkResponse{
		Code:         code.Code,
		StartCommand: "/start " + code.Code,
		ExpiresAt:    code.ExpiresAt,
	}
	if h.opts.BotUsername != "" {
		resp.Link = "https://t.me/" + url.PathEscape(h.opts.BotUsername) + "?start=" + url.QueryEscape(code.Code)
	}
	c.JSON(http.StatusCreated, resp)
}
