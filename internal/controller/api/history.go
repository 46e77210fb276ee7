package api

import (
	"io"
	"net/http"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/gin-gonic/gin"
)

// MyHistory GET /api/v1/history
func (h *Handler) MyHistory(c *gin.Context) {
	records, err := h.archive.ListHistory(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, "list history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

// GetHistory GET /api/v1/history/:id
func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	rec, err := h.archive.GetHistory(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.fail(c, "get history", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// visibleTo событие касается пользователя как студента, тьютора или участника пула
func visibleTo(ev model.Event, userID string) bool {
	if ev.StudentID == userID || ev.TutorID == userID {
		return true
	}
	return ev.Booking != nil && ev.Booking.InPool(userID)
}

// Events GET /api/v1/events, поток событий пользователя в формате SSE
func (h *Handler) Events(c *gin.Context) {
	userID := currentUser(c)
	ch, unsubscribe := h.bus.Subscribe(h.opts.EventBuffer)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			if visibleTo(ev, userID) {
				c.SSEvent(string(ev.Type), ev)
			}
			return true
		}
	})
}
