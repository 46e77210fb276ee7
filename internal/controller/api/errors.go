package api

import (
	"net/http"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	"invalid_input":       http.StatusBadRequest,
	"invalid_time_range":  http.StatusBadRequest,
	"past_booking":        http.StatusBadRequest,
	"no_tutors_available": http.StatusUnprocessableEntity,
	"not_completed":       http.StatusUnprocessableEntity,
	"not_terminal":        http.StatusUnprocessableEntity,
	"invalid_link_code":   http.StatusUnprocessableEntity,
	"already_claimed":     http.StatusConflict,
	"already_rejected":    http.StatusConflict,
	"not_pending":         http.StatusConflict,
	"already_declined":    http.StatusConflict,
	"already_rated":       http.StatusConflict,
	"archived":            http.StatusConflict,
	"not_eligible":        http.StatusForbidden,
	"forbidden":           http.StatusForbidden,
	"not_found":           http.StatusNotFound,
	"storage_unavailable": http.StatusServiceUnavailable,
}

// HTTPStatus статус ответа для доменной ошибки
func HTTPStatus(err error) int {
	if status, ok := statusByCode[model.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := HTTPStatus(err)
	code := model.ErrorCode(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("op", op),
			zap.String("user_id", currentUser(c)),
			zap.Error(err),
		)
	}

	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	c.JSON(status, errorBody{Error: code, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_input", Message: msg})
}
