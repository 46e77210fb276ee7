package model

import "errors"

// Ошибки ввода: возвращаются клиенту, не повторяются
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrPastBooking       = errors.New("booking is in the past")
	ErrNoTutorsAvailable = errors.New("no tutors available for subject")
)

// Проигранная гонка: нормальный исход, клиент должен обновить состояние
var (
	ErrAlreadyClaimed  = errors.New("booking already claimed")
	ErrAlreadyRejected = errors.New("booking already rejected")
	ErrNotPending      = errors.New("booking is not pending")
	ErrAlreadyDeclined = errors.New("tutor already declined this booking")
)

// Нарушенные предусловия
var (
	ErrNotCompleted = errors.New("session is not completed")
	ErrAlreadyRated = errors.New("booking already rated")
	ErrNotTerminal  = errors.New("booking is not in a terminal state")
	ErrArchived     = errors.New("booking is archived")
	ErrNotEligible  = errors.New("tutor is not in the booking pool")
	ErrNotOwner     = errors.New("no permission for this booking")
	ErrNotFound     = errors.New("not found")

	ErrInvalidLinkCode = errors.New("link code is invalid or expired")
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvariantViolated  = errors.New("booking invariant violated")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidTimeRange, "invalid_time_range"},
	{ErrPastBooking, "past_booking"},
	{ErrNoTutorsAvailable, "no_tutors_available"},
	{ErrInvalidInput, "invalid_input"},
	{ErrAlreadyClaimed, "already_claimed"},
	{ErrAlreadyRejected, "already_rejected"},
	{ErrNotPending, "not_pending"},
	{ErrAlreadyDeclined, "already_declined"},
	{ErrNotCompleted, "not_completed"},
	{ErrAlreadyRated, "already_rated"},
	{ErrNotTerminal, "not_terminal"},
	{ErrArchived, "archived"},
	{ErrNotEligible, "not_eligible"},
	{ErrNotOwner, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrInvalidLinkCode, "invalid_link_code"},
	{ErrStorageUnavailable, "storage_unavailable"},
}

// ErrorCode возвращает стабильный код ошибки для внешних клиентов
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

// IsRaceLost true если вызывающий проиграл гонку за заявку
func IsRaceLost(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrAlreadyRejected) ||
		errors.Is(err, ErrNotPending)
}
