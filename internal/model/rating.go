package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rating оценка занятия студентом, одна на заявку
type Rating struct {
	BookingID uuid.UUID `json:"booking_id"`
	StudentID string    `json:"student_id"`
	TutorID   string    `json:"tutor_id"`
	Score     int       `json:"score"`
	Review    *string   `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidScore проверяет диапазон оценки
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}
