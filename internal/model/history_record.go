package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// HistoryRecord неизменяемая архивная копия завершённой заявки и её оценки
type HistoryRecord struct {
	BookingID   uuid.UUID     `json:"booking_id"`
	StudentID   string        `json:"student_id"`
	TutorID     *string       `json:"tutor_id"`
	Subject     string        `json:"subject"`
	Description string        `json:"description"`
	BookingDate time.Time     `json:"booking_date"`
	StartTime   TimeOfDay     `json:"start_time"`
	EndTime     TimeOfDay     `json:"end_time"`
	FinalStatus DisplayStatus `json:"final_status"` // статус, вычисленный в момент архивации
	PoolSize    int           `json:"pool_size"`
	RejectedBy  []string      `json:"rejected_by"`
	Rating      *Rating       `json:"rating,omitempty"`
	BookedAt    time.Time     `json:"booked_at"`
	ArchivedAt  time.Time     `json:"archived_at"`
}

// NewHistoryRecord снимает копию заявки с уже вычисленным финальным статусом
func NewHistoryRecord(b *Booking, rating *Rating, final DisplayStatus, at time.Time) *HistoryRecord {
	rec := &HistoryRecord{
		BookingID:   b.ID,
		StudentID:   b.StudentID,
		Subject:     b.Subject,
		Description: b.Description,
		BookingDate: b.BookingDate,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		FinalStatus: final,
		PoolSize:    b.PoolSize,
		RejectedBy:  slices.Clone(b.RejectedBy),
		BookedAt:    b.CreatedAt,
		ArchivedAt:  at,
	}
	if rec.RejectedBy == nil {
		rec.RejectedBy = []string{}
	}
	if b.TutorID != nil {
		tutor := *b.TutorID
		rec.TutorID = &tutor
	}
	if rating != nil {
		r := *rating
		rec.Rating = &r
	}
	return rec
}

// Involves участвовал ли пользователь в заявке
func (h *HistoryRecord) Involves(userID string) bool {
	return h.StudentID == userID || (h.TutorID != nil && *h.TutorID == userID)
}
