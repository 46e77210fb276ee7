package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingApproved  EventType = "booking.approved"
	EventBookingDeclined  EventType = "booking.declined" // отказ одного тьютора
	EventBookingRejected  EventType = "booking.rejected" // отказ всего пула
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingArchived  EventType = "booking.archived"
	EventRatingSubmitted  EventType = "rating.submitted"
)

// Event доменное событие, по одному на каждую успешную мутацию
type Event struct {
	Type       EventType `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	StudentID  string    `json:"student_id"`
	TutorID    string    `json:"tutor_id,omitempty"` // инициатор или занявший тьютор
	OccurredAt time.Time `json:"occurred_at"`
	Booking    *Booking  `json:"booking,omitempty"`
	Rating     *Rating   `json:"rating,omitempty"`
}

// NewBookingEvent событие по снимку заявки
func NewBookingEvent(t EventType, b *Booking, tutorID string, at time.Time) Event {
	return Event{
		Type:       t,
		BookingID:  b.ID,
		StudentID:  b.StudentID,
		TutorID:    tutorID,
		OccurredAt: at,
		Booking:    b.Clone(),
	}
}
