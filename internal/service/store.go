package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/google/uuid"
)

// BookingStore единственный источник правды по заявкам.
// Все мутации условные: реализация обязана сравнивать и менять статус атомарно.
type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListByStudent(ctx context.Context, studentID string) ([]*model.Booking, error)
	ListEligibleForTutor(ctx context.Context, tutorID string) ([]*model.Booking, error)
	ListByTutor(ctx context.Context, tutorID string) ([]*model.Booking, error)

	// Claim: tutor_id=X, status=approved WHERE status=pending
	Claim(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (*model.Booking, error)
	// AddRejection добавляет отказ; changed=false для повторного отказа того же тьютора
	AddRejection(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (booking *model.Booking, changed bool, err error)
	// Cancel: status=cancelled WHERE status=pending AND student_id=S
	Cancel(ctx context.Context, id uuid.UUID, studentID string, at time.Time) (*model.Booking, error)

	// ListArchiveCandidates неархивные заявки в терминальном статусе или с датой не позже through
	ListArchiveCandidates(ctx context.Context, through time.Time) ([]*model.Booking, error)
}

// RatingStore уникальность оценки обеспечивается ключом, а не проверкой перед вставкой
type RatingStore interface {
	// CreateRating возвращает ErrAlreadyRated при повторе и ErrArchived для архивной заявки
	CreateRating(ctx context.Context, rating *model.Rating) error
	GetRating(ctx context.Context, bookingID uuid.UUID) (*model.Rating, error)
}

// ArchiveFunc строит запись истории по заблокированной заявке и её оценке
type ArchiveFunc = func(booking *model.Booking, rating *model.Rating) (*model.HistoryRecord, error)

// HistoryStore архив завершённых заявок
type HistoryStore interface {
	// Archive атомарно: возвращает существующую запись (created=false)
	// или создаёт новую через build и помечает заявку архивной
	Archive(ctx context.Context, bookingID uuid.UUID, build ArchiveFunc) (record *model.HistoryRecord, created bool, err error)
	GetHistory(ctx context.Context, bookingID uuid.UUID) (*model.HistoryRecord, error)
	ListHistoryByUser(ctx context.Context, userID string) ([]*model.HistoryRecord, error)
}

// Publisher получатель доменных событий
type Publisher interface {
	Publish(event model.Event)
}
