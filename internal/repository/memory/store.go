// Package memory хранилище в памяти: один мьютекс служит точкой сериализации всех мутаций.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*model.Booking
	ratings  map[uuid.UUID]*model.Rating
	history  map[uuid.UUID]*model.HistoryRecord
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[uuid.UUID]*model.Booking),
		ratings:  make(map[uuid.UUID]*model.Rating),
		history:  make(map[uuid.UUID]*model.HistoryRecord),
	}
}

// Create сохраняет новую заявку
func (s *Store) Create(ctx context.Context, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if _, exists := s.bookings[booking.ID]; exists {
		return fmt.Errorf("create booking %s: duplicate id", booking.ID)
	}
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

// GetByID получает заявку по ID
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return b.Clone(), nil
}

// ListByStudent заявки студента, новые первыми
func (s *Store) ListByStudent(ctx context.Context, studentID string) ([]*model.Booking, error) {
	return s.list(func(b *model.Booking) bool {
		return b.StudentID == studentID
	}), nil
}

// ListEligibleForTutor открытые заявки, на которые тьютор ещё может ответить
func (s *Store) ListEligibleForTutor(ctx context.Context, tutorID string) ([]*model.Booking, error) {
	return s.list(func(b *model.Booking) bool {
		return b.Status == model.BookingStatusPending && b.InPool(tutorID) && !b.HasRejected(tutorID)
	}), nil
}

// ListByTutor заявки, занятые тьютором
func (s *Store) ListByTutor(ctx context.Context, tutorID string) ([]*model.Booking, error) {
	return s.list(func(b *model.Booking) bool {
		return b.ClaimedBy(tutorID)
	}), nil
}

// ListArchiveCandidates кандидаты для периодической архивации
func (s *Store) ListArchiveCandidates(ctx context.Context, through time.Time) ([]*model.Booking, error) {
	return s.list(func(b *model.Booking) bool {
		if b.IsArchived() {
			return false
		}
		switch b.Status {
		case model.BookingStatusRejected, model.BookingStatusCancelled:
			return true
		case model.BookingStatusApproved:
			return !b.BookingDate.After(through)
		}
		return false
	}), nil
}

func (s *Store) list(match func(b *model.Booking) bool) []*model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *model.Booking) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Claim атомарно занимает заявку
func (s *Store) Claim(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if err := b.CheckClaim(tutorID); err != nil {
		return nil, err
	}
	b.ApplyClaim(tutorID, at)
	return b.Clone(), nil
}

// AddRejection атомарно записывает отказ и закрывает заявку при кворуме
func (s *Store) AddRejection(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (*model.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, false, model.ErrNotFound
	}
	noop, err := b.CheckReject(tutorID)
	if err != nil {
		return nil, false, err
	}
	if noop {
		return b.Clone(), false, nil
	}
	b.ApplyRejection(tutorID, at)
	return b.Clone(), true, nil
}

// Cancel атомарно отменяет открытую заявку владельцем
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, studentID string, at time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if err := b.CheckCancel(studentID); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatusCancelled
	b.UpdatedAt = at
	return b.Clone(), nil
}

// CreateRating вставка с проверкой уникальности под тем же мьютексом
func (s *Store) CreateRating(ctx context.Context, rating *model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[rating.BookingID]
	if !ok {
		return model.ErrNotFound
	}
	if b.IsArchived() {
		return model.ErrArchived
	}
	if _, exists := s.ratings[rating.BookingID]; exists {
		return model.ErrAlreadyRated
	}
	r := *rating
	s.ratings[rating.BookingID] = &r
	return nil
}

// GetRating получает оценку заявки
func (s *Store) GetRating(ctx context.Context, bookingID uuid.UUID) (*model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ratings[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *r
	return &c, nil
}

// Archive переносит заявку в историю, повторный вызов возвращает ту же запись
func (s *Store) Archive(ctx context.Context, bookingID uuid.UUID, build func(*model.Booking, *model.Rating) (*model.HistoryRecord, error)) (*model.HistoryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.history[bookingID]; ok {
		return cloneRecord(rec), false, nil
	}
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, false, model.ErrNotFound
	}

	var rating *model.Rating
	if r, ok := s.ratings[bookingID]; ok {
		c := *r
		rating = &c
	}
	rec, err := build(b.Clone(), rating)
	if err != nil {
		return nil, false, err
	}

	at := rec.ArchivedAt
	b.ArchivedAt = &at
	s.history[bookingID] = cloneRecord(rec)
	return rec, true, nil
}

// GetHistory получает запись истории
func (s *Store) GetHistory(ctx context.Context, bookingID uuid.UUID) (*model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.history[bookingID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListHistoryByUser история студента или тьютора, новые первыми
func (s *Store) ListHistoryByUser(ctx context.Context, userID string) ([]*model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.HistoryRecord
	for _, rec := range s.history {
		if rec.Involves(userID) {
			out = append(out, cloneRecord(rec))
		}
	}
	slices.SortFunc(out, func(a, b *model.HistoryRecord) int {
		return cmp.Compare(b.ArchivedAt.UnixNano(), a.ArchivedAt.UnixNano())
	})
	return out, nil
}

func cloneRecord(rec *model.HistoryRecord) *model.HistoryRecord {
	c := *rec
	c.RejectedBy = slices.Clone(rec.RejectedBy)
	if rec.TutorID != nil {
		tutor := *rec.TutorID
		c.TutorID = &tutor
	}
	if rec.Rating != nil {
		r := *rec.Rating
		c.Rating = &r
	}
	return &c
}
