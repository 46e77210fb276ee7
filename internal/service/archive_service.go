package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ArchiveService struct {
	bookings    BookingStore
	ratings     RatingStore
	history     HistoryStore
	projector   status.Projector
	clock       clock.Clock
	ratingGrace time.Duration
	events      Publisher
	logger      *zap.Logger
}

func NewArchiveService(
	bookings BookingStore,
	ratings RatingStore,
	history HistoryStore,
	projector status.Projector,
	clk clock.Clock,
	ratingGrace time.Duration,
	events Publisher,
	logger *zap.Logger,
) *ArchiveService {
	return &ArchiveService{
		bookings:    bookings,
		ratings:     ratings,
		history:     history,
		projector:   projector,
		clock:       clk,
		ratingGrace: ratingGrace,
		events:      events,
		logger:      logger,
	}
}

// Archive переносит терминальную заявку в историю по запросу студента или тьютора.
// Повторный вызов возвращает уже созданную запись.
func (s *ArchiveService) Archive(ctx context.Context, bookingID uuid.UUID, userID string) (*model.HistoryRecord, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking.StudentID != userID && !booking.ClaimedBy(userID) {
		return nil, fmt.Errorf("archive booking: %w", model.ErrNotOwner)
	}
	return s.archive(ctx, bookingID)
}

func (s *ArchiveService) archive(ctx context.Context, bookingID uuid.UUID) (*model.HistoryRecord, error) {
	now := s.clock.Now()

	rec, created, err := s.history.Archive(ctx, bookingID, func(b *model.Booking, r *model.Rating) (*model.HistoryRecord, error) {
		// Completed не хранится, поэтому финальный статус вычисляется в момент архивации
		final := s.projector.Derive(b, now)
		if !final.IsTerminal() {
			return nil, fmt.Errorf("booking is %s: %w", final, model.ErrNotTerminal)
		}
		return model.NewHistoryRecord(b, r, final, now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive booking: %w", err)
	}
	if !created {
		return rec, nil
	}

	s.logger.Info("Booking archived",
		zap.String("booking_id", bookingID.String()),
		zap.String("final_status", string(rec.FinalStatus)),
		zap.Bool("rated", rec.Rating != nil),
	)

	ev := model.Event{
		Type:       model.EventBookingArchived,
		BookingID:  rec.BookingID,
		StudentID:  rec.StudentID,
		OccurredAt: now,
		Rating:     rec.Rating,
	}
	if rec.TutorID != nil {
		ev.TutorID = *rec.TutorID
	}
	s.events.Publish(ev)

	return rec, nil
}

// readyForSweep отклонённые и отменённые архивируются сразу,
// завершённые ждут оценку в течение ratingGrace
func (s *ArchiveService) readyForSweep(ctx context.Context, b *model.Booking, now time.Time) (bool, error) {
	switch s.projector.Derive(b, now) {
	case model.DisplayRejected, model.DisplayCancelled:
		return true, nil
	case model.DisplayCompleted:
		_, end := s.projector.Window(b)
		if now.Sub(end) >= s.ratingGrace {
			return true, nil
		}
		_, err := s.ratings.GetRating(ctx, b.ID)
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, nil
	}
}

// Sweep периодическая архивация. Ошибки по отдельным заявкам не останавливают обход.
func (s *ArchiveService) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()

	candidates, err := s.bookings.ListArchiveCandidates(ctx, model.DateOf(now, s.projector.Location()))
	if err != nil {
		return 0, fmt.Errorf("list archive candidates: %w", err)
	}

	archived := 0
	for _, b := range candidates {
		if ctx.Err() != nil {
			return archived, ctx.Err()
		}

		ready, err := s.readyForSweep(ctx, b, now)
		if err != nil {
			s.logger.Warn("Failed to check booking for archive",
				zap.String("booking_id", b.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if !ready {
			continue
		}

		if _, err := s.archive(ctx, b.ID); err != nil {
			s.logger.Warn("Failed to archive booking",
				zap.String("booking_id", b.ID.String()),
				zap.Error(err),
			)
			continue
		}
		archived++
	}

	return archived, nil
}

// GetHistory получает запись истории, доступную участнику заявки
func (s *ArchiveService) GetHistory(ctx context.Context, bookingID uuid.UUID, userID string) (*model.HistoryRecord, error) {
	rec, err := s.history.GetHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if !rec.Involves(userID) {
		return nil, fmt.Errorf("get history: %w", model.ErrNotOwner)
	}
	return rec, nil
}

// ListHistory история пользователя как студента и как тьютора
func (s *ArchiveService) ListHistory(ctx context.Context, userID string) ([]*model.HistoryRecord, error) {
	records, err := s.history.ListHistoryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
