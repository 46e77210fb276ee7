package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReviewLen = 2000

// RateInput оценка занятия студентом
type RateInput struct {
	BookingID uuid.UUID
	StudentID string
	Score     int
	Review    *string
}

type RatingService struct {
	bookings  BookingStore
	ratings   RatingStore
	projector status.Projector
	clock     clock.Clock
	events    Publisher
	logger    *zap.Logger
}

func NewRatingService(
	bookings BookingStore,
	ratings RatingStore,
	projector status.Projector,
	clk clock.Clock,
	events Publisher,
	logger *zap.Logger,
) *RatingService {
	return &RatingService{
		bookings:  bookings,
		ratings:   ratings,
		projector: projector,
		clock:     clk,
		events:    events,
		logger:    logger,
	}
}

// Rate сохраняет единственную оценку завершённого занятия
func (s *RatingService) Rate(ctx context.Context, in RateInput) (*model.Rating, error) {
	now := s.clock.Now()

	booking, err := s.bookings.GetByID(ctx, in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking.StudentID != in.StudentID {
		return nil, fmt.Errorf("rate booking: %w", model.ErrNotOwner)
	}
	if !model.ValidScore(in.Score) {
		return nil, fmt.Errorf("score %d out of %d..%d: %w", in.Score, model.MinScore, model.MaxScore, model.ErrInvalidInput)
	}

	var review *string
	if in.Review != nil {
		text := strings.TrimSpace(*in.Review)
		if len(text) > maxReviewLen {
			return nil, fmt.Errorf("review is longer than %d characters: %w", maxReviewLen, model.ErrInvalidInput)
		}
		if text != "" {
			review = &text
		}
	}

	if booking.IsArchived() {
		return nil, fmt.Errorf("rate booking: %w", model.ErrArchived)
	}
	if derived := s.projector.Derive(booking, now); derived != model.DisplayCompleted {
		return nil, fmt.Errorf("booking is %s: %w", derived, model.ErrNotCompleted)
	}

	rating := &model.Rating{
		BookingID: booking.ID,
		StudentID: booking.StudentID,
		TutorID:   *booking.TutorID,
		Score:     in.Score,
		Review:    review,
		CreatedAt: now,
	}

	if err := s.ratings.CreateRating(ctx, rating); err != nil {
		return nil, fmt.Errorf("rate booking: %w", err)
	}

	s.logger.Info("Rating submitted",
		zap.String("booking_id", rating.BookingID.String()),
		zap.String("tutor_id", rating.TutorID),
		zap.Int("score", rating.Score),
	)
	s.events.Publish(model.Event{
		Type:       model.EventRatingSubmitted,
		BookingID:  rating.BookingID,
		StudentID:  rating.StudentID,
		TutorID:    rating.TutorID,
		OccurredAt: now,
		Rating:     rating,
	})

	return rating, nil
}

// GetRating получает оценку заявки
func (s *RatingService) GetRating(ctx context.Context, bookingID uuid.UUID) (*model.Rating, error) {
	rating, err := s.ratings.GetRating(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}
