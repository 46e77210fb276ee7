package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/pool"
	"github.com/Freeeeeet/plc_booking/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxSubjectLen     = 120
	maxDescriptionLen = 2000
)

// BookingView заявка вместе с вычисленным статусом на момент чтения
type BookingView struct {
	*model.Booking
	DisplayStatus model.DisplayStatus `json:"display_status"`
	StartsAt      time.Time           `json:"starts_at"`
	EndsAt        time.Time           `json:"ends_at"`
}

// CreateBookingInput данные новой заявки от студента
type CreateBookingInput struct {
	StudentID   string
	Subject     string
	Description string
	Date        time.Time
	Start       model.TimeOfDay
	End         model.TimeOfDay
}

type BookingService struct {
	bookings  BookingStore
	pools     pool.Resolver
	projector status.Projector
	clock     clock.Clock
	hours     model.OperatingHours
	events    Publisher
	logger    *zap.Logger
}

func NewBookingService(
	bookings BookingStore,
	pools pool.Resolver,
	projector status.Projector,
	clk clock.Clock,
	hours model.OperatingHours,
	events Publisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:  bookings,
		pools:     pools,
		projector: projector,
		clock:     clk,
		hours:     hours,
		events:    events,
		logger:    logger,
	}
}

func (s *BookingService) view(b *model.Booking, now time.Time) *BookingView {
	start, end := s.projector.Window(b)
	return &BookingView{
		Booking:       b,
		DisplayStatus: s.projector.Derive(b, now),
		StartsAt:      start,
		EndsAt:        end,
	}
}

func (s *BookingService) views(bookings []*model.Booking) []*BookingView {
	now := s.clock.Now()
	out := make([]*BookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, s.view(b, now))
	}
	return out
}

// Derive вычисляет статус заявки на момент now без обращения к хранилищу
func (s *BookingService) Derive(b *model.Booking, now time.Time) model.DisplayStatus {
	return s.projector.Derive(b, now)
}

func (s *BookingService) validate(in CreateBookingInput, now time.Time) error {
	if strings.TrimSpace(in.StudentID) == "" {
		return fmt.Errorf("student id is required: %w", model.ErrInvalidInput)
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" || len(subject) > maxSubjectLen {
		return fmt.Errorf("subject must be 1..%d characters: %w", maxSubjectLen, model.ErrInvalidInput)
	}
	if len(in.Description) > maxDescriptionLen {
		return fmt.Errorf("description is longer than %d characters: %w", maxDescriptionLen, model.ErrInvalidInput)
	}

	if !in.Start.Valid() || !in.End.Valid() || in.Start >= in.End {
		return fmt.Errorf("start %s must be before end %s: %w", in.Start, in.End, model.ErrInvalidTimeRange)
	}
	if !s.hours.Contains(in.Start, in.End) {
		return fmt.Errorf("session %s-%s is outside %s-%s: %w",
			in.Start, in.End, s.hours.Open, s.hours.Close, model.ErrInvalidTimeRange)
	}

	// Прошедшая дата или сегодняшнее время, которое уже наступило
	startsAt := s.projector.At(in.Date, in.Start)
	if !startsAt.After(now) {
		return fmt.Errorf("session starts at %s: %w", startsAt.Format(time.RFC3339), model.ErrPastBooking)
	}

	return nil
}

// CreateBooking создаёт заявку и замораживает пул тьюторов
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingView, error) {
	now := s.clock.Now()
	in.Date = model.NewDate(in.Date.Date())

	if err := s.validate(in, now); err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(in.Subject)
	p, err := s.pools.PoolFor(ctx, pool.Request{
		StudentID: in.StudentID,
		Subject:   subject,
		Date:      in.Date,
		Start:     in.Start,
		End:       in.End,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve pool: %w", err)
	}
	if p.Size == 0 {
		return nil, fmt.Errorf("subject %q: %w", subject, model.ErrNoTutorsAvailable)
	}

	booking := &model.Booking{
		ID:           uuid.New(),
		StudentID:    in.StudentID,
		Subject:      subject,
		Description:  strings.TrimSpace(in.Description),
		BookingDate:  in.Date,
		StartTime:    in.Start,
		EndTime:      in.End,
		Status:       model.BookingStatusPending,
		PoolTutorIDs: p.TutorIDs,
		PoolSize:     p.Size,
		RejectedBy:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("student_id", booking.StudentID),
		zap.String("subject", booking.Subject),
		zap.String("date", booking.BookingDate.Format(time.DateOnly)),
		zap.Stringer("start", booking.StartTime),
		zap.Int("pool_size", booking.PoolSize),
	)
	s.events.Publish(model.NewBookingEvent(model.EventBookingCreated, booking, "", now))

	return s.view(booking, now), nil
}

// GetByID получает заявку по ID
func (s *BookingService) GetByID(ctx context.Context, bookingID uuid.UUID) (*BookingView, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return s.view(booking, s.clock.Now()), nil
}

// GetStudentBookings получает все заявки студента
func (s *BookingService) GetStudentBookings(ctx context.Context, studentID string) ([]*BookingView, error) {
	bookings, err := s.bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}
	return s.views(bookings), nil
}

// GetEligibleBookings получает открытые заявки, на которые тьютор может ответить
func (s *BookingService) GetEligibleBookings(ctx context.Context, tutorID string) ([]*BookingView, error) {
	bookings, err := s.bookings.ListEligibleForTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list eligible bookings: %w", err)
	}
	return s.views(bookings), nil
}

// GetTutorBookings получает заявки, занятые тьютором
func (s *BookingService) GetTutorBookings(ctx context.Context, tutorID string) ([]*BookingView, error) {
	bookings, err := s.bookings.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list tutor bookings: %w", err)
	}
	return s.views(bookings), nil
}

// ApproveBooking занимает заявку тьютором. Побеждает первый записавший,
// приоритетов между тьюторами нет; проигравшие получают ErrAlreadyClaimed.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID uuid.UUID, tutorID string) (*BookingView, error) {
	now := s.clock.Now()

	booking, err := s.bookings.Claim(ctx, bookingID, tutorID, now)
	if err != nil {
		if model.IsRaceLost(err) {
			s.logger.Info("Booking approve lost",
				zap.String("booking_id", bookingID.String()),
				zap.String("tutor_id", tutorID),
				zap.String("reason", model.ErrorCode(err)),
			)
		}
		return nil, fmt.Errorf("approve booking: %w", err)
	}

	s.logger.Info("Booking approved",
		zap.String("booking_id", bookingID.String()),
		zap.String("tutor_id", tutorID),
	)
	s.events.Publish(model.NewBookingEvent(model.EventBookingApproved, booking, tutorID, now))

	return s.view(booking, now), nil
}

// RejectBooking записывает отказ тьютора. Отказ окончательный для этого тьютора;
// когда отказали все из пула, заявка переходит в rejected.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID uuid.UUID, tutorID string) (*BookingView, error) {
	now := s.clock.Now()

	booking, changed, err := s.bookings.AddRejection(ctx, bookingID, tutorID, now)
	if err != nil {
		return nil, fmt.Errorf("reject booking: %w", err)
	}
	if !changed {
		return s.view(booking, now), nil
	}

	s.logger.Info("Booking declined",
		zap.String("booking_id", bookingID.String()),
		zap.String("tutor_id", tutorID),
		zap.Int("rejections", len(booking.RejectedBy)),
		zap.Int("pool_size", booking.PoolSize),
	)
	s.events.Publish(model.NewBookingEvent(model.EventBookingDeclined, booking, tutorID, now))

	if booking.Status == model.BookingStatusRejected {
		s.logger.Info("Booking rejected by whole pool",
			zap.String("booking_id", bookingID.String()),
		)
		s.events.Publish(model.NewBookingEvent(model.EventBookingRejected, booking, "", now))
	}

	return s.view(booking, now), nil
}

// CancelBooking отменяет открытую заявку студентом
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, studentID string) (*BookingView, error) {
	now := s.clock.Now()

	booking, err := s.bookings.Cancel(ctx, bookingID, studentID, now)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	s.logger.Info("Booking canceled",
		zap.String("booking_id", bookingID.String()),
		zap.String("student_id", studentID),
	)
	s.events.Publish(model.NewBookingEvent(model.EventBookingCancelled, booking, "", now))

	return s.view(booking, now), nil
}
