package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const bookingColumns = `id, student_id, tutor_id, subject, description, booking_date, start_time, end_time,
	status, pool_tutor_ids, pool_size, rejected_by, archived_at, created_at, updated_at`

// scanner общий интерфейс pgx.Row и pgx.Rows
type scanner interface {
	Scan(dest ...any) error
}

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(repo *base.Repository) *BookingRepository {
	return &BookingRepository{Repository: repo}
}

func toPgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func fromPgTime(t pgtype.Time) model.TimeOfDay {
	return model.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond / time.Minute)
}

func scanBooking(row scanner) (*model.Booking, error) {
	var (
		b          model.Booking
		start, end pgtype.Time
	)
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.TutorID,
		&b.Subject,
		&b.Description,
		&b.BookingDate,
		&start,
		&end,
		&b.Status,
		&b.PoolTutorIDs,
		&b.PoolSize,
		&b.RejectedBy,
		&b.ArchivedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.StartTime = fromPgTime(start)
	b.EndTime = fromPgTime(end)
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

// Create создаёт новую заявку с замороженным пулом тьюторов
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (id, student_id, subject, description, booking_date, start_time, end_time,
			status, pool_tutor_ids, pool_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`

	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	err := r.WithRetry(ctx, func(ctx context.Context) error {
		_, err := r.Pool().Exec(
			ctx, query,
			booking.ID,
			booking.StudentID,
			booking.Subject,
			booking.Description,
			booking.BookingDate,
			toPgTime(booking.StartTime),
			toPgTime(booking.EndTime),
			booking.Status,
			booking.PoolTutorIDs,
			booking.PoolSize,
			booking.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking *model.Booking
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		booking, err = scanBooking(r.Pool().QueryRow(ctx, query, id))
		return err
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

func (r *BookingRepository) list(ctx context.Context, what, where string, args ...any) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + where

	var bookings []*model.Booking
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query, args...)
		if err != nil {
			return err
		}
		bookings, err = collectBookings(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get bookings %s: %w", what, err)
	}

	return bookings, nil
}

// ListByStudent получает все заявки студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID string) ([]*model.Booking, error) {
	return r.list(ctx, "by student",
		`student_id = $1 ORDER BY created_at DESC`, studentID)
}

// ListEligibleForTutor получает открытые заявки, на которые тьютор ещё может ответить
func (r *BookingRepository) ListEligibleForTutor(ctx context.Context, tutorID string) ([]*model.Booking, error) {
	return r.list(ctx, "eligible for tutor", `
		status = 'pending'
		  AND $1 = ANY(pool_tutor_ids)
		  AND NOT ($1 = ANY(rejected_by))
		ORDER BY booking_date, start_time`, tutorID)
}

// ListByTutor получает заявки, занятые тьютором
func (r *BookingRepository) ListByTutor(ctx context.Context, tutorID string) ([]*model.Booking, error) {
	return r.list(ctx, "by tutor",
		`tutor_id = $1 ORDER BY booking_date DESC, start_time DESC`, tutorID)
}

// ListArchiveCandidates неархивные терминальные заявки и одобренные с датой не позже through
func (r *BookingRepository) ListArchiveCandidates(ctx context.Context, through time.Time) ([]*model.Booking, error) {
	return r.list(ctx, "for archive", `
		archived_at IS NULL
		  AND (status IN ('rejected', 'cancelled')
		       OR (status = 'approved' AND booking_date <= $1))
		ORDER BY booking_date`, through)
}

// Claim занимает заявку одним условным UPDATE.
// Проигравшие получают причину по свежему чтению: статус меняется только вперёд, поэтому причина стабильна.
func (r *BookingRepository) Claim(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET tutor_id = $2, status = 'approved', updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND $2 = ANY(pool_tutor_ids)
		  AND NOT ($2 = ANY(rejected_by))
		  AND archived_at IS NULL
		RETURNING ` + bookingColumns

	var booking *model.Booking
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		booking, err = scanBooking(r.Pool().QueryRow(ctx, query, id, tutorID, at))
		return err
	})
	if err == nil {
		return booking, nil
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("claim booking: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckClaim(tutorID); err != nil {
		return nil, err
	}
	return nil, model.ErrNotPending
}

// AddRejection добавляет отказ и переводит заявку в rejected, когда отказал весь пул
func (r *BookingRepository) AddRejection(ctx context.Context, id uuid.UUID, tutorID string, at time.Time) (*model.Booking, bool, error) {
	query := `
		UPDATE bookings
		SET rejected_by = array_append(rejected_by, $2::text),
		    status = CASE WHEN cardinality(rejected_by) + 1 >= pool_size THEN 'rejected' ELSE status END,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
		  AND $2 = ANY(pool_tutor_ids)
		  AND NOT ($2 = ANY(rejected_by))
		  AND archived_at IS NULL
		RETURNING ` + bookingColumns

	var booking *model.Booking
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		booking, err = scanBooking(r.Pool().QueryRow(ctx, query, id, tutorID, at))
		return err
	})
	if err == nil {
		return booking, true, nil
	}
	if !base.IsNotFound(err) {
		return nil, false, fmt.Errorf("reject booking: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	noop, err := current.CheckReject(tutorID)
	if err != nil {
		return nil, false, err
	}
	if noop {
		return current, false, nil
	}
	return nil, false, model.ErrNotPending
}

// Cancel отменяет открытую заявку владельцем
func (r *BookingRepository) Cancel(ctx context.Context, id uuid.UUID, studentID string, at time.Time) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'cancelled', updated_at = $3
		WHERE id = $1 AND student_id = $2 AND status = 'pending'
		RETURNING ` + bookingColumns

	var booking *model.Booking
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		booking, err = scanBooking(r.Pool().QueryRow(ctx, query, id, studentID, at))
		return err
	})
	if err == nil {
		return booking, nil
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := current.CheckCancel(studentID); err != nil {
		return nil, err
	}
	return nil, model.ErrNotPending
}
