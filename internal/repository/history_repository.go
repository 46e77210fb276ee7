package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const historyColumns = `booking_id, student_id, tutor_id, subject, description, booking_date, start_time, end_time,
	final_status, pool_size, rejected_by, rating_score, rating_review, rated_at, booked_at, archived_at`

type HistoryRepository struct {
	*base.Repository
}

func NewHistoryRepository(repo *base.Repository) *HistoryRepository {
	return &HistoryRepository{Repository: repo}
}

func scanHistory(row scanner) (*model.HistoryRecord, error) {
	var (
		rec          model.HistoryRecord
		start, end   pgtype.Time
		ratingScore  *int
		ratingReview *string
		ratedAt      *time.Time
	)
	err := row.Scan(
		&rec.BookingID,
		&rec.StudentID,
		&rec.TutorID,
		&rec.Subject,
		&rec.Description,
		&rec.BookingDate,
		&start,
		&end,
		&rec.FinalStatus,
		&rec.PoolSize,
		&rec.RejectedBy,
		&ratingScore,
		&ratingReview,
		&ratedAt,
		&rec.BookedAt,
		&rec.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.StartTime = fromPgTime(start)
	rec.EndTime = fromPgTime(end)

	if ratingScore != nil && rec.TutorID != nil {
		rec.Rating = &model.Rating{
			BookingID: rec.BookingID,
			StudentID: rec.StudentID,
			TutorID:   *rec.TutorID,
			Score:     *ratingScore,
			Review:    ratingReview,
		}
		if ratedAt != nil {
			rec.Rating.CreatedAt = *ratedAt
		}
	}
	return &rec, nil
}

// Archive переносит заявку в историю в одной транзакции.
// Строка заявки блокируется FOR UPDATE, поэтому параллельные вызовы видят запись друг друга.
func (r *HistoryRepository) Archive(ctx context.Context, bookingID uuid.UUID, build func(*model.Booking, *model.Rating) (*model.HistoryRecord, error)) (*model.HistoryRecord, bool, error) {
	var (
		record  *model.HistoryRecord
		created bool
	)

	err := r.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		created = false

		booking, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, bookingID))
		if err != nil {
			if base.IsNotFound(err) {
				return model.ErrNotFound
			}
			return fmt.Errorf("lock booking: %w", err)
		}

		existing, err := scanHistory(tx.QueryRow(ctx,
			`SELECT `+historyColumns+` FROM booking_history WHERE booking_id = $1`, bookingID))
		if err == nil {
			record = existing
			return nil
		}
		if !base.IsNotFound(err) {
			return fmt.Errorf("get history: %w", err)
		}

		var rating *model.Rating
		var rt model.Rating
		err = tx.QueryRow(ctx, `
			SELECT booking_id, student_id, tutor_id, score, review, created_at
			FROM ratings WHERE booking_id = $1
		`, bookingID).Scan(&rt.BookingID, &rt.StudentID, &rt.TutorID, &rt.Score, &rt.Review, &rt.CreatedAt)
		switch {
		case err == nil:
			rating = &rt
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("get rating: %w", err)
		}

		rec, err := build(booking, rating)
		if err != nil {
			return err
		}

		var score *int
		var review *string
		var ratedAt *time.Time
		if rec.Rating != nil {
			score = &rec.Rating.Score
			review = rec.Rating.Review
			ratedAt = &rec.Rating.CreatedAt
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_history (`+historyColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			rec.BookingID,
			rec.StudentID,
			rec.TutorID,
			rec.Subject,
			rec.Description,
			rec.BookingDate,
			toPgTime(rec.StartTime),
			toPgTime(rec.EndTime),
			rec.FinalStatus,
			rec.PoolSize,
			rec.RejectedBy,
			score,
			review,
			ratedAt,
			rec.BookedAt,
			rec.ArchivedAt,
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE bookings SET archived_at = $2, updated_at = $2 WHERE id = $1`,
			bookingID, rec.ArchivedAt)
		if err != nil {
			return fmt.Errorf("mark archived: %w", err)
		}

		record = rec
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("archive booking: %w", err)
	}

	return record, created, nil
}

// GetHistory получает запись истории по заявке
func (r *HistoryRepository) GetHistory(ctx context.Context, bookingID uuid.UUID) (*model.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM booking_history WHERE booking_id = $1`

	var rec *model.HistoryRecord
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		rec, err = scanHistory(r.Pool().QueryRow(ctx, query, bookingID))
		return err
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get history: %w", err)
	}

	return rec, nil
}

// ListHistoryByUser история студента или тьютора
func (r *HistoryRepository) ListHistoryByUser(ctx context.Context, userID string) ([]*model.HistoryRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM booking_history
		WHERE student_id = $1 OR tutor_id = $1
		ORDER BY archived_at DESC
	`

	var records []*model.HistoryRecord
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		records = nil
		for rows.Next() {
			rec, err := scanHistory(rows)
			if err != nil {
				return fmt.Errorf("scan history: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return records, nil
}
