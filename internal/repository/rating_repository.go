package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RatingRepository struct {
	*base.Repository
}

func NewRatingRepository(repo *base.Repository) *RatingRepository {
	return &RatingRepository{Repository: repo}
}

// CreateRating вставляет оценку. Уникальность держит первичный ключ booking_id,
// FOR SHARE не даёт вставить оценку параллельно с архивацией.
func (r *RatingRepository) CreateRating(ctx context.Context, rating *model.Rating) error {
	err := r.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var archivedAt *time.Time
		err := tx.QueryRow(ctx,
			`SELECT archived_at FROM bookings WHERE id = $1 FOR SHARE`,
			rating.BookingID,
		).Scan(&archivedAt)
		if err != nil {
			if base.IsNotFound(err) {
				return model.ErrNotFound
			}
			return err
		}
		if archivedAt != nil {
			return model.ErrArchived
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ratings (booking_id, student_id, tutor_id, score, review, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			rating.BookingID,
			rating.StudentID,
			rating.TutorID,
			rating.Score,
			rating.Review,
			rating.CreatedAt,
		)
		if base.IsUniqueViolation(err) {
			return model.ErrAlreadyRated
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("create rating: %w", err)
	}

	return nil
}

// GetRating получает оценку по заявке
func (r *RatingRepository) GetRating(ctx context.Context, bookingID uuid.UUID) (*model.Rating, error) {
	query := `
		SELECT booking_id, student_id, tutor_id, score, review, created_at
		FROM ratings
		WHERE booking_id = $1
	`

	var rating model.Rating
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		return r.Pool().QueryRow(ctx, query, bookingID).Scan(
			&rating.BookingID,
			&rating.StudentID,
			&rating.TutorID,
			&rating.Score,
			&rating.Review,
			&rating.CreatedAt,
		)
	})
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get rating: %w", err)
	}

	return &rating, nil
}
