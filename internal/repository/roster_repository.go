package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
)

// RosterRepository ростер тьюторов, источник данных для пула
type RosterRepository struct {
	*base.Repository
}

func NewRosterRepository(repo *base.Repository) *RosterRepository {
	return &RosterRepository{Repository: repo}
}

// Upsert создаёт или обновляет тьютора
func (r *RosterRepository) Upsert(ctx context.Context, tutor *model.Tutor) error {
	query := `
		INSERT INTO tutors (id, display_name, subjects, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    subjects = EXCLUDED.subjects,
		    is_active = EXCLUDED.is_active
		RETURNING created_at
	`

	err := r.WithRetry(ctx, func(ctx context.Context) error {
		return r.Pool().QueryRow(
			ctx, query,
			tutor.ID,
			tutor.DisplayName,
			tutor.Subjects,
			tutor.IsActive,
		).Scan(&tutor.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("upsert tutor: %w", err)
	}

	return nil
}

// ActiveTutors снимок активных тьюторов
func (r *RosterRepository) ActiveTutors(ctx context.Context) ([]*model.Tutor, error) {
	query := `
		SELECT id, display_name, subjects, is_active, created_at
		FROM tutors
		WHERE is_active
		ORDER BY id
	`

	var tutors []*model.Tutor
	err := r.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := r.Pool().Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		tutors = nil
		for rows.Next() {
			var t model.Tutor
			if err := rows.Scan(&t.ID, &t.DisplayName, &t.Subjects, &t.IsActive, &t.CreatedAt); err != nil {
				return fmt.Errorf("scan tutor: %w", err)
			}
			tutors = append(tutors, &t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("get active tutors: %w", err)
	}

	return tutors, nil
}
