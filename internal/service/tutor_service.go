package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"go.uber.org/zap"
)

// TutorStore запись в ростер тьюторов
type TutorStore interface {
	Upsert(ctx context.Context, tutor *model.Tutor) error
}

// TutorProfileInput профиль, который тьютор ведёт сам
type TutorProfileInput struct {
	TutorID     string
	DisplayName string
	Subjects    []string
	IsActive    bool
}

// TutorService ведение ростера. Изменения не трогают пулы уже созданных заявок.
type TutorService struct {
	tutors TutorStore
	logger *zap.Logger
}

func NewTutorService(tutors TutorStore, logger *zap.Logger) *TutorService {
	return &TutorService{
		tutors: tutors,
		logger: logger,
	}
}

// UpdateProfile создаёт или обновляет запись тьютора
func (s *TutorService) UpdateProfile(ctx context.Context, in TutorProfileInput) (*model.Tutor, error) {
	if strings.TrimSpace(in.TutorID) == "" {
		return nil, fmt.Errorf("tutor id is required: %w", model.ErrInvalidInput)
	}

	subjects := make([]string, 0, len(in.Subjects))
	for _, subj := range in.Subjects {
		if subj = strings.TrimSpace(subj); subj != "" {
			subjects = append(subjects, subj)
		}
	}
	slices.Sort(subjects)
	subjects = slices.Compact(subjects)
	if in.IsActive && len(subjects) == 0 {
		return nil, fmt.Errorf("active tutor needs at least one subject: %w", model.ErrInvalidInput)
	}

	tutor := &model.Tutor{
		ID:          in.TutorID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Subjects:    subjects,
		IsActive:    in.IsActive,
	}
	if err := s.tutors.Upsert(ctx, tutor); err != nil {
		return nil, fmt.Errorf("update tutor profile: %w", err)
	}

	s.logger.Info("Tutor profile updated",
		zap.String("tutor_id", tutor.ID),
		zap.Strings("subjects", tutor.Subjects),
		zap.Bool("is_active", tutor.IsActive),
	)
	return tutor, nil
}
