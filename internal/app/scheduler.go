package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper периодическая архивация заявок
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	sweeper Sweeper
	spec    string
	cron    *cron.Cron
	logger  *zap.Logger
}

// NewScheduler создаёт новый планировщик
func NewScheduler(sweeper Sweeper, spec string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		spec:    spec,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting background scheduler", zap.String("archive_sweep", s.spec))

	if _, err := s.cron.AddFunc(s.spec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule archive sweep %q: %w", s.spec, err)
	}

	// Первый запуск сразу при старте
	go s.runSweep(ctx)

	s.cron.Start()
	return nil
}

// Stop останавливает фоновые задачи и ждёт выполняющиеся
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

// runSweep архивирует терминальные заявки
func (s *Scheduler) runSweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	archived, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Archive sweep failed", zap.Error(err))
		return
	}

	if archived > 0 {
		s.logger.Info("Archive sweep completed", zap.Int("archived", archived))
	}
}
