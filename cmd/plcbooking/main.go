package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/app"
	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/config"
	"github.com/Freeeeeet/plc_booking/internal/controller"
	"github.com/Freeeeeet/plc_booking/internal/controller/api"
	"github.com/Freeeeeet/plc_booking/internal/events"
	"github.com/Freeeeeet/plc_booking/internal/notifier"
	"github.com/Freeeeeet/plc_booking/internal/pool"
	"github.com/Freeeeeet/plc_booking/internal/repository"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/Freeeeeet/plc_booking/internal/service"
	"github.com/Freeeeeet/plc_booking/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)

	defer logger.Sync()

	logger.Info("Starting PLC booking service",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("timezone", cfg.Location().String()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	migrator, err := app.NewMigrator(dbPool, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	baseRepo := base.NewRepository(dbPool, base.RetryPolicy{
		MaxRetries: cfg.StorageMaxRetries,
		Base:       cfg.StorageRetryBase,
	})
	bookingRepo := repository.NewBookingRepository(baseRepo)
	ratingRepo := repository.NewRatingRepository(baseRepo)
	historyRepo := repository.NewHistoryRepository(baseRepo)
	rosterRepo := repository.NewRosterRepository(baseRepo)
	contactRepo := repository.NewContactRepository(baseRepo)

	bus := events.NewBus(logger)
	defer bus.Close()

	projector := status.NewProjector(cfg.Location())
	clk := clock.Real{}

	bookingService := service.NewBookingService(
		bookingRepo,
		pool.NewRosterResolver(rosterRepo),
		projector,
		clk,
		cfg.Hours(),
		bus,
		logger,
	)
	ratingService := service.NewRatingService(bookingRepo, ratingRepo, projector, clk, bus, logger)
	archiveService := service.NewArchiveService(bookingRepo, ratingRepo, historyRepo, projector, clk, cfg.RatingGrace, bus, logger)
	tutorService := service.NewTutorService(rosterRepo, logger)
	contactService := service.NewContactService(contactRepo, clk, cfg.TelegramLinkTTL, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		relay := events.NewRedisRelay(client, cfg.RedisEventsChannel)
		redisEvents, unsubscribe := bus.Subscribe(cfg.EventBuffer)
		defer unsubscribe()
		g.Go(func() error {
			return events.Relay(ctx, redisEvents, "redis", relay, logger)
		})
	}

	if cfg.TelegramToken != "" {
		botInstance, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}

		botController := controller.NewBotController(botInstance, contactService, bookingService, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot started without commands menu", zap.Error(err))
		}
		g.Go(func() error {
			return botController.Start(ctx)
		})

		telegram := notifier.NewTelegramNotifier(botInstance, contactRepo, logger)
		telegramEvents, unsubscribe := bus.Subscribe(cfg.EventBuffer)
		defer unsubscribe()
		g.Go(func() error {
			return events.Relay(ctx, telegramEvents, "telegram", telegram, logger)
		})
	} else {
		logger.Info("TELEGRAM_TOKEN is empty, telegram notifications disabled")
	}

	scheduler := app.NewScheduler(archiveService, cfg.ArchiveSweepSpec, logger)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(bookingService, ratingService, archiveService, tutorService, contactService, bus, api.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		EventBuffer:     cfg.EventBuffer,
		BotUsername:     cfg.TelegramBotUsername,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")

		// Закрытая шина завершает SSE-потоки, иначе Shutdown ждёт их до таймаута
		bus.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
