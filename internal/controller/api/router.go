// Package api HTTP-интерфейс сервиса бронирования на gin.
package api

import (
	"net/http"

	"github.com/Freeeeeet/plc_booking/internal/events"
	"github.com/Freeeeeet/plc_booking/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Handler struct {
	bookings *service.BookingService
	ratings  *service.RatingService
	archive  *service.ArchiveService
	tutors   *service.TutorService
	contacts *service.ContactService
	bus      *events.Bus
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
}

// Options параметры HTTP-слоя
type Options struct {
	RateLimitPerMin int
	EventBuffer     int
	// BotUsername имя Telegram-бота для ссылки t.me, пустое если бот выключен
	BotUsername string
}

func NewHandler(
	bookings *service.BookingService,
	ratings *service.RatingService,
	archive *service.ArchiveService,
	tutors *service.TutorService,
	contacts *service.ContactService,
	bus *events.Bus,
	opts Options,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bookings: bookings,
		ratings:  ratings,
		archive:  archive,
		tutors:   tutors,
		contacts: contacts,
		bus:      bus,
		opts:     opts,
		validate: validator.New(),
		logger:   logger,
	}
}

// NewRouter регистрирует все маршруты API
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(Identity(), RateLimit(NewLimiterStore(h.opts.RateLimitPerMin), h.logger))

	bookings := v1.Group("/bookings")
	bookings.POST("", h.CreateBooking)
	bookings.GET("/:id", h.GetBooking)
	bookings.POST("/:id/cancel", h.CancelBooking)
	bookings.POST("/:id/rating", h.RateBooking)
	bookings.GET("/:id/rating", h.GetRating)
	bookings.POST("/:id/archive", h.ArchiveBooking)

	v1.GET("/me/bookings", h.MyBookings)
	v1.POST("/me/telegram-link", h.CreateTelegramLink)

	v1.PUT("/tutor/profile", h.UpdateTutorProfile)

	tutor := v1.Group("/tutor/bookings")
	tutor.GET("/eligible", h.EligibleBookings)
	tutor.GET("/claimed", h.ClaimedBookings)
	tutor.POST("/:id/approve", h.ApproveBooking)
	tutor.POST("/:id/reject", h.RejectBooking)

	v1.GET("/history", h.MyHistory)
	v1.GET("/history/:id", h.GetHistory)

	v1.GET("/events", h.Events)

	return r
}
