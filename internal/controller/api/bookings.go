package api

import (
	"net/http"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createBookingRequest struct {
	Subject     string `json:"subject" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime     string `json:"end_time" validate:"required,datetime=15:04"`
}

type rateRequest struct {
	Score  int     `json:"score" validate:"required,min=1,max=5"`
	Review *string `json:"review" validate:"omitempty,max=2000"`
}

type tutorProfileRequest struct {
	DisplayName string   `json:"display_name" validate:"max=120"`
	Subjects    []string `json:"subjects" validate:"max=20,dive,max=120"`
	IsActive    bool     `json:"is_active"`
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking id")
		return uuid.Nil, false
	}
	return id, true
}

// CreateBooking POST /api/v1/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if !h.bind(c, &req) {
		return
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	end, err := model.ParseTimeOfDay(req.EndTime)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	view, err := h.bookings.CreateBooking(c.Request.Context(), service.CreateBookingInput{
		StudentID:   currentUser(c),
		Subject:     req.Subject,
		Description: req.Description,
		Date:        date,
		Start:       start,
		End:         end,
	})
	if err != nil {
		h.fail(c, "create booking", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetBooking GET /api/v1/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get booking", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelBooking POST /api/v1/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.CancelBooking(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.fail(c, "cancel booking", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RateBooking POST /api/v1/bookings/:id/rating
func (h *Handler) RateBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req rateRequest
	if !h.bind(c, &req) {
		return
	}
	rating, err := h.ratings.Rate(c.Request.Context(), service.RateInput{
		BookingID: id,
		StudentID: currentUser(c),
		Score:     req.Score,
		Review:    req.Review,
	})
	if err != nil {
		h.fail(c, "rate booking", err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// GetRating GET /api/v1/bookings/:id/rating
func (h *Handler) GetRating(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	rating, err := h.ratings.GetRating(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get rating", err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

// ArchiveBooking POST /api/v1/bookings/:id/archive
func (h *Handler) ArchiveBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	rec, err := h.archive.Archive(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.fail(c, "archive booking", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// MyBookings GET /api/v1/me/bookings
func (h *Handler) MyBookings(c *gin.Context) {
	views, err := h.bookings.GetStudentBookings(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, "list student bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}

// EligibleBookings GET /api/v1/tutor/bookings/eligible
func (h *Handler) EligibleBookings(c *gin.Context) {
	views, err := h.bookings.GetEligibleBookings(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, "list eligible bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}

// ClaimedBookings GET /api/v1/tutor/bookings/claimed
func (h *Handler) ClaimedBookings(c *gin.Context) {
	views, err := h.bookings.GetTutorBookings(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, "list tutor bookings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}

// ApproveBooking POST /api/v1/tutor/bookings/:id/approve
func (h *Handler) ApproveBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.ApproveBooking(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.fail(c, "approve booking", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RejectBooking POST /api/v1/tutor/bookings/:id/reject
func (h *Handler) RejectBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.RejectBooking(c.Request.Context(), id, currentUser(c))
	if err != nil {
		h.fail(c, "reject booking", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateTutorProfile PUT /api/v1/tutor/profile
func (h *Handler) UpdateTutorProfile(c *gin.Context) {
	var req tutorProfileRequest
	if !h.bind(c, &req) {
		return
	}
	tutor, err := h.tutors.UpdateProfile(c.Request.Context(), service.TutorProfileInput{
		TutorID:     currentUser(c),
		DisplayName: req.DisplayName,
		Subjects:    req.Subjects,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.fail(c, "update tutor profile", err)
		return
	}
	c.JSON(http.StatusOK, tutor)
}
