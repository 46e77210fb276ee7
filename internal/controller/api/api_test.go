package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/clock"
	"github.com/Freeeeeet/plc_booking/internal/events"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/pool"
	"github.com/Freeeeeet/plc_booking/internal/repository/memory"
	"github.com/Freeeeeet/plc_booking/internal/service"
	"github.com/Freeeeeet/plc_booking/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	clock    *clock.Manual
	contacts *service.ContactService
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()

	loc := time.UTC
	clk := clock.NewManual(time.Date(2025, time.March, 3, 8, 0, 0, 0, loc))
	store := memory.NewStore()
	roster := pool.NewStaticRoster(
		&model.Tutor{ID: "tutor1", Subjects: []string{"Physics"}, IsActive: true},
		&model.Tutor{ID: "tutor2", Subjects: []string{"Physics"}, IsActive: true},
	)
	projector := status.NewProjector(loc)
	hours := model.OperatingHours{Open: model.NewTimeOfDay(7, 30), Close: model.NewTimeOfDay(21, 0)}
	logger := zap.NewNop()
	bus := events.NewBus(logger)
	contacts := service.NewContactService(memory.NewContacts(), clk, 15*time.Minute, logger)

	h := NewHandler(
		service.NewBookingService(store, pool.NewRosterResolver(roster), projector, clk, hours, bus, logger),
		service.NewRatingService(store, store, projector, clk, bus, logger),
		service.NewArchiveService(store, store, store, projector, clk, 72*time.Hour, bus, logger),
		service.NewTutorService(roster, logger),
		contacts,
		bus,
		Options{RateLimitPerMin: rateLimit, EventBuffer: 8, BotUsername: "plc_booking_bot"},
		logger,
	)
	return &testServer{router: NewRouter(h), clock: clk, contacts: contacts}
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type bookingResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	DisplayStatus model.DisplayStatus `json:"display_status"`
}

func createBody() gin.H {
	return gin.H{
		"subject":    "Physics",
		"date":       "2025-03-04",
		"start_time": "10:00",
		"end_time":   "11:00",
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, 100)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIdentityRequired(t *testing.T) {
	s := newTestServer(t, 100)
	w := s.do(t, http.MethodGet, "/api/v1/me/bookings", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodPost, "/api/v1/bookings", "student1", createBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[bookingResponse](t, w)
	require.Equal(t, "pending", created.Status)

	w = s.do(t, http.MethodGet, "/api/v1/tutor/bookings/eligible", "tutor2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	eligible := decode[struct {
		Bookings []bookingResponse `json:"bookings"`
	}](t, w)
	require.Len(t, eligible.Bookings, 1)

	approvePath := fmt.Sprintf("/api/v1/tutor/bookings/%s/approve", created.ID)
	w = s.do(t, http.MethodPost, approvePath, "tutor1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, model.DisplayApproved, decode[bookingResponse](t, w).DisplayStatus)

	w = s.do(t, http.MethodPost, approvePath, "tutor2", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_claimed", decode[errorBody](t, w).Error)

	ratePath := fmt.Sprintf("/api/v1/bookings/%s/rating", created.ID)
	w = s.do(t, http.MethodPost, ratePath, "student1", gin.H{"score": 5})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	s.clock.Set(time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC))

	w = s.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, "student1", nil)
	require.Equal(t, model.DisplayCompleted, decode[bookingResponse](t, w).DisplayStatus)

	w = s.do(t, http.MethodPost, ratePath, "student1", gin.H{"score": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, ratePath, "student1", gin.H{"score": 5, "review": "great"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, ratePath, "student1", gin.H{"score": 4})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "already_rated", decode[errorBody](t, w).Error)

	w = s.do(t, http.MethodGet, ratePath, "tutor1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	archivePath := fmt.Sprintf("/api/v1/bookings/%s/archive", created.ID)
	w = s.do(t, http.MethodPost, archivePath, "tutor2", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodPost, archivePath, "student1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/history", "tutor1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		History []model.HistoryRecord `json:"history"`
	}](t, w)
	require.Len(t, history.History, 1)
	require.Equal(t, model.DisplayCompleted, history.History[0].FinalStatus)

	w = s.do(t, http.MethodGet, "/api/v1/history/"+created.ID, "tutor2", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateTutorProfile(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodPost, "/api/v1/bookings", "student1", gin.H{
		"subject": "Chemistry", "date": "2025-03-04", "start_time": "10:00", "end_time": "11:00",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/tutor/profile", "tutor3", gin.H{"subjects": []string{}, "is_active": true})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/tutor/profile", "tutor3", gin.H{
		"display_name": "Aigerim", "subjects": []string{"Chemistry"}, "is_active": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/bookings", "student1", gin.H{
		"subject": "Chemistry", "date": "2025-03-04", "start_time": "10:00", "end_time": "11:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateBooking_BadRequests(t *testing.T) {
	s := newTestServer(t, 100)

	tests := []struct {
		name   string
		edit   func(gin.H)
		status int
		code   string
	}{
		{"missing subject", func(b gin.H) { delete(b, "subject") }, http.StatusBadRequest, "invalid_input"},
		{"bad date", func(b gin.H) { b["date"] = "04.03.2025" }, http.StatusBadRequest, "invalid_input"},
		{"bad time", func(b gin.H) { b["start_time"] = "25:00" }, http.StatusBadRequest, "invalid_input"},
		{"reversed range", func(b gin.H) { b["start_time"] = "12:00" }, http.StatusBadRequest, "invalid_time_range"},
		{"past", func(b gin.H) { b["date"] = "2025-03-01" }, http.StatusBadRequest, "past_booking"},
		{"no tutors", func(b gin.H) { b["subject"] = "Chemistry" }, http.StatusUnprocessableEntity, "no_tutors_available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := createBody()
			tt.edit(body)
			w := s.do(t, http.MethodPost, "/api/v1/bookings", "student1", body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.Equal(t, tt.code, decode[errorBody](t, w).Error)
		})
	}
}

func TestBookingID_Errors(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", "student1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/bookings/7b0c4dc9-0fd3-4bd6-9d0e-2d5c4a1b8b11", "student1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodGet, "/api/v1/me/bookings", "student1", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/v1/me/bookings", "student1", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// лимит у каждого пользователя свой
	w = s.do(t, http.MethodGet, "/api/v1/me/bookings", "student2", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTelegramLink(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodPost, "/api/v1/me/telegram-link", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/me/telegram-link", "student1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := decode[telegramLinkResponse](t, w)
	require.NotEmpty(t, link.Code)
	require.Equal(t, "/start "+link.Code, link.StartCommand)
	require.Equal(t, "https://t.me/plc_booking_bot?start="+link.Code, link.Link)
	require.True(t, link.ExpiresAt.After(s.clock.Now()))

	userID, err := s.contacts.RedeemLinkCode(context.Background(), link.Code, 42)
	require.NoError(t, err)
	require.Equal(t, "student1", userID)
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(fmt.Errorf("get booking: %w", model.ErrStorageUnavailable)))
	require.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("approve booking: %w", model.ErrNotPending)))
	require.Equal(t, http.StatusForbidden, HTTPStatus(model.ErrNotEligible))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestVisibleTo(t *testing.T) {
	b := &model.Booking{StudentID: "student1", PoolTutorIDs: []string{"tutor1"}}
	ev := model.NewBookingEvent(model.EventBookingCreated, b, "", time.Now())

	require.True(t, visibleTo(ev, "student1"))
	require.True(t, visibleTo(ev, "tutor1"))
	require.False(t, visibleTo(ev, "tutor2"))
}
