package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/app"
	"github.com/Freeeeeet/plc_booking/internal/model"
	"github.com/Freeeeeet/plc_booking/internal/repository"
	"github.com/Freeeeeet/plc_booking/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Тесты идут против настоящего Postgres: TEST_DB_DSN=postgres://... go test ./internal/repository/
type stores struct {
	bookings *repository.BookingRepository
	ratings  *repository.RatingRepository
	history  *repository.HistoryRepository
	contacts *repository.ContactRepository
}

func newStores(t *testing.T) *stores {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrator, err := app.NewMigrator(pool, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(ctx))
	require.NoError(t, migrator.Close())

	_, err = pool.Exec(ctx, `TRUNCATE ratings, booking_history, bookings, contacts, link_codes, tutors`)
	require.NoError(t, err)

	repo := base.NewRepository(pool, base.RetryPolicy{MaxRetries: 5, Base: 10 * time.Millisecond})
	return &stores{
		bookings: repository.NewBookingRepository(repo),
		ratings:  repository.NewRatingRepository(repo),
		history:  repository.NewHistoryRepository(repo),
		contacts: repository.NewContactRepository(repo),
	}
}

var testNow = time.Date(2025, time.January, 9, 12, 0, 0, 0, time.UTC)

func tutorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("tutor%d", i+1)
	}
	return ids
}

func createBooking(t *testing.T, s *stores, pool []string) *model.Booking {
	t.Helper()

	b := &model.Booking{
		ID:           uuid.New(),
		StudentID:    "student1",
		Subject:      "Calculus",
		BookingDate:  model.NewDate(2025, time.January, 10),
		StartTime:    model.NewTimeOfDay(14, 0),
		EndTime:      model.NewTimeOfDay(15, 0),
		Status:       model.BookingStatusPending,
		PoolTutorIDs: pool,
		PoolSize:     len(pool),
		RejectedBy:   []string{},
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, s.bookings.Create(context.Background(), b))
	return b
}

func TestBookingRepository_RejectQuorum(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(3))

	got, changed, err := s.bookings.AddRejection(ctx, b.ID, "tutor1", testNow)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.BookingStatusPending, got.Status)

	got, changed, err = s.bookings.AddRejection(ctx, b.ID, "tutor2", testNow)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.BookingStatusPending, got.Status)
	require.Equal(t, []string{"tutor1", "tutor2"}, got.RejectedBy)

	// повторный отказ ничего не меняет
	got, changed, err = s.bookings.AddRejection(ctx, b.ID, "tutor2", testNow)
	require.NoError(t, err)
	require.False(t, changed)
	require.Len(t, got.RejectedBy, 2)

	_, err = s.bookings.Claim(ctx, b.ID, "tutor2", testNow)
	require.ErrorIs(t, err, model.ErrAlreadyDeclined)

	got, changed, err = s.bookings.AddRejection(ctx, b.ID, "tutor3", testNow)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.BookingStatusRejected, got.Status)
	require.Nil(t, got.TutorID)
	require.NoError(t, got.Invariant())

	_, err = s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
	require.ErrorIs(t, err, model.ErrAlreadyRejected)

	eligible, err := s.bookings.ListEligibleForTutor(ctx, "tutor3")
	require.NoError(t, err)
	require.Empty(t, eligible)
}

func TestBookingRepository_ClaimOnce(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(3))

	_, err := s.bookings.Claim(ctx, b.ID, "outsider", testNow)
	require.ErrorIs(t, err, model.ErrNotEligible)

	got, err := s.bookings.Claim(ctx, b.ID, "tutor2", testNow)
	require.NoError(t, err)
	require.Equal(t, model.BookingStatusApproved, got.Status)
	require.NotNil(t, got.TutorID)
	require.Equal(t, "tutor2", *got.TutorID)

	_, err = s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
	require.ErrorIs(t, err, model.ErrAlreadyClaimed)
	_, _, err = s.bookings.AddRejection(ctx, b.ID, "tutor3", testNow)
	require.ErrorIs(t, err, model.ErrAlreadyClaimed)
	_, err = s.bookings.Cancel(ctx, b.ID, "student1", testNow)
	require.ErrorIs(t, err, model.ErrAlreadyClaimed)

	claimed, err := s.bookings.ListByTutor(ctx, "tutor2")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	_, err = s.bookings.Claim(ctx, uuid.New(), "tutor1", testNow)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestBookingRepository_Cancel(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(2))

	_, err := s.bookings.Cancel(ctx, b.ID, "student2", testNow)
	require.ErrorIs(t, err, model.ErrNotOwner)

	got, err := s.bookings.Cancel(ctx, b.ID, "student1", testNow)
	require.NoError(t, err)
	require.Equal(t, model.BookingStatusCancelled, got.Status)

	_, err = s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
	require.ErrorIs(t, err, model.ErrNotPending)

	candidates, err := s.bookings.ListArchiveCandidates(ctx, model.NewDate(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, b.ID, candidates[0].ID)
}

func TestBookingRepository_ConcurrentClaim(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	pool := tutorIDs(16)
	b := createBooking(t, s, pool)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		lost    int
	)
	for _, tutorID := range pool {
		wg.Add(1)
		go func(tutorID string) {
			defer wg.Done()
			_, err := s.bookings.Claim(ctx, b.ID, tutorID, testNow)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, tutorID)
			case errors.Is(err, model.ErrAlreadyClaimed):
				lost++
			default:
				t.Errorf("unexpected error for %s: %v", tutorID, err)
			}
		}(tutorID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Equal(t, len(pool)-1, lost)

	got, err := s.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, winners[0], *got.TutorID)
	require.NoError(t, got.Invariant())
}

func TestBookingRepository_LastTutorRejectRacesApprove(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		b := createBooking(t, s, tutorIDs(2))
		_, _, err := s.bookings.AddRejection(ctx, b.ID, "tutor1", testNow)
		require.NoError(t, err)

		var (
			wg                  sync.WaitGroup
			claimErr, rejectErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, claimErr = s.bookings.Claim(ctx, b.ID, "tutor2", testNow)
		}()
		go func() {
			defer wg.Done()
			_, _, rejectErr = s.bookings.AddRejection(ctx, b.ID, "tutor2", testNow)
		}()
		wg.Wait()

		got, err := s.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		require.NoError(t, got.Invariant())

		switch got.Status {
		case model.BookingStatusApproved:
			require.NoError(t, claimErr)
			require.ErrorIs(t, rejectErr, model.ErrAlreadyClaimed)
			require.Equal(t, []string{"tutor1"}, got.RejectedBy)
		case model.BookingStatusRejected:
			require.NoError(t, rejectErr)
			require.ErrorIs(t, claimErr, model.ErrAlreadyRejected)
			require.Nil(t, got.TutorID)
		default:
			t.Fatalf("unexpected status %s", got.Status)
		}
	}
}

func TestBookingRepository_CancelRacesApprove(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		b := createBooking(t, s, tutorIDs(2))

		var (
			wg                  sync.WaitGroup
			claimErr, cancelErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, claimErr = s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = s.bookings.Cancel(ctx, b.ID, "student1", testNow)
		}()
		wg.Wait()

		// ровно один победитель
		require.True(t, (claimErr == nil) != (cancelErr == nil), "claim=%v cancel=%v", claimErr, cancelErr)

		got, err := s.bookings.GetByID(ctx, b.ID)
		require.NoError(t, err)
		require.NoError(t, got.Invariant())
		if claimErr == nil {
			require.ErrorIs(t, cancelErr, model.ErrAlreadyClaimed)
		} else {
			require.ErrorIs(t, claimErr, model.ErrNotPending)
		}
	}
}

func TestRatingRepository_ConcurrentRate(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(1))
	_, err := s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.ratings.CreateRating(ctx, &model.Rating{
				BookingID: b.ID,
				StudentID: "student1",
				TutorID:   "tutor1",
				Score:     i%5 + 1,
				CreatedAt: testNow,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, model.ErrAlreadyRated)
	}
	require.Equal(t, 1, succeeded)

	rating, err := s.ratings.GetRating(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "tutor1", rating.TutorID)
}

func TestHistoryRepository_ArchiveOnce(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(1))
	_, err := s.bookings.Claim(ctx, b.ID, "tutor1", testNow)
	require.NoError(t, err)

	review := "Great"
	require.NoError(t, s.ratings.CreateRating(ctx, &model.Rating{
		BookingID: b.ID, StudentID: "student1", TutorID: "tutor1", Score: 5, Review: &review, CreatedAt: testNow,
	}))

	builds := 0
	build := func(booking *model.Booking, rating *model.Rating) (*model.HistoryRecord, error) {
		builds++
		return model.NewHistoryRecord(booking, rating, model.DisplayCompleted, testNow), nil
	}

	rec, created, err := s.history.Archive(ctx, b.ID, build)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, model.DisplayCompleted, rec.FinalStatus)
	require.NotNil(t, rec.Rating)
	require.Equal(t, 5, rec.Rating.Score)

	again, created, err := s.history.Archive(ctx, b.ID, build)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, builds)
	require.Equal(t, rec.BookingID, again.BookingID)

	got, err := s.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, got.IsArchived())

	// архивная заявка больше не принимает оценку и не видна в кандидатах
	err = s.ratings.CreateRating(ctx, &model.Rating{BookingID: b.ID, StudentID: "student1", TutorID: "tutor1", Score: 4, CreatedAt: testNow})
	require.ErrorIs(t, err, model.ErrArchived)
	candidates, err := s.bookings.ListArchiveCandidates(ctx, model.NewDate(2025, time.February, 1))
	require.NoError(t, err)
	require.Empty(t, candidates)

	history, err := s.history.ListHistoryByUser(ctx, "tutor1")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestHistoryRepository_ArchiveBuildError(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	b := createBooking(t, s, tutorIDs(1))

	_, _, err := s.history.Archive(ctx, b.ID, func(*model.Booking, *model.Rating) (*model.HistoryRecord, error) {
		return nil, model.ErrNotTerminal
	})
	require.ErrorIs(t, err, model.ErrNotTerminal)

	got, err := s.bookings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.False(t, got.IsArchived())

	_, err = s.history.GetHistory(ctx, b.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestContactRepository_RedeemLinkCode(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	for _, code := range []*model.LinkCode{
		{Code: "ALICECODE", UserID: "alice", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow},
		{Code: "BOBCODE", UserID: "bob", ExpiresAt: testNow.Add(time.Minute), CreatedAt: testNow},
		{Code: "OLDCODE", UserID: "carol", ExpiresAt: testNow.Add(-time.Minute), CreatedAt: testNow},
	} {
		require.NoError(t, s.contacts.CreateLinkCode(ctx, code))
	}

	userID, err := s.contacts.RedeemLinkCode(ctx, "ALICECODE", 100, testNow)
	require.NoError(t, err)
	require.Equal(t, "alice", userID)

	_, err = s.contacts.RedeemLinkCode(ctx, "ALICECODE", 666, testNow)
	require.ErrorIs(t, err, model.ErrInvalidLinkCode)
	_, err = s.contacts.RedeemLinkCode(ctx, "OLDCODE", 666, testNow)
	require.ErrorIs(t, err, model.ErrInvalidLinkCode)
	_, err = s.contacts.RedeemLinkCode(ctx, "alice", 666, testNow)
	require.ErrorIs(t, err, model.ErrInvalidLinkCode)

	// тот же чат переходит к bob, у alice привязка снимается
	_, err = s.contacts.RedeemLinkCode(ctx, "BOBCODE", 100, testNow)
	require.NoError(t, err)

	userID, err = s.contacts.UserID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "bob", userID)
	_, err = s.contacts.TelegramChatID(ctx, "alice")
	require.ErrorIs(t, err, model.ErrNotFound)
}
