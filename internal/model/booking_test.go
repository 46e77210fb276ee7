package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pendingBooking() *Booking {
	return &Booking{
		StudentID:    "student1",
		Subject:      "Physics",
		BookingDate:  NewDate(2025, time.January, 10),
		StartTime:    NewTimeOfDay(14, 0),
		EndTime:      NewTimeOfDay(15, 0),
		Status:       BookingStatusPending,
		PoolTutorIDs: []string{"tutor1", "tutor2", "tutor3"},
		PoolSize:     3,
	}
}

func TestCheckClaim(t *testing.T) {
	b := pendingBooking()
	require.NoError(t, b.CheckClaim("tutor1"))
	require.ErrorIs(t, b.CheckClaim("stranger"), ErrNotEligible)

	b.ApplyRejection("tutor1", time.Now())
	require.ErrorIs(t, b.CheckClaim("tutor1"), ErrAlreadyDeclined)

	b.ApplyClaim("tutor2", time.Now())
	require.ErrorIs(t, b.CheckClaim("tutor3"), ErrAlreadyClaimed)
	require.NoError(t, b.Invariant())
}

func TestCheckReject(t *testing.T) {
	b := pendingBooking()
	noop, err := b.CheckReject("tutor1")
	require.NoError(t, err)
	require.False(t, noop)

	b.ApplyRejection("tutor1", time.Now())
	noop, err = b.CheckReject("tutor1")
	require.NoError(t, err)
	require.True(t, noop)

	b.ApplyRejection("tutor2", time.Now())
	require.Equal(t, BookingStatusPending, b.Status)
	b.ApplyRejection("tutor3", time.Now())
	require.Equal(t, BookingStatusRejected, b.Status)
	require.NoError(t, b.Invariant())

	_, err = b.CheckReject("tutor3")
	require.ErrorIs(t, err, ErrAlreadyRejected)
	require.ErrorIs(t, b.CheckClaim("tutor2"), ErrAlreadyRejected)
}

func TestCheckCancel(t *testing.T) {
	b := pendingBooking()
	require.ErrorIs(t, b.CheckCancel("student2"), ErrNotOwner)
	require.NoError(t, b.CheckCancel("student1"))

	b.Status = BookingStatusCancelled
	require.ErrorIs(t, b.CheckCancel("student1"), ErrNotPending)
	require.ErrorIs(t, b.CheckClaim("tutor1"), ErrNotPending)
}

func TestInvariant(t *testing.T) {
	b := pendingBooking()
	tutor := "tutor1"
	b.TutorID = &tutor
	require.ErrorIs(t, b.Invariant(), ErrInvariantViolated)

	b = pendingBooking()
	b.RejectedBy = []string{"tutor1", "tutor2", "tutor3"}
	require.ErrorIs(t, b.Invariant(), ErrInvariantViolated)
}

func TestClone(t *testing.T) {
	b := pendingBooking()
	b.ApplyClaim("tutor1", time.Now())
	c := b.Clone()
	c.PoolTutorIDs[0] = "changed"
	*c.TutorID = "changed"
	require.Equal(t, "tutor1", b.PoolTutorIDs[0])
	require.Equal(t, "tutor1", *b.TutorID)
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:30")
	require.NoError(t, err)
	require.Equal(t, 7, tod.Hour())
	require.Equal(t, 30, tod.Minute())
	require.Equal(t, "07:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	require.ErrorIs(t, err, ErrInvalidInput)

	hours := OperatingHours{Open: NewTimeOfDay(7, 30), Close: NewTimeOfDay(21, 0)}
	require.True(t, hours.Contains(NewTimeOfDay(7, 30), NewTimeOfDay(21, 0)))
	require.False(t, hours.Contains(NewTimeOfDay(7, 0), NewTimeOfDay(8, 0)))
	require.False(t, hours.Contains(NewTimeOfDay(20, 0), NewTimeOfDay(21, 30)))
}

func TestErrorCode(t *testing.T) {
	err := fmt.Errorf("approve booking: %w", ErrAlreadyClaimed)
	require.Equal(t, "already_claimed", ErrorCode(err))
	require.True(t, IsRaceLost(err))
	require.Equal(t, "internal", ErrorCode(errors.New("boom")))
}
