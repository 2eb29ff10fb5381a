package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/pkg/response"
)

func createBooking(t *testing.T, env *testEnv, day, start, end string) *api.BookingResponse {
	t.Helper()
	got, err := env.svc.CreateBooking(context.Background(), &api.BookingRequest{
		StudentID:    "stud-1",
		InstructorID: "instr-1",
		CourseID:     "course-b",
		BookingDate:  day,
		StartTime:    start,
		EndTime:      end,
	})
	require.NoError(t, err)
	return got
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	got := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "scheduled", got.Status)
	assert.Equal(t, 60, got.DurationMinutes)
	assert.Equal(t, "2024-06-10", got.BookingDate)
	assert.Contains(t, env.locker.locked, "booking:instr-1:2024-06-10")
}

func TestCreateBookingValidation(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	ctx := context.Background()

	cases := []api.BookingRequest{
		{InstructorID: "instr-1", CourseID: "course-b", BookingDate: "2024-06-10", StartTime: "10:00", EndTime: "11:00"},
		{StudentID: "stud-1", CourseID: "course-b", BookingDate: "2024-06-10", StartTime: "10:00", EndTime: "11:00"},
		{StudentID: "stud-1", InstructorID: "instr-1", BookingDate: "2024-06-10", StartTime: "10:00", EndTime: "11:00"},
		{StudentID: "stud-1", InstructorID: "instr-1", CourseID: "course-b", BookingDate: "June 10", StartTime: "10:00", EndTime: "11:00"},
		{StudentID: "stud-1", InstructorID: "instr-1", CourseID: "course-b", BookingDate: "2024-06-10", StartTime: "11:00", EndTime: "10:00"},
	}

	for i, req := range cases {
		req := req
		_, err := env.svc.CreateBooking(ctx, &req)
		assert.ErrorIs(t, err, response.ErrValidation, "case %d", i)
	}
}

func TestCreateBookingConflict(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	createBooking(t, env, "2024-06-10", "10:00", "11:00")

	_, err := env.svc.CreateBooking(context.Background(), &api.BookingRequest{
		StudentID:    "stud-2",
		InstructorID: "instr-1",
		CourseID:     "course-b",
		BookingDate:  "2024-06-10",
		StartTime:    "10:30",
		EndTime:      "11:30",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, response.ErrConflict)

	var conflictErr *ConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "10:00", conflictErr.Conflicts[0].StartTime)

	// only the first booking exists
	assert.Len(t, env.store.bookings, 1)
}

func TestCreateBookingAdjacentIsFine(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	createBooking(t, env, "2024-06-10", "10:00", "11:00")
	got := createBooking(t, env, "2024-06-10", "11:00", "12:00")

	assert.NotEmpty(t, got.ID)
	assert.Len(t, env.store.bookings, 2)
}

func TestCreateBookingLocked(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	env.locker.held["booking:instr-1:2024-06-10"] = true

	_, err := env.svc.CreateBooking(context.Background(), &api.BookingRequest{
		StudentID:    "stud-1",
		InstructorID: "instr-1",
		CourseID:     "course-b",
		BookingDate:  "2024-06-10",
		StartTime:    "10:00",
		EndTime:      "11:00",
	})
	assert.ErrorIs(t, err, response.ErrLocked)
}

func TestCreateBookingConstraintBackstop(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	env.store.createBookingErr = response.ErrConflict

	_, err := env.svc.CreateBooking(context.Background(), &api.BookingRequest{
		StudentID:    "stud-1",
		InstructorID: "instr-1",
		CourseID:     "course-b",
		BookingDate:  "2024-06-10",
		StartTime:    "10:00",
		EndTime:      "11:00",
	})
	assert.ErrorIs(t, err, response.ErrConflict)
}

func TestGetBookingNotFound(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	_, err := env.svc.GetBooking(context.Background(), "missing")
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestUpdateBookingStatusTransitions(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	ctx := context.Background()

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	got, err := env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)

	got, err = env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingInProgress)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", got.Status)

	got, err = env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	// completed is terminal
	_, err = env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingCancelled)
	assert.ErrorIs(t, err, response.ErrValidation)
}

func TestUpdateBookingStatusRejectsInvalid(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	ctx := context.Background()

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	_, err := env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingStatus("postponed"))
	assert.ErrorIs(t, err, response.ErrValidation)

	// scheduled cannot jump straight to completed
	_, err = env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingCompleted)
	assert.ErrorIs(t, err, response.ErrValidation)

	_, err = env.svc.UpdateBookingStatus(ctx, "missing", models.BookingConfirmed)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

func TestUpdateBookingStatusSameStatusIsNoOp(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")
	txsBefore := len(env.store.txs)

	got, err := env.svc.UpdateBookingStatus(context.Background(), b.ID, models.BookingScheduled)
	require.NoError(t, err)
	assert.Equal(t, "scheduled", got.Status)
	assert.Len(t, env.store.txs, txsBefore, "no transaction for a no-op")
}

func TestRescheduleBooking(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	ctx := context.Background()

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	got, err := env.svc.RescheduleBooking(ctx, b.ID, &api.RescheduleRequest{
		BookingDate: "2024-06-12",
		StartTime:   "14:00",
		EndTime:     "15:30",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-12", got.BookingDate)
	assert.Equal(t, "14:00", got.StartTime)
	assert.Equal(t, "15:30", got.EndTime)
	assert.Equal(t, 90, got.DurationMinutes)
	// status survives the move
	assert.Equal(t, "scheduled", got.Status)
}

func TestRescheduleBookingExcludesItself(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	// same interval, same day: only conflict candidate is the booking itself
	got, err := env.svc.RescheduleBooking(context.Background(), b.ID, &api.RescheduleRequest{
		BookingDate: "2024-06-10",
		StartTime:   "10:30",
		EndTime:     "11:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "10:30", got.StartTime)
}

func TestRescheduleBookingConflicts(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))

	createBooking(t, env, "2024-06-12", "14:00", "15:00")
	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	_, err := env.svc.RescheduleBooking(context.Background(), b.ID, &api.RescheduleRequest{
		BookingDate: "2024-06-12",
		StartTime:   "14:30",
		EndTime:     "15:30",
	})
	assert.ErrorIs(t, err, response.ErrConflict)

	// booking unchanged
	got, err := env.svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", got.BookingDate)
	assert.Equal(t, "10:00", got.StartTime)
}

func TestRescheduleBookingTerminalStatus(t *testing.T) {
	env := newTestEnv(date("2024-06-01"))
	ctx := context.Background()

	b := createBooking(t, env, "2024-06-10", "10:00", "11:00")

	_, err := env.svc.UpdateBookingStatus(ctx, b.ID, models.BookingCancelled)
	require.NoError(t, err)

	_, err = env.svc.RescheduleBooking(ctx, b.ID, &api.RescheduleRequest{
		BookingDate: "2024-06-12",
		StartTime:   "14:00",
		EndTime:     "15:00",
	})
	assert.ErrorIs(t, err, response.ErrValidation)
}
