package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/pkg/response"
)

const bookingLockTTL = 10 * time.Second

// allowedTransitions is the booking status machine. completed, cancelled
// and rescheduled are terminal.
var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingScheduled:  {models.BookingConfirmed, models.BookingInProgress, models.BookingCancelled, models.BookingRescheduled},
	models.BookingConfirmed:  {models.BookingInProgress, models.BookingCompleted, models.BookingCancelled, models.BookingRescheduled},
	models.BookingInProgress: {models.BookingCompleted, models.BookingCancelled},
}

func transitionAllowed(from, to models.BookingStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateBooking reserves a lesson interval atomically: the conflict check
// and the insert run under the instructor/date lock inside one transaction,
// with the database exclusion constraint as the backstop against overlapping
// active bookings slipping past a concurrent request.
func (s *Service) CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	if req.StudentID == "" {
		return nil, fmt.Errorf("%s: student_id is required: %w", op, response.ErrValidation)
	}
	if req.InstructorID == "" {
		return nil, fmt.Errorf("%s: instructor_id is required: %w", op, response.ErrValidation)
	}
	if req.CourseID == "" {
		return nil, fmt.Errorf("%s: course_id is required: %w", op, response.ErrValidation)
	}

	date, err := parseDate(req.BookingDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if end <= start {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrValidation)
	}

	lockKey := fmt.Sprintf("booking:%s:%s", req.InstructorID, formatDate(date))

	locked, err := s.locker.Lock(ctx, lockKey, bookingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	existing, err := s.store.ListActiveBookings(ctx, req.InstructorID, date)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if conflicts := detectConflicts(existing, start, end, ""); len(conflicts) > 0 {
		_ = tx.Rollback()
		conflictErr := &ConflictError{Conflicts: make([]api.BookingResponse, 0, len(conflicts))}
		for _, b := range conflicts {
			conflictErr.Conflicts = append(conflictErr.Conflicts, bookingResponse(b))
		}
		return nil, fmt.Errorf("%s: %w", op, conflictErr)
	}

	booking := &models.Booking{
		StudentID:       req.StudentID,
		InstructorID:    req.InstructorID,
		CourseID:        req.CourseID,
		BookingDate:     date,
		StartTime:       formatClock(start),
		EndTime:         formatClock(end),
		DurationMinutes: end - start,
		Status:          models.BookingScheduled,
	}

	bookingID, err := s.store.CreateBooking(ctx, tx, booking)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, response.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", op, &ConflictError{})
		}
		return nil, fmt.Errorf("%s: create booking: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := bookingResponse(booking)
	return &resp, nil
}

func (s *Service) ListBookings(ctx context.Context, filters *BookingFilters) ([]api.BookingResponse, error) {
	const op = "service.ListBookings"

	bookings, err := s.store.ListBookings(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, bookingResponse(b))
	}

	return result, nil
}

// UpdateBookingStatus applies one lifecycle transition. Moving to confirmed
// creates the booking's reminder entries; moving to cancelled or rescheduled
// cancels all of its pending entries, so a superseded lesson time never
// dispatches. Both run in the same transaction as the status write.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) (*api.BookingResponse, error) {
	const op = "service.UpdateBookingStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s: invalid status %q: %w", op, status, response.ErrValidation)
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if status == booking.Status {
		resp := bookingResponse(booking)
		return &resp, nil
	}

	if !transitionAllowed(booking.Status, status) {
		return nil, fmt.Errorf("%s: transition %s -> %s not allowed: %w", op, booking.Status, status, response.ErrValidation)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := s.store.UpdateBookingStatus(ctx, tx, bookingID, status); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch status {
	case models.BookingConfirmed:
		entries := s.buildReminderPlan(booking)
		if err := s.store.CreateReminders(ctx, tx, entries); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%s: create reminders: %w", op, err)
		}

	case models.BookingCancelled, models.BookingRescheduled:
		if err := s.store.CancelPendingReminders(ctx, tx, bookingID); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%s: cancel reminders: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}

// RescheduleBooking moves a booking to a new date/time. The status is kept
// (the booking must keep counting toward conflicts) and the booking's
// pending reminders are recomputed against the new lesson start; entries
// whose new send time has already passed are cancelled, never sent late.
func (s *Service) RescheduleBooking(ctx context.Context, bookingID string, req *api.RescheduleRequest) (*api.BookingResponse, error) {
	const op = "service.RescheduleBooking"

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !booking.Status.Active() {
		return nil, fmt.Errorf("%s: booking is %s: %w", op, booking.Status, response.ErrValidation)
	}

	date, err := parseDate(req.BookingDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if end <= start {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrValidation)
	}

	lockKey := fmt.Sprintf("booking:%s:%s", booking.InstructorID, formatDate(date))

	locked, err := s.locker.Lock(ctx, lockKey, bookingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	existing, err := s.store.ListActiveBookings(ctx, booking.InstructorID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if conflicts := detectConflicts(existing, start, end, bookingID); len(conflicts) > 0 {
		conflictErr := &ConflictError{Conflicts: make([]api.BookingResponse, 0, len(conflicts))}
		for _, b := range conflicts {
			conflictErr.Conflicts = append(conflictErr.Conflicts, bookingResponse(b))
		}
		return nil, fmt.Errorf("%s: %w", op, conflictErr)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := s.store.UpdateBookingTimes(ctx, tx, bookingID, date, formatClock(start), formatClock(end), end-start); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, response.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", op, &ConflictError{})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.recomputeReminders(ctx, tx, bookingID, lessonStart(date, start)); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: recompute reminders: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return s.GetBooking(ctx, bookingID)
}
