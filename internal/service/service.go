package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/lock"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/internal/notify"
	"drive-schedule-service/internal/storage"
	"drive-schedule-service/pkg/response"
)

type Service struct {
	log        *slog.Logger
	store      Store
	locker     lock.Locker
	dispatcher notify.Dispatcher
	clock      Clock
	cfg        Config
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, dispatcher notify.Dispatcher, clock Clock, cfg Config) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultConfig().HorizonDays
	}
	if cfg.StepMinutes <= 0 {
		cfg.StepMinutes = DefaultConfig().StepMinutes
	}
	if len(cfg.ReminderOffsets) == 0 {
		cfg.ReminderOffsets = DefaultConfig().ReminderOffsets
	}
	if len(cfg.ReminderChannels) == 0 {
		cfg.ReminderChannels = DefaultConfig().ReminderChannels
	}

	return &Service{
		log:        log,
		store:      store,
		locker:     locker,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
	}
}

// Config tunes the scheduling and reminder engine.
type Config struct {
	HorizonDays      int
	StepMinutes      int
	ReminderOffsets  []time.Duration
	ReminderChannels []string
	SweepLimit       int
}

func DefaultConfig() Config {
	return Config{
		HorizonDays:      30,
		StepMinutes:      15,
		ReminderOffsets:  []time.Duration{24 * time.Hour, 4 * time.Hour, time.Hour, 15 * time.Minute},
		ReminderChannels: []string{"email", "sms"},
		SweepLimit:       500,
	}
}

// Clock abstracts "now" so offset math and sweeps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type Store interface {
	BeginTx(ctx context.Context) (storage.Tx, error)

	// Availability
	CreateSlots(ctx context.Context, tx storage.Tx, slots []*models.TimeSlot) error
	ListSlots(ctx context.Context, instructorID string, from, to time.Time) ([]*models.TimeSlot, error)
	DeleteSlot(ctx context.Context, tx storage.Tx, id string) error
	UpdateSlotAvailability(ctx context.Context, tx storage.Tx, id string, isAvailable bool) error

	// Bookings
	CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filters *BookingFilters) ([]*models.Booking, error)
	ListActiveBookings(ctx context.Context, instructorID string, date time.Time) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, tx storage.Tx, id string, status models.BookingStatus) error
	UpdateBookingTimes(ctx context.Context, tx storage.Tx, id string, date time.Time, startTime, endTime string, durationMinutes int) error

	// Instructors
	ListCourseInstructors(ctx context.Context, courseID string) ([]string, error)

	// Reminders
	CreateReminders(ctx context.Context, tx storage.Tx, entries []*models.ReminderEntry) error
	ListReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error)
	ListPendingReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error)
	UpdateReminderSendTime(ctx context.Context, tx storage.Tx, id string, sendTime time.Time) error
	CancelReminder(ctx context.Context, tx storage.Tx, id string) error
	CancelPendingReminders(ctx context.Context, tx storage.Tx, bookingID string) error
	DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.ReminderEntry, error)
	MarkReminderSent(ctx context.Context, id string) (bool, error)
}

type BookingFilters struct {
	InstructorID *string
	StudentID    *string
	From         *time.Time
	To           *time.Time
	Status       *string
}

// ConflictError carries the conflicting set back to the caller so it can
// offer alternatives. errors.Is(err, response.ErrConflict) holds.
type ConflictError struct {
	Conflicts []api.BookingResponse
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflicts with %d existing booking(s)", len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return response.ErrConflict }

func bookingResponse(b *models.Booking) api.BookingResponse {
	return api.BookingResponse{
		ID:              b.ID,
		StudentID:       b.StudentID,
		InstructorID:    b.InstructorID,
		CourseID:        b.CourseID,
		BookingDate:     formatDate(b.BookingDate),
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
	}
}
