package models

import (
	"time"

	"github.com/lib/pq"
)

type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// TimeSlot is one explicit availability (or unavailability override) interval
// of an instructor. Recurring slots are templates anchored at Date; concrete
// instances are expanded on demand and never stored.
type TimeSlot struct {
	ID                string             `db:"id"`
	InstructorID      string             `db:"instructor_id"`
	Date              time.Time          `db:"date"`
	StartTime         string             `db:"start_time"` // "15:04"
	EndTime           string             `db:"end_time"`
	IsAvailable       bool               `db:"is_available"`
	IsRecurring       bool               `db:"is_recurring"`
	RecurrencePattern *RecurrencePattern `db:"recurrence_pattern"`
	RecurrenceEndDate *time.Time         `db:"recurrence_end_date"`
	CreatedAt         time.Time          `db:"created_at"`
}

type BookingStatus string

const (
	BookingScheduled   BookingStatus = "scheduled"
	BookingConfirmed   BookingStatus = "confirmed"
	BookingInProgress  BookingStatus = "in_progress"
	BookingCompleted   BookingStatus = "completed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingRescheduled BookingStatus = "rescheduled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingScheduled, BookingConfirmed, BookingInProgress,
		BookingCompleted, BookingCancelled, BookingRescheduled:
		return true
	}
	return false
}

// Active reports whether the booking counts toward conflict checks.
func (s BookingStatus) Active() bool {
	switch s {
	case BookingScheduled, BookingConfirmed, BookingInProgress:
		return true
	}
	return false
}

type Booking struct {
	ID              string        `db:"id"`
	StudentID       string        `db:"student_id"`
	InstructorID    string        `db:"instructor_id"`
	CourseID        string        `db:"course_id"`
	BookingDate     time.Time     `db:"booking_date"`
	StartTime       string        `db:"start_time"` // "15:04"
	EndTime         string        `db:"end_time"`
	DurationMinutes int           `db:"duration_minutes"`
	Status          BookingStatus `db:"status"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderCancelled ReminderStatus = "cancelled"
)

// ReminderEntry is one scheduled notification for a confirmed booking,
// one per configured offset. Lifecycle: pending -> (sent | cancelled),
// terminal once sent or cancelled.
type ReminderEntry struct {
	ID                string         `db:"id"`
	BookingID         string         `db:"booking_id"`
	OffsetMinutes     int            `db:"offset_minutes"`
	ScheduledSendTime time.Time      `db:"scheduled_send_time"`
	Channels          pq.StringArray `db:"channels"`
	Status            ReminderStatus `db:"status"`
	CreatedAt         time.Time      `db:"created_at"`

	// Joined from bookings by the due-entries query, not columns of their own.
	StudentID    string `db:"-"`
	InstructorID string `db:"-"`
}
