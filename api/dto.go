package api

import "time"

// Availability

type TimeSlotRequest struct {
	InstructorID      string `json:"instructor_id"`
	Date              string `json:"date"`       // "2006-01-02"
	StartTime         string `json:"start_time"` // "15:04"
	EndTime           string `json:"end_time"`
	IsAvailable       *bool  `json:"is_available,omitempty"` // defaults to true
	IsRecurring       bool   `json:"is_recurring,omitempty"`
	RecurrencePattern string `json:"recurrence_pattern,omitempty"` // daily|weekly|monthly
	RecurrenceEndDate string `json:"recurrence_end_date,omitempty"`
}

type AvailabilityUpdateRequest struct {
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	IsAvailable  bool   `json:"is_available"`
}

type TimeSlotResponse struct {
	ID                string `json:"id"`
	InstructorID      string `json:"instructor_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	IsAvailable       bool   `json:"is_available"`
	IsRecurring       bool   `json:"is_recurring,omitempty"`
	RecurrencePattern string `json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate string `json:"recurrence_end_date,omitempty"`
}

// AvailabilitySlot is a concrete free interval after recurrence expansion
// and unavailability subtraction.
type AvailabilitySlot struct {
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// Bookings

type BookingRequest struct {
	StudentID    string `json:"student_id"`
	InstructorID string `json:"instructor_id"`
	CourseID     string `json:"course_id"`
	BookingDate  string `json:"booking_date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

type BookingResponse struct {
	ID              string `json:"id"`
	StudentID       string `json:"student_id"`
	InstructorID    string `json:"instructor_id"`
	CourseID        string `json:"course_id"`
	BookingDate     string `json:"booking_date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	BookingDate string `json:"booking_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Conflicts

type ConflictCheckRequest struct {
	InstructorID     string  `json:"instructor_id"`
	Date             string  `json:"date"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	ExcludeBookingID *string `json:"exclude_booking_id,omitempty"`
}

type ConflictCheckResponse struct {
	HasConflicts bool              `json:"has_conflicts"`
	Conflicts    []BookingResponse `json:"conflicts"`
}

// Auto-scheduling

type AutoScheduleRequest struct {
	CourseID        string   `json:"course_id"`
	InstructorID    *string  `json:"instructor_id,omitempty"`
	StudentID       string   `json:"student_id"`
	PreferredDates  []string `json:"preferred_dates,omitempty"`
	PreferredTimes  []string `json:"preferred_times,omitempty"`
	DurationMinutes int      `json:"duration_minutes"`
	EarliestDate    *string  `json:"earliest_date,omitempty"`
	LatestDate      *string  `json:"latest_date,omitempty"`
	AvoidWeekends   bool     `json:"avoid_weekends,omitempty"`
}

type Suggestion struct {
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Score        int    `json:"score"`
}

type AutoScheduleResponse struct {
	Suggestions    []Suggestion `json:"suggestions"`
	BestSuggestion *Suggestion  `json:"best_suggestion"`
}

// Reminders

type ReminderResponse struct {
	ID                string    `json:"id"`
	BookingID         string    `json:"booking_id"`
	OffsetMinutes     int       `json:"offset_minutes"`
	ScheduledSendTime time.Time `json:"scheduled_send_time"`
	Channels          []string  `json:"channels"`
	Status            string    `json:"status"`
}

type SweepResponse struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
