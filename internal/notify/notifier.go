package notify

import (
	"context"
	"log/slog"
	"time"
)

// Payload is the lesson context handed to the delivery transport.
type Payload struct {
	BookingID     string    `json:"booking_id"`
	InstructorID  string    `json:"instructor_id"`
	LessonStart   time.Time `json:"lesson_start"`
	OffsetMinutes int       `json:"offset_minutes"`
}

// Dispatcher is the external notification delivery interface. Transports
// (email, sms, push) live behind it and are out of scope here.
type Dispatcher interface {
	Send(ctx context.Context, userID string, channels []string, payload Payload) error
}

// LogDispatcher writes every dispatch to the log instead of delivering it.
// It stands in for the real transport in local runs.
type LogDispatcher struct {
	log *slog.Logger
}

func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(_ context.Context, userID string, channels []string, payload Payload) error {
	d.log.Info("Reminder dispatched",
		slog.String("user_id", userID),
		slog.Any("channels", channels),
		slog.String("booking_id", payload.BookingID),
		slog.Time("lesson_start", payload.LessonStart),
		slog.Int("offset_minutes", payload.OffsetMinutes),
	)

	return nil
}
