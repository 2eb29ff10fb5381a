package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/internal/notify"
	"drive-schedule-service/internal/storage"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"
)

// buildReminderPlan produces one entry per configured offset for a booking,
// with scheduled_send_time = lesson_start - offset. Entries whose send time
// is already in the past are created directly in cancelled, never sent
// retroactively.
func (s *Service) buildReminderPlan(booking *models.Booking) []*models.ReminderEntry {
	startMin, _ := parseClock(booking.StartTime)
	start := lessonStart(booking.BookingDate, startMin)
	now := s.clock.Now()

	entries := make([]*models.ReminderEntry, 0, len(s.cfg.ReminderOffsets))
	for _, offset := range s.cfg.ReminderOffsets {
		sendAt := start.Add(-offset)

		status := models.ReminderPending
		if !sendAt.After(now) {
			status = models.ReminderCancelled
		}

		entries = append(entries, &models.ReminderEntry{
			BookingID:         booking.ID,
			OffsetMinutes:     int(offset / time.Minute),
			ScheduledSendTime: sendAt,
			Channels:          append([]string(nil), s.cfg.ReminderChannels...),
			Status:            status,
		})
	}

	return entries
}

// recomputeReminders rebases every pending entry of a booking on a new
// lesson start. New send times already in the past cancel the entry.
func (s *Service) recomputeReminders(ctx context.Context, tx storage.Tx, bookingID string, start time.Time) error {
	pending, err := s.store.ListPendingReminders(ctx, bookingID)
	if err != nil {
		return err
	}

	now := s.clock.Now()

	for _, entry := range pending {
		sendAt := start.Add(-time.Duration(entry.OffsetMinutes) * time.Minute)

		if !sendAt.After(now) {
			if err := s.store.CancelReminder(ctx, tx, entry.ID); err != nil {
				return err
			}
			continue
		}

		if err := s.store.UpdateReminderSendTime(ctx, tx, entry.ID, sendAt); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) ListReminders(ctx context.Context, bookingID string) ([]api.ReminderResponse, error) {
	const op = "service.ListReminders"

	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := s.store.ListReminders(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.ReminderResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, reminderResponse(entry))
	}

	return result, nil
}

// SweepReminders dispatches every pending entry whose send time has passed.
// Each entry is marked sent only after a successful dispatch, through a
// compare-and-set on status, so a retried sweep cannot double-send. A
// dispatch failure leaves the entry pending for the next sweep and never
// fails the batch.
func (s *Service) SweepReminders(ctx context.Context) (*api.SweepResponse, error) {
	const op = "service.SweepReminders"

	due, err := s.store.DueReminders(ctx, s.clock.Now(), s.cfg.SweepLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.SweepResponse{Due: len(due)}

	for _, entry := range due {
		payload := notify.Payload{
			BookingID:     entry.BookingID,
			InstructorID:  entry.InstructorID,
			LessonStart:   entry.ScheduledSendTime.Add(time.Duration(entry.OffsetMinutes) * time.Minute),
			OffsetMinutes: entry.OffsetMinutes,
		}

		if err := s.dispatcher.Send(ctx, entry.StudentID, entry.Channels, payload); err != nil {
			s.log.Warn("Reminder dispatch failed, entry stays pending",
				slog.String("reminder_id", entry.ID),
				slog.String("booking_id", entry.BookingID),
				sl.Err(err),
			)
			resp.Failed++
			continue
		}

		sent, err := s.store.MarkReminderSent(ctx, entry.ID)
		if err != nil {
			s.log.Error("Failed to mark reminder sent",
				slog.String("reminder_id", entry.ID),
				sl.Err(err),
			)
			resp.Failed++
			continue
		}
		if sent {
			resp.Sent++
		}
	}

	return resp, nil
}

func reminderResponse(entry *models.ReminderEntry) api.ReminderResponse {
	return api.ReminderResponse{
		ID:                entry.ID,
		BookingID:         entry.BookingID,
		OffsetMinutes:     entry.OffsetMinutes,
		ScheduledSendTime: entry.ScheduledSendTime,
		Channels:          entry.Channels,
		Status:            string(entry.Status),
	}
}
