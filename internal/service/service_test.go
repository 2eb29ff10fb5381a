package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"drive-schedule-service/internal/models"
	"drive-schedule-service/internal/notify"
	"drive-schedule-service/internal/storage"
	"drive-schedule-service/pkg/response"
)

// In-memory fakes standing in for postgres and redis. They implement just
// enough semantics for the engine to run end to end in tests.

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeStore struct {
	slots     []*models.TimeSlot
	bookings  map[string]*models.Booking
	reminders []*models.ReminderEntry
	courses   map[string][]string

	nextID int
	txs    []*fakeTx

	createBookingErr error
	updateBookingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[string]*models.Booking{},
		courses:  map[string][]string{},
	}
}

func (s *fakeStore) genID() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *fakeStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx := &fakeTx{}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *fakeStore) CreateSlots(ctx context.Context, tx storage.Tx, slots []*models.TimeSlot) error {
	for _, slot := range slots {
		if slot.ID == "" {
			slot.ID = s.genID()
		}
		s.slots = append(s.slots, slot)
	}
	return nil
}

func (s *fakeStore) ListSlots(ctx context.Context, instructorID string, from, to time.Time) ([]*models.TimeSlot, error) {
	from = truncateToDate(from)
	to = truncateToDate(to)

	var out []*models.TimeSlot
	for _, slot := range s.slots {
		if slot.InstructorID != instructorID {
			continue
		}
		anchor := truncateToDate(slot.Date)
		if slot.IsRecurring {
			if anchor.After(to) {
				continue
			}
			if slot.RecurrenceEndDate != nil && truncateToDate(*slot.RecurrenceEndDate).Before(from) {
				continue
			}
			out = append(out, slot)
			continue
		}
		if !anchor.Before(from) && !anchor.After(to) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteSlot(ctx context.Context, tx storage.Tx, id string) error {
	for i, slot := range s.slots {
		if slot.ID == id {
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return nil
		}
	}
	return response.ErrNotFound
}

func (s *fakeStore) UpdateSlotAvailability(ctx context.Context, tx storage.Tx, id string, isAvailable bool) error {
	for _, slot := range s.slots {
		if slot.ID == id {
			slot.IsAvailable = isAvailable
			return nil
		}
	}
	return response.ErrNotFound
}

func (s *fakeStore) CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	if s.createBookingErr != nil {
		return "", s.createBookingErr
	}
	booking.ID = s.genID()
	cp := *booking
	s.bookings[booking.ID] = &cp
	return booking.ID, nil
}

func (s *fakeStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) ListBookings(ctx context.Context, filters *BookingFilters) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range s.bookings {
		if filters.InstructorID != nil && b.InstructorID != *filters.InstructorID {
			continue
		}
		if filters.StudentID != nil && b.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != nil && string(b.Status) != *filters.Status {
			continue
		}
		if filters.From != nil && b.BookingDate.Before(truncateToDate(*filters.From)) {
			continue
		}
		if filters.To != nil && b.BookingDate.After(truncateToDate(*filters.To)) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListActiveBookings(ctx context.Context, instructorID string, date time.Time) ([]*models.Booking, error) {
	date = truncateToDate(date)

	var out []*models.Booking
	for _, b := range s.bookings {
		if b.InstructorID != instructorID || !b.Status.Active() || !truncateToDate(b.BookingDate).Equal(date) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpdateBookingStatus(ctx context.Context, tx storage.Tx, id string, status models.BookingStatus) error {
	b, ok := s.bookings[id]
	if !ok {
		return response.ErrNotFound
	}
	b.Status = status
	return nil
}

func (s *fakeStore) UpdateBookingTimes(ctx context.Context, tx storage.Tx, id string, date time.Time, startTime, endTime string, durationMinutes int) error {
	if s.updateBookingErr != nil {
		return s.updateBookingErr
	}
	b, ok := s.bookings[id]
	if !ok {
		return response.ErrNotFound
	}
	b.BookingDate = truncateToDate(date)
	b.StartTime = startTime
	b.EndTime = endTime
	b.DurationMinutes = durationMinutes
	return nil
}

func (s *fakeStore) ListCourseInstructors(ctx context.Context, courseID string) ([]string, error) {
	return s.courses[courseID], nil
}

func (s *fakeStore) CreateReminders(ctx context.Context, tx storage.Tx, entries []*models.ReminderEntry) error {
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = s.genID()
		}
		cp := *entry
		s.reminders = append(s.reminders, &cp)
	}
	return nil
}

func (s *fakeStore) ListReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error) {
	var out []*models.ReminderEntry
	for _, entry := range s.reminders {
		if entry.BookingID == bookingID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPendingReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error) {
	var out []*models.ReminderEntry
	for _, entry := range s.reminders {
		if entry.BookingID == bookingID && entry.Status == models.ReminderPending {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateReminderSendTime(ctx context.Context, tx storage.Tx, id string, sendTime time.Time) error {
	for _, entry := range s.reminders {
		if entry.ID == id {
			entry.ScheduledSendTime = sendTime
			return nil
		}
	}
	return response.ErrNotFound
}

func (s *fakeStore) CancelReminder(ctx context.Context, tx storage.Tx, id string) error {
	for _, entry := range s.reminders {
		if entry.ID == id {
			entry.Status = models.ReminderCancelled
			return nil
		}
	}
	return response.ErrNotFound
}

func (s *fakeStore) CancelPendingReminders(ctx context.Context, tx storage.Tx, bookingID string) error {
	for _, entry := range s.reminders {
		if entry.BookingID == bookingID && entry.Status == models.ReminderPending {
			entry.Status = models.ReminderCancelled
		}
	}
	return nil
}

func (s *fakeStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.ReminderEntry, error) {
	var out []*models.ReminderEntry
	for _, entry := range s.reminders {
		if entry.Status != models.ReminderPending || entry.ScheduledSendTime.After(now) {
			continue
		}
		cp := *entry
		if b, ok := s.bookings[entry.BookingID]; ok {
			cp.StudentID = b.StudentID
			cp.InstructorID = b.InstructorID
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledSendTime.Before(out[j].ScheduledSendTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	for _, entry := range s.reminders {
		if entry.ID == id {
			if entry.Status != models.ReminderPending {
				return false, nil
			}
			entry.Status = models.ReminderSent
			return true, nil
		}
	}
	return false, nil
}

// reminder returns the stored entry by id, for assertions.
func (s *fakeStore) reminder(id string) *models.ReminderEntry {
	for _, entry := range s.reminders {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

type fakeLocker struct {
	deny   bool
	held   map[string]bool
	locked []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.deny || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.locked = append(l.locked, key)
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key string) error {
	delete(l.held, key)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

type dispatched struct {
	userID  string
	payload notify.Payload
}

type fakeDispatcher struct {
	sendErr error
	sent    []dispatched
}

func (d *fakeDispatcher) Send(ctx context.Context, userID string, channels []string, payload notify.Payload) error {
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, dispatched{userID: userID, payload: payload})
	return nil
}

type testEnv struct {
	svc        *Service
	store      *fakeStore
	locker     *fakeLocker
	dispatcher *fakeDispatcher
	clock      *fakeClock
}

func newTestEnv(now time.Time) *testEnv {
	store := newFakeStore()
	locker := newFakeLocker()
	dispatcher := &fakeDispatcher{}
	clock := &fakeClock{now: now}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(log, store, locker, dispatcher, clock, DefaultConfig())

	return &testEnv{svc: svc, store: store, locker: locker, dispatcher: dispatcher, clock: clock}
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
