package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"drive-schedule-service/internal/models"
	"drive-schedule-service/internal/service"
	"drive-schedule-service/internal/storage"
	"drive-schedule-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Migrate applies all pending goose migrations from migrationsDir.
func (s *Storage) Migrate(migrationsDir string) error {
	const op = "storage.postgres.Migrate"

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: set dialect: %w", op, err)
	}

	if err := goose.Up(s.db, migrationsDir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// sqlTx unwraps the service-facing Tx back into the real transaction.
func sqlTx(tx storage.Tx) *sql.Tx {
	return tx.(*sql.Tx)
}

// isConflict maps constraint violations on the active-booking exclusion
// (and any unique constraint) onto the shared conflict sentinel.
func isConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == pqExclusionViolation || pqErr.Code == pqUniqueViolation
}

// #### availability ####

func (s *Storage) CreateSlots(ctx context.Context, tx storage.Tx, slots []*models.TimeSlot) error {
	const op = "storage.postgres.CreateSlots"

	query := `
		INSERT INTO time_slots (id, instructor_id, date, start_time, end_time, is_available, is_recurring, recurrence_pattern, recurrence_end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	for _, slot := range slots {
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}

		var pattern *string
		if slot.RecurrencePattern != nil {
			p := string(*slot.RecurrencePattern)
			pattern = &p
		}

		err := sqlTx(tx).QueryRowContext(ctx, query,
			slot.ID,
			slot.InstructorID,
			slot.Date,
			slot.StartTime,
			slot.EndTime,
			slot.IsAvailable,
			slot.IsRecurring,
			pattern,
			slot.RecurrenceEndDate,
		).Scan(&slot.CreatedAt)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

func (s *Storage) ListSlots(ctx context.Context, instructorID string, from, to time.Time) ([]*models.TimeSlot, error) {
	const op = "storage.postgres.ListSlots"

	// recurring templates anchored before the range end still produce
	// instances inside it; the expansion happens in the service layer
	query := `
		SELECT id, instructor_id, date, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		       is_available, is_recurring, recurrence_pattern, recurrence_end_date, created_at
		FROM time_slots
		WHERE instructor_id = $1
		  AND (
			(NOT is_recurring AND date BETWEEN $2 AND $3)
			OR (is_recurring AND date <= $3 AND (recurrence_end_date IS NULL OR recurrence_end_date >= $2))
		  )
		ORDER BY date, start_time
	`

	rows, err := s.db.QueryContext(ctx, query, instructorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var slots []*models.TimeSlot
	for rows.Next() {
		var slot models.TimeSlot
		var pattern sql.NullString
		var endDate sql.NullTime

		err := rows.Scan(
			&slot.ID,
			&slot.InstructorID,
			&slot.Date,
			&slot.StartTime,
			&slot.EndTime,
			&slot.IsAvailable,
			&slot.IsRecurring,
			&pattern,
			&endDate,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		if pattern.Valid {
			p := models.RecurrencePattern(pattern.String)
			slot.RecurrencePattern = &p
		}
		if endDate.Valid {
			d := endDate.Time
			slot.RecurrenceEndDate = &d
		}

		slots = append(slots, &slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func (s *Storage) DeleteSlot(ctx context.Context, tx storage.Tx, id string) error {
	const op = "storage.postgres.DeleteSlot"

	res, err := sqlTx(tx).ExecContext(ctx, `DELETE FROM time_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) UpdateSlotAvailability(ctx context.Context, tx storage.Tx, id string, isAvailable bool) error {
	const op = "storage.postgres.UpdateSlotAvailability"

	res, err := sqlTx(tx).ExecContext(ctx, `UPDATE time_slots SET is_available = $2 WHERE id = $1`, id, isAvailable)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### bookings ####

const bookingColumns = `id, student_id, instructor_id, course_id, booking_date,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	duration_minutes, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.InstructorID,
		&b.CourseID,
		&b.BookingDate,
		&b.StartTime,
		&b.EndTime,
		&b.DurationMinutes,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (s *Storage) CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	const op = "storage.postgres.CreateBooking"

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	query := `
		INSERT INTO bookings (id, student_id, instructor_id, course_id, booking_date, start_time, end_time, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := sqlTx(tx).QueryRowContext(ctx, query,
		booking.ID,
		booking.StudentID,
		booking.InstructorID,
		booking.CourseID,
		booking.BookingDate,
		booking.StartTime,
		booking.EndTime,
		booking.DurationMinutes,
		booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if isConflict(err) {
			return "", fmt.Errorf("%s: %w", op, response.ErrConflict)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return booking.ID, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	booking, err := scanBooking(s.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return booking, nil
}

func (s *Storage) ListBookings(ctx context.Context, filters *service.BookingFilters) ([]*models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	var (
		conds []string
		args  []any
	)

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filters != nil {
		if filters.InstructorID != nil {
			add("instructor_id = $%d", *filters.InstructorID)
		}
		if filters.StudentID != nil {
			add("student_id = $%d", *filters.StudentID)
		}
		if filters.From != nil {
			add("booking_date >= $%d", *filters.From)
		}
		if filters.To != nil {
			add("booking_date <= $%d", *filters.To)
		}
		if filters.Status != nil {
			add("status = $%d", *filters.Status)
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY booking_date, start_time, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) ListActiveBookings(ctx context.Context, instructorID string, date time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListActiveBookings"

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE instructor_id = $1
		  AND booking_date = $2
		  AND status IN ('scheduled', 'confirmed', 'in_progress')
		ORDER BY start_time, id
	`

	rows, err := s.db.QueryContext(ctx, query, instructorID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, tx storage.Tx, id string, status models.BookingStatus) error {
	const op = "storage.postgres.UpdateBookingStatus"

	res, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) UpdateBookingTimes(ctx context.Context, tx storage.Tx, id string, date time.Time, startTime, endTime string, durationMinutes int) error {
	const op = "storage.postgres.UpdateBookingTimes"

	res, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE bookings
		SET booking_date = $2, start_time = $3, end_time = $4, duration_minutes = $5, updated_at = now()
		WHERE id = $1
	`, id, date, startTime, endTime, durationMinutes)
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("%s: %w", op, response.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### instructors ####

func (s *Storage) ListCourseInstructors(ctx context.Context, courseID string) ([]string, error) {
	const op = "storage.postgres.ListCourseInstructors"

	rows, err := s.db.QueryContext(ctx,
		`SELECT instructor_id FROM instructor_courses WHERE course_id = $1 ORDER BY instructor_id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var instructors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		instructors = append(instructors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return instructors, nil
}

// #### reminders ####

func (s *Storage) CreateReminders(ctx context.Context, tx storage.Tx, entries []*models.ReminderEntry) error {
	const op = "storage.postgres.CreateReminders"

	query := `
		INSERT INTO reminder_entries (id, booking_id, offset_minutes, scheduled_send_time, channels, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}

		err := sqlTx(tx).QueryRowContext(ctx, query,
			entry.ID,
			entry.BookingID,
			entry.OffsetMinutes,
			entry.ScheduledSendTime,
			entry.Channels,
			entry.Status,
		).Scan(&entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

const reminderColumns = `id, booking_id, offset_minutes, scheduled_send_time, channels, status, created_at`

func scanReminder(row interface{ Scan(...any) error }) (*models.ReminderEntry, error) {
	var entry models.ReminderEntry
	err := row.Scan(
		&entry.ID,
		&entry.BookingID,
		&entry.OffsetMinutes,
		&entry.ScheduledSendTime,
		&entry.Channels,
		&entry.Status,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *Storage) ListReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error) {
	const op = "storage.postgres.ListReminders"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminder_entries WHERE booking_id = $1 ORDER BY offset_minutes DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*models.ReminderEntry
	for rows.Next() {
		entry, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (s *Storage) ListPendingReminders(ctx context.Context, bookingID string) ([]*models.ReminderEntry, error) {
	const op = "storage.postgres.ListPendingReminders"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminder_entries WHERE booking_id = $1 AND status = 'pending' ORDER BY offset_minutes DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*models.ReminderEntry
	for rows.Next() {
		entry, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

func (s *Storage) UpdateReminderSendTime(ctx context.Context, tx storage.Tx, id string, sendTime time.Time) error {
	const op = "storage.postgres.UpdateReminderSendTime"

	res, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE reminder_entries SET scheduled_send_time = $2 WHERE id = $1 AND status = 'pending'`, id, sendTime)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) CancelReminder(ctx context.Context, tx storage.Tx, id string) error {
	const op = "storage.postgres.CancelReminder"

	_, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE reminder_entries SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) CancelPendingReminders(ctx context.Context, tx storage.Tx, bookingID string) error {
	const op = "storage.postgres.CancelPendingReminders"

	_, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE reminder_entries SET status = 'cancelled' WHERE booking_id = $1 AND status = 'pending'`, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.ReminderEntry, error) {
	const op = "storage.postgres.DueReminders"

	query := `
		SELECT r.id, r.booking_id, r.offset_minutes, r.scheduled_send_time, r.channels, r.status, r.created_at,
		       b.student_id, b.instructor_id
		FROM reminder_entries r
		JOIN bookings b ON b.id = r.booking_id
		WHERE r.status = 'pending' AND r.scheduled_send_time <= $1
		ORDER BY r.scheduled_send_time
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*models.ReminderEntry
	for rows.Next() {
		var entry models.ReminderEntry
		err := rows.Scan(
			&entry.ID,
			&entry.BookingID,
			&entry.OffsetMinutes,
			&entry.ScheduledSendTime,
			&entry.Channels,
			&entry.Status,
			&entry.CreatedAt,
			&entry.StudentID,
			&entry.InstructorID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// MarkReminderSent flips pending -> sent and reports whether this call won
// the transition. The status guard in the WHERE clause is what makes a
// retried sweep at-most-once.
func (s *Storage) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	const op = "storage.postgres.MarkReminderSent"

	res, err := s.db.ExecContext(ctx,
		`UPDATE reminder_entries SET status = 'sent' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}
