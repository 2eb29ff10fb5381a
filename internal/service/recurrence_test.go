package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-schedule-service/internal/models"
)

func pattern(p models.RecurrencePattern) *models.RecurrencePattern { return &p }

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func dateKeys(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, formatDate(d))
	}
	return out
}

func TestExpandSlotDatesNonRecurring(t *testing.T) {
	slot := &models.TimeSlot{Date: date("2024-06-10")}

	assert.Equal(t, []string{"2024-06-10"},
		dateKeys(expandSlotDates(slot, date("2024-06-01"), date("2024-06-30"))))

	assert.Empty(t, expandSlotDates(slot, date("2024-07-01"), date("2024-07-31")))
}

func TestExpandSlotDatesDaily(t *testing.T) {
	slot := &models.TimeSlot{
		Date:              date("2024-06-10"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurDaily),
	}

	got := dateKeys(expandSlotDates(slot, date("2024-06-09"), date("2024-06-13")))

	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12", "2024-06-13"}, got)
}

func TestExpandSlotDatesWeekly(t *testing.T) {
	// 2024-06-10 is a Monday
	slot := &models.TimeSlot{
		Date:              date("2024-06-10"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurWeekly),
	}

	got := dateKeys(expandSlotDates(slot, date("2024-06-15"), date("2024-07-05")))

	assert.Equal(t, []string{"2024-06-17", "2024-06-24", "2024-07-01"}, got)
	for _, d := range expandSlotDates(slot, date("2024-06-15"), date("2024-07-05")) {
		assert.Equal(t, time.Monday, d.Weekday())
	}
}

func TestExpandSlotDatesMonthly(t *testing.T) {
	slot := &models.TimeSlot{
		Date:              date("2024-01-15"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurMonthly),
	}

	got := dateKeys(expandSlotDates(slot, date("2024-01-01"), date("2024-04-30")))

	assert.Equal(t, []string{"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15"}, got)
}

func TestExpandSlotDatesMonthlySkipsShortMonths(t *testing.T) {
	slot := &models.TimeSlot{
		Date:              date("2024-01-31"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurMonthly),
	}

	got := dateKeys(expandSlotDates(slot, date("2024-01-01"), date("2024-05-31")))

	// February and April have no 31st
	assert.Equal(t, []string{"2024-01-31", "2024-03-31", "2024-05-31"}, got)
}

func TestExpandSlotDatesHonorsRecurrenceEnd(t *testing.T) {
	slot := &models.TimeSlot{
		Date:              date("2024-06-10"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurDaily),
		RecurrenceEndDate: datePtr("2024-06-12"),
	}

	got := dateKeys(expandSlotDates(slot, date("2024-06-01"), date("2024-06-30")))

	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12"}, got)
}

func TestExpandSlotDatesDeterministic(t *testing.T) {
	slot := &models.TimeSlot{
		Date:              date("2024-06-03"),
		IsRecurring:       true,
		RecurrencePattern: pattern(models.RecurWeekly),
	}

	first := expandSlotDates(slot, date("2024-06-01"), date("2024-08-31"))
	require.NotEmpty(t, first)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, expandSlotDates(slot, date("2024-06-01"), date("2024-08-31")))
	}
}

func TestExpandSlotDatesMissingPattern(t *testing.T) {
	slot := &models.TimeSlot{Date: date("2024-06-10"), IsRecurring: true}

	assert.Empty(t, expandSlotDates(slot, date("2024-06-01"), date("2024-06-30")))
}
