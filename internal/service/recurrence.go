package service

import (
	"time"

	"drive-schedule-service/internal/models"
)

// expandSlotDates returns every concrete date on which slot applies within
// [from, to] inclusive. It is a pure function of its inputs: the same
// template over the same range always yields the same dates.
//
// Non-recurring slots apply on their own date only. Recurring templates are
// anchored at slot.Date and repeat until recurrence_end_date (or the range
// end, whichever is earlier):
//
//	daily   - every day
//	weekly  - the anchor's weekday
//	monthly - the anchor's day of month; months lacking that day are skipped
func expandSlotDates(slot *models.TimeSlot, from, to time.Time) []time.Time {
	from = truncateToDate(from)
	to = truncateToDate(to)
	anchor := truncateToDate(slot.Date)

	if !slot.IsRecurring {
		if anchor.Before(from) || anchor.After(to) {
			return nil
		}
		return []time.Time{anchor}
	}

	if slot.RecurrencePattern == nil {
		return nil
	}

	last := to
	if slot.RecurrenceEndDate != nil {
		if end := truncateToDate(*slot.RecurrenceEndDate); end.Before(last) {
			last = end
		}
	}
	if anchor.After(last) {
		return nil
	}

	var dates []time.Time

	switch *slot.RecurrencePattern {
	case models.RecurDaily:
		start := anchor
		if start.Before(from) {
			start = from
		}
		for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}

	case models.RecurWeekly:
		start := anchor
		for start.Before(from) {
			start = start.AddDate(0, 0, 7)
		}
		for d := start; !d.After(last); d = d.AddDate(0, 0, 7) {
			dates = append(dates, d)
		}

	case models.RecurMonthly:
		day := anchor.Day()
		for y, m := anchor.Year(), anchor.Month(); ; {
			d := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
			if d.After(last) {
				break
			}
			// time.Date normalizes Feb 30 to Mar 2; skip those months
			if d.Day() == day && !d.Before(from) && !d.Before(anchor) {
				dates = append(dates, d)
			}
			m++
			if m > time.December {
				m = time.January
				y++
			}
		}
	}

	return dates
}
