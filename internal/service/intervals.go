package service

import (
	"fmt"
	"sort"
	"time"

	"drive-schedule-service/pkg/response"
)

const minutesPerDay = 24 * 60

// interval is a half-open [start, end) range in minutes from midnight.
type interval struct {
	start int
	end   int
}

// parseClock accepts "15:04" and "15:04:05" (the latter is what TIME
// columns come back as) and returns minutes from midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q: %w", s, response.ErrValidation)
		}
	}

	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, response.ErrValidation)
	}

	return d, nil
}

func formatDate(d time.Time) string {
	return d.Format("2006-01-02")
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// lessonStart composes the absolute lesson instant from a date and minutes
// from midnight, in UTC.
func lessonStart(date time.Time, startMin int) time.Time {
	return truncateToDate(date).Add(time.Duration(startMin) * time.Minute)
}

// overlaps is the half-open interval comparison: a.start < b.end && b.start < a.end.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// mergeIntervals sorts and coalesces touching or overlapping intervals.
func mergeIntervals(in []interval) []interval {
	if len(in) == 0 {
		return nil
	}

	sorted := make([]interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end < sorted[j].end
	})

	out := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.start <= last.end {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}

	return out
}

// subtractIntervals removes busy ranges from avail, splitting where a busy
// range falls inside an available one. Both inputs may be unsorted.
func subtractIntervals(avail, busy []interval) []interval {
	free := mergeIntervals(avail)
	if len(free) == 0 {
		return nil
	}

	for _, b := range mergeIntervals(busy) {
		var next []interval
		for _, f := range free {
			if !overlaps(f.start, f.end, b.start, b.end) {
				next = append(next, f)
				continue
			}
			if f.start < b.start {
				next = append(next, interval{start: f.start, end: b.start})
			}
			if b.end < f.end {
				next = append(next, interval{start: b.end, end: f.end})
			}
		}
		free = next
	}

	return free
}
