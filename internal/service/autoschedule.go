package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
)

const (
	scoreDateMatch = 50
	scoreTimeMatch = 50
)

type candidate struct {
	instructorID string
	date         time.Time
	startMin     int
	score        int
}

// Suggest produces ranked lesson-time suggestions satisfying the request's
// constraints. No qualifying slot anywhere is an empty list, not an error.
func (s *Service) Suggest(ctx context.Context, req *api.AutoScheduleRequest) (*api.AutoScheduleResponse, error) {
	const op = "service.Suggest"

	if req.StudentID == "" {
		return nil, fmt.Errorf("%s: student_id is required: %w", op, response.ErrValidation)
	}
	if req.CourseID == "" {
		return nil, fmt.Errorf("%s: course_id is required: %w", op, response.ErrValidation)
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > minutesPerDay {
		return nil, fmt.Errorf("%s: invalid duration_minutes: %w", op, response.ErrValidation)
	}

	now := s.clock.Now()
	today := truncateToDate(now)

	earliest := today
	if req.EarliestDate != nil {
		d, err := parseDate(*req.EarliestDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if d.After(today) {
			earliest = d
		}
	}

	latest := earliest.AddDate(0, 0, s.cfg.HorizonDays)
	if req.LatestDate != nil {
		d, err := parseDate(*req.LatestDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		latest = d
	}
	if latest.Before(earliest) {
		return nil, fmt.Errorf("%s: latest_date before earliest_date: %w", op, response.ErrValidation)
	}

	prefDates := map[string]struct{}{}
	for _, d := range req.PreferredDates {
		parsed, err := parseDate(d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		prefDates[formatDate(parsed)] = struct{}{}
	}

	prefTimes := map[int]struct{}{}
	for _, t := range req.PreferredTimes {
		m, err := parseClock(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		prefTimes[m] = struct{}{}
	}

	var instructors []string
	if req.InstructorID != nil && *req.InstructorID != "" {
		instructors = []string{*req.InstructorID}
	} else {
		var err error
		instructors, err = s.store.ListCourseInstructors(ctx, req.CourseID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var candidates []candidate

	for _, instructorID := range instructors {
		freeByDate, err := s.freeIntervals(ctx, instructorID, earliest, latest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for dateKey, free := range freeByDate {
			date, err := parseDate(dateKey)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			if req.AvoidWeekends {
				if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
					continue
				}
			}

			bookings, err := s.store.ListActiveBookings(ctx, instructorID, date)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			for _, iv := range free {
				if iv.end-iv.start < req.DurationMinutes {
					continue
				}
				for start := iv.start; start+req.DurationMinutes <= iv.end; start += s.cfg.StepMinutes {
					if lessonStart(date, start).Before(now) {
						continue
					}
					if len(detectConflicts(bookings, start, start+req.DurationMinutes, "")) > 0 {
						continue
					}

					candidates = append(candidates, candidate{
						instructorID: instructorID,
						date:         date,
						startMin:     start,
						score:        scoreCandidate(dateKey, start, prefDates, prefTimes),
					})
				}
			}
		}
	}

	// highest score first; equal scores go to the earliest start, then
	// instructor id for a fully deterministic order
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		ti := lessonStart(candidates[i].date, candidates[i].startMin)
		tj := lessonStart(candidates[j].date, candidates[j].startMin)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return candidates[i].instructorID < candidates[j].instructorID
	})

	resp := &api.AutoScheduleResponse{
		Suggestions: make([]api.Suggestion, 0, len(candidates)),
	}
	for _, c := range candidates {
		resp.Suggestions = append(resp.Suggestions, api.Suggestion{
			InstructorID: c.instructorID,
			Date:         formatDate(c.date),
			StartTime:    formatClock(c.startMin),
			EndTime:      formatClock(c.startMin + req.DurationMinutes),
			Score:        c.score,
		})
	}
	if len(resp.Suggestions) > 0 {
		resp.BestSuggestion = &resp.Suggestions[0]
	}

	return resp, nil
}

// scoreCandidate realizes the documented ordering: exact date+time match
// ranks above a partial match, which ranks above no match.
func scoreCandidate(dateKey string, startMin int, prefDates map[string]struct{}, prefTimes map[int]struct{}) int {
	score := 0

	if len(prefDates) > 0 {
		if _, ok := prefDates[dateKey]; ok {
			score += scoreDateMatch
		}
	}
	if len(prefTimes) > 0 {
		if _, ok := prefTimes[startMin]; ok {
			score += scoreTimeMatch
		}
	}

	return score
}
