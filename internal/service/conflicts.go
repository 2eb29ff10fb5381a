package service

import (
	"context"
	"fmt"
	"sort"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/pkg/response"
)

// detectConflicts returns every active booking whose [start, end) interval
// overlaps the proposed one, excluding excludeID. Pure: same inputs, same
// result, in a stable order (start time, then id).
func detectConflicts(bookings []*models.Booking, startMin, endMin int, excludeID string) []*models.Booking {
	var conflicts []*models.Booking

	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}

		bStart, err := parseClock(b.StartTime)
		if err != nil {
			continue
		}
		bEnd, err := parseClock(b.EndTime)
		if err != nil {
			continue
		}

		if overlaps(startMin, endMin, bStart, bEnd) {
			conflicts = append(conflicts, b)
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		si, _ := parseClock(conflicts[i].StartTime)
		sj, _ := parseClock(conflicts[j].StartTime)
		if si != sj {
			return si < sj
		}
		return conflicts[i].ID < conflicts[j].ID
	})

	return conflicts
}

// CheckConflicts reports every active booking of the instructor that
// overlaps the proposed interval on the given date. An empty conflict set
// means the interval is bookable.
func (s *Service) CheckConflicts(ctx context.Context, req *api.ConflictCheckRequest) (*api.ConflictCheckResponse, error) {
	const op = "service.CheckConflicts"

	if req.InstructorID == "" {
		return nil, fmt.Errorf("%s: instructor_id is required: %w", op, response.ErrValidation)
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if end <= start {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrValidation)
	}

	bookings, err := s.store.ListActiveBookings(ctx, req.InstructorID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	excludeID := ""
	if req.ExcludeBookingID != nil {
		excludeID = *req.ExcludeBookingID
	}

	conflicts := detectConflicts(bookings, start, end, excludeID)

	resp := &api.ConflictCheckResponse{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    make([]api.BookingResponse, 0, len(conflicts)),
	}
	for _, b := range conflicts {
		resp.Conflicts = append(resp.Conflicts, bookingResponse(b))
	}

	return resp, nil
}
