package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/models"
	"drive-schedule-service/pkg/response"
)

const availLockTTL = 10 * time.Second

// CreateSlots validates and persists a batch of availability slots
// all-or-nothing. Available slots must not overlap an existing available
// slot on the same date; unavailability overrides are allowed to overlap,
// they subtract from availability at read time.
func (s *Service) CreateSlots(ctx context.Context, reqs []api.TimeSlotRequest) ([]api.TimeSlotResponse, error) {
	const op = "service.CreateSlots"

	if len(reqs) == 0 {
		return nil, fmt.Errorf("%s: empty batch: %w", op, response.ErrValidation)
	}

	slots := make([]*models.TimeSlot, 0, len(reqs))
	for i, req := range reqs {
		slot, err := parseSlotRequest(&req)
		if err != nil {
			return nil, fmt.Errorf("%s: slot %d: %w", op, i, err)
		}
		slots = append(slots, slot)
	}

	// one lock per distinct instructor in the batch; the deferred unlock
	// covers partial acquisition, so a failed batch releases what it took
	locked := map[string]bool{}
	defer func() {
		for key := range locked {
			_ = s.locker.Unlock(ctx, key)
		}
	}()

	for _, slot := range slots {
		key := "avail:" + slot.InstructorID
		if locked[key] {
			continue
		}
		ok, err := s.locker.Lock(ctx, key, availLockTTL)
		if err != nil {
			return nil, fmt.Errorf("%s: lock error: %w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
		}
		locked[key] = true
	}

	for i, slot := range slots {
		if !slot.IsAvailable {
			continue
		}

		start, _ := parseClock(slot.StartTime)
		end, _ := parseClock(slot.EndTime)

		existing, err := s.availableIntervalsOn(ctx, slot.InstructorID, slot.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, iv := range existing {
			if overlaps(start, end, iv.start, iv.end) {
				return nil, fmt.Errorf("%s: slot %d overlaps an existing available slot: %w", op, i, response.ErrValidation)
			}
		}

		// batch-internal overlaps on the same instructor and date
		for j := 0; j < i; j++ {
			other := slots[j]
			if !other.IsAvailable || other.InstructorID != slot.InstructorID || !other.Date.Equal(slot.Date) {
				continue
			}
			oStart, _ := parseClock(other.StartTime)
			oEnd, _ := parseClock(other.EndTime)
			if overlaps(start, end, oStart, oEnd) {
				return nil, fmt.Errorf("%s: slots %d and %d overlap: %w", op, j, i, response.ErrValidation)
			}
		}
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := s.store.CreateSlots(ctx, tx, slots); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	result := make([]api.TimeSlotResponse, 0, len(slots))
	for _, slot := range slots {
		result = append(result, slotResponse(slot))
	}

	return result, nil
}

// GetAvailability expands recurring templates into [from, to], merges them
// with explicit slots and returns the free intervals per date with
// unavailability overrides already subtracted.
func (s *Service) GetAvailability(ctx context.Context, instructorID string, from, to time.Time) ([]api.AvailabilitySlot, error) {
	const op = "service.GetAvailability"

	if to.Before(from) {
		return nil, fmt.Errorf("%s: end_date before start_date: %w", op, response.ErrValidation)
	}

	freeByDate, err := s.freeIntervals(ctx, instructorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dates := make([]string, 0, len(freeByDate))
	for date := range freeByDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var result []api.AvailabilitySlot
	for _, date := range dates {
		for _, iv := range freeByDate[date] {
			result = append(result, api.AvailabilitySlot{
				InstructorID: instructorID,
				Date:         date,
				StartTime:    formatClock(iv.start),
				EndTime:      formatClock(iv.end),
			})
		}
	}

	return result, nil
}

// UpdateAvailability upserts one slot's availability flag. An unavailability
// override that lands inside an explicit available slot splits it: the
// stored interval is replaced by its remainders, never silently dropped.
func (s *Service) UpdateAvailability(ctx context.Context, req *api.AvailabilityUpdateRequest) ([]api.TimeSlotResponse, error) {
	const op = "service.UpdateAvailability"

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

	lockKey := fmt.Sprintf("avail:%s:%s", req.InstructorID, formatDate(date))
	ok, err := s.locker.Lock(ctx, lockKey, availLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	existing, err := s.store.ListSlots(ctx, req.InstructorID, date, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var created []*models.TimeSlot

	if req.IsAvailable {
		// exact-interval explicit slot flips its flag, otherwise a new
		// available slot is inserted under the usual overlap rule
		for _, slot := range existing {
			if slot.IsRecurring || !slot.Date.Equal(date) {
				continue
			}
			sStart, _ := parseClock(slot.StartTime)
			sEnd, _ := parseClock(slot.EndTime)
			if sStart == start && sEnd == end {
				// flipping an override back to available is still an
				// insert of availability, same overlap rule applies
				for _, other := range existing {
					if other.ID == slot.ID || !other.IsAvailable || len(expandSlotDates(other, date, date)) == 0 {
						continue
					}
					oStart, _ := parseClock(other.StartTime)
					oEnd, _ := parseClock(other.EndTime)
					if overlaps(start, end, oStart, oEnd) {
						_ = tx.Rollback()
						return nil, fmt.Errorf("%s: overlaps an existing available slot: %w", op, response.ErrValidation)
					}
				}

				if err := s.store.UpdateSlotAvailability(ctx, tx, slot.ID, true); err != nil {
					_ = tx.Rollback()
					return nil, fmt.Errorf("%s: %w", op, err)
				}
				if err := tx.Commit(); err != nil {
					return nil, fmt.Errorf("%s: commit: %w", op, err)
				}
				slot.IsAvailable = true
				return []api.TimeSlotResponse{slotResponse(slot)}, nil
			}
		}

		for _, slot := range existing {
			if !slot.IsAvailable || len(expandSlotDates(slot, date, date)) == 0 {
				continue
			}
			sStart, _ := parseClock(slot.StartTime)
			sEnd, _ := parseClock(slot.EndTime)
			if overlaps(start, end, sStart, sEnd) {
				_ = tx.Rollback()
				return nil, fmt.Errorf("%s: overlaps an existing available slot: %w", op, response.ErrValidation)
			}
		}

		created = append(created, &models.TimeSlot{
			InstructorID: req.InstructorID,
			Date:         date,
			StartTime:    formatClock(start),
			EndTime:      formatClock(end),
			IsAvailable:  true,
		})
	} else {
		// split every explicit available slot the override cuts into
		for _, slot := range existing {
			if slot.IsRecurring || !slot.IsAvailable || !slot.Date.Equal(date) {
				continue
			}
			sStart, _ := parseClock(slot.StartTime)
			sEnd, _ := parseClock(slot.EndTime)
			if !overlaps(start, end, sStart, sEnd) {
				continue
			}

			if err := s.store.DeleteSlot(ctx, tx, slot.ID); err != nil {
				_ = tx.Rollback()
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			for _, rest := range subtractIntervals([]interval{{sStart, sEnd}}, []interval{{start, end}}) {
				created = append(created, &models.TimeSlot{
					InstructorID: req.InstructorID,
					Date:         date,
					StartTime:    formatClock(rest.start),
					EndTime:      formatClock(rest.end),
					IsAvailable:  true,
				})
			}
		}

		// the override row itself still subtracts from recurring instances
		created = append(created, &models.TimeSlot{
			InstructorID: req.InstructorID,
			Date:         date,
			StartTime:    formatClock(start),
			EndTime:      formatClock(end),
			IsAvailable:  false,
		})
	}

	if err := s.store.CreateSlots(ctx, tx, created); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	result := make([]api.TimeSlotResponse, 0, len(created))
	for _, slot := range created {
		result = append(result, slotResponse(slot))
	}

	return result, nil
}

// freeIntervals builds the per-date free intervals for an instructor:
// expanded availability minus unavailability overrides. Keys are "2006-01-02".
func (s *Service) freeIntervals(ctx context.Context, instructorID string, from, to time.Time) (map[string][]interval, error) {
	slots, err := s.store.ListSlots(ctx, instructorID, from, to)
	if err != nil {
		return nil, err
	}

	availByDate := map[string][]interval{}
	busyByDate := map[string][]interval{}

	for _, slot := range slots {
		start, err := parseClock(slot.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(slot.EndTime)
		if err != nil {
			return nil, err
		}

		for _, d := range expandSlotDates(slot, from, to) {
			key := formatDate(d)
			if slot.IsAvailable {
				availByDate[key] = append(availByDate[key], interval{start, end})
			} else {
				busyByDate[key] = append(busyByDate[key], interval{start, end})
			}
		}
	}

	free := make(map[string][]interval, len(availByDate))
	for date, avail := range availByDate {
		if ivs := subtractIntervals(avail, busyByDate[date]); len(ivs) > 0 {
			free[date] = ivs
		}
	}

	return free, nil
}

// availableIntervalsOn returns the raw available intervals (overrides not
// subtracted) for one date, used by the create-time overlap check.
func (s *Service) availableIntervalsOn(ctx context.Context, instructorID string, date time.Time) ([]interval, error) {
	slots, err := s.store.ListSlots(ctx, instructorID, date, date)
	if err != nil {
		return nil, err
	}

	var out []interval
	for _, slot := range slots {
		if !slot.IsAvailable {
			continue
		}
		if len(expandSlotDates(slot, date, date)) == 0 {
			continue
		}
		start, err := parseClock(slot.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := parseClock(slot.EndTime)
		if err != nil {
			return nil, err
		}
		out = append(out, interval{start, end})
	}

	return out, nil
}

func parseSlotRequest(req *api.TimeSlotRequest) (*models.TimeSlot, error) {
	if req.InstructorID == "" {
		return nil, fmt.Errorf("instructor_id is required: %w", response.ErrValidation)
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClock(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(req.EndTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("end_time must be after start_time: %w", response.ErrValidation)
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	slot := &models.TimeSlot{
		InstructorID: req.InstructorID,
		Date:         date,
		StartTime:    formatClock(start),
		EndTime:      formatClock(end),
		IsAvailable:  available,
		IsRecurring:  req.IsRecurring,
	}

	if req.IsRecurring {
		pattern := models.RecurrencePattern(req.RecurrencePattern)
		if !pattern.Valid() {
			return nil, fmt.Errorf("invalid recurrence_pattern %q: %w", req.RecurrencePattern, response.ErrValidation)
		}
		slot.RecurrencePattern = &pattern

		if req.RecurrenceEndDate != "" {
			endDate, err := parseDate(req.RecurrenceEndDate)
			if err != nil {
				return nil, err
			}
			if endDate.Before(date) {
				return nil, fmt.Errorf("recurrence_end_date before date: %w", response.ErrValidation)
			}
			slot.RecurrenceEndDate = &endDate
		}
	}

	return slot, nil
}

func slotResponse(slot *models.TimeSlot) api.TimeSlotResponse {
	resp := api.TimeSlotResponse{
		ID:           slot.ID,
		InstructorID: slot.InstructorID,
		Date:         formatDate(slot.Date),
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
		IsAvailable:  slot.IsAvailable,
		IsRecurring:  slot.IsRecurring,
	}
	if slot.RecurrencePattern != nil {
		resp.RecurrencePattern = string(*slot.RecurrencePattern)
	}
	if slot.RecurrenceEndDate != nil {
		resp.RecurrenceEndDate = formatDate(*slot.RecurrenceEndDate)
	}

	return resp
}
