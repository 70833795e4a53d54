package scheduler

import (
	"context"
	"time"

	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// ConflictDetector checks whether a worker already holds an assignment that
// overlaps a candidate shift's time window.
type ConflictDetector struct {
	store store.Store
}

// NewConflictDetector creates a detector backed by the given store.
func NewConflictDetector(s store.Store) *ConflictDetector {
	return &ConflictDetector{store: s}
}

// FindConflict returns the first active assignment of the worker whose shift
// overlaps [date+start, date+end), or nil when the worker is free. Overnight
// windows (end before start) extend into the following day. The scan is
// bounded to shifts dated within one day of the candidate, which covers every
// possible overlap for windows of at most 24 hours.
func (d *ConflictDetector) FindConflict(ctx context.Context, workerID string, date time.Time, startTime, endTime string, excludeShiftID string) (*model.Assignment, error) {
	candStart, candEnd, err := absInterval(date, startTime, endTime)
	if err != nil {
		return nil, err
	}

	from := midnight(date).AddDate(0, 0, -1)
	to := midnight(date).AddDate(0, 0, 1)
	others, err := d.store.WorkerActiveShifts(ctx, workerID, from, to, excludeShiftID)
	if err != nil {
		return nil, err
	}

	for _, ws := range others {
		otherStart, otherEnd, err := absInterval(ws.Shift.Date, ws.Shift.StartTime, ws.Shift.EndTime)
		if err != nil {
			// A stored shift with an unparsable window should never happen;
			// surface it rather than silently skipping.
			return nil, err
		}
		if overlaps(candStart, candEnd, otherStart, otherEnd) {
			a := ws.Assignment
			return &a, nil
		}
	}
	return nil, nil
}

// absInterval converts a dated wall-clock window into absolute
// minutes-since-epoch. An end time at or before the start wraps past midnight.
func absInterval(date time.Time, startTime, endTime string) (int64, int64, error) {
	startMin, err := model.ParseClock(startTime)
	if err != nil {
		return 0, 0, err
	}
	endMin, err := model.ParseClock(endTime)
	if err != nil {
		return 0, 0, err
	}
	if endMin <= startMin {
		endMin += 24 * 60
	}

	base := midnight(date).Unix() / 60
	return base + int64(startMin), base + int64(endMin), nil
}

// overlaps tests two half-open intervals.
func overlaps(aStart, aEnd, bStart, bEnd int64) bool {
	return aStart < bEnd && bStart < aEnd
}
