package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"staffing-backend/internal/event"
	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// WorkerDirectory is the narrow view of the worker system the engine needs
// for specialty validation.
type WorkerDirectory interface {
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
}

// Engine is the transactional core for worker-to-shift assignment. It
// enforces specialty match, capacity bounds and conflict-freedom, and keeps
// the derived fill status consistent with the assignment set.
type Engine struct {
	store    store.Store
	workers  WorkerDirectory
	detector *ConflictDetector
	events   event.Sink
}

// NewEngine creates an assignment engine.
func NewEngine(s store.Store, workers WorkerDirectory, events event.Sink) *Engine {
	if events == nil {
		events = event.LogSink{}
	}
	return &Engine{
		store:    s,
		workers:  workers,
		detector: NewConflictDetector(s),
		events:   events,
	}
}

// Assign validates and commits an assignment of the worker to the shift.
// Validation fails fast with a distinct error kind per rule; on success the
// seat claim, status recompute and assignment insert commit atomically, with
// the conflict check re-run inside the same transaction so near-simultaneous
// requests on different shifts cannot double-book the worker.
func (e *Engine) Assign(ctx context.Context, shiftID, workerID, assignedBy string) (*model.Assignment, error) {
	shift, err := e.store.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, fmt.Errorf("load shift %s: %w", shiftID, err)
	}
	if shift.Status == model.ShiftCancelled {
		return nil, ErrShiftNotFound
	}

	worker, err := e.workers.GetWorker(ctx, workerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("load worker %s: %w", workerID, err)
	}
	if !worker.IsActive {
		return nil, ErrWorkerNotFound
	}
	if worker.Specialty != shift.Specialty {
		return nil, ErrSpecialtyMismatch
	}

	if _, err := e.store.ActiveAssignment(ctx, shiftID, workerID); err == nil {
		return nil, ErrAlreadyAssigned
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing assignment: %w", err)
	}

	if shift.FilledCount >= shift.Capacity {
		return nil, ErrCapacityExceeded
	}

	if confl, err := e.detector.FindConflict(ctx, workerID, shift.Date, shift.StartTime, shift.EndTime, shiftID); err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	} else if confl != nil {
		return nil, &ConflictError{Conflicting: *confl}
	}

	a := &model.Assignment{
		ShiftInstanceID: shiftID,
		WorkerID:        workerID,
		AssignedBy:      assignedBy,
		AssignedAt:      time.Now().UTC(),
		Status:          model.AssignmentActive,
	}

	// The guard re-runs the conflict check against the transaction's view;
	// its verdict is the authoritative one for the commit.
	guard := func(tx *gorm.DB) error {
		txDetector := NewConflictDetector(store.NewGormStore(tx))
		confl, err := txDetector.FindConflict(ctx, workerID, shift.Date, shift.StartTime, shift.EndTime, shiftID)
		if err != nil {
			return err
		}
		if confl != nil {
			return &ConflictError{Conflicting: *confl}
		}
		return nil
	}

	if err := e.store.CommitAssignment(ctx, a, guard); err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			return nil, ce
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A racing request committed the same pair after our
			// pre-validation passed.
			return nil, ErrAlreadyAssigned
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The conditional seat claim matched no row: the shift filled up
			// or was cancelled since validation. Re-read to report the right
			// kind.
			return nil, e.diagnoseClaimFailure(ctx, shiftID)
		}
		return nil, fmt.Errorf("commit assignment: %w", err)
	}

	e.events.Publish(event.Event{
		Type:       event.AssignmentCreated,
		FacilityID: shift.FacilityID,
		At:         time.Now().UTC(),
		Payload: map[string]any{
			"shift_id":    shiftID,
			"worker_id":   workerID,
			"assigned_by": assignedBy,
			"date":        shift.Date.Format("2006-01-02"),
		},
	})
	return a, nil
}

func (e *Engine) diagnoseClaimFailure(ctx context.Context, shiftID string) error {
	shift, err := e.store.GetShift(ctx, shiftID)
	if err != nil || shift.Status == model.ShiftCancelled {
		return ErrShiftNotFound
	}
	return ErrCapacityExceeded
}

// Unassign releases the worker's active assignment on the shift. The record
// is kept with status unassigned so audit queries remain possible, and the
// seat reopens unconditionally; notice-period policy belongs to a layer above
// this one.
func (e *Engine) Unassign(ctx context.Context, shiftID, workerID string) (*model.Assignment, error) {
	released, err := e.store.ReleaseAssignment(ctx, shiftID, workerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("release assignment: %w", err)
	}

	facilityID := ""
	if shift, err := e.store.GetShift(ctx, shiftID); err == nil {
		facilityID = shift.FacilityID
	}
	e.events.Publish(event.Event{
		Type:       event.AssignmentRemoved,
		FacilityID: facilityID,
		At:         time.Now().UTC(),
		Payload: map[string]any{
			"shift_id":  shiftID,
			"worker_id": workerID,
		},
	})
	return released, nil
}

// Assignments returns the full assignment history for a shift, active rows
// first by assignment time.
func (e *Engine) Assignments(ctx context.Context, shiftID string) ([]model.Assignment, error) {
	if _, err := e.store.GetShift(ctx, shiftID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return e.store.AssignmentsForShift(ctx, shiftID)
}
