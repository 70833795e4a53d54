package scheduler

import (
	"errors"
	"fmt"

	"staffing-backend/internal/model"
)

// Validation failures are returned to the caller with their specific kind;
// none of them is ever coerced into a generic failure.
var (
	ErrTemplateNotFound         = errors.New("template not found")
	ErrShiftNotFound            = errors.New("shift not found")
	ErrAssignmentNotFound       = errors.New("no active assignment for worker on shift")
	ErrWorkerNotFound           = errors.New("worker not found or inactive")
	ErrFacilityNotFound         = errors.New("facility not found")
	ErrInvalidRecurrencePattern = errors.New("invalid recurrence pattern")
	ErrSpecialtyMismatch        = errors.New("worker specialty does not match shift")
	ErrAlreadyAssigned          = errors.New("worker already holds an active assignment on shift")
	ErrCapacityExceeded         = errors.New("shift is at capacity")
	ErrScheduleConflict         = errors.New("worker has an overlapping assignment")
	ErrRegenerationInProgress   = errors.New("regeneration already running for template")
)

// ConflictError reports a schedule conflict together with the assignment that
// caused it, for user-facing diagnostics. errors.Is(err, ErrScheduleConflict)
// matches it.
type ConflictError struct {
	Conflicting model.Assignment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("worker %s has an overlapping assignment on shift %s",
		e.Conflicting.WorkerID, e.Conflicting.ShiftInstanceID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrScheduleConflict
}
