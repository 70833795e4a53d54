package store

import (
	"time"

	"staffing-backend/internal/model"
)

// ShiftFilter narrows open-shift listings.
type ShiftFilter struct {
	FacilityID string
	Specialty  string
	From       *time.Time
	To         *time.Time
}

// WorkerShift pairs an active assignment with the shift instance it is for.
// The conflict detector consumes these when scanning for time overlaps.
type WorkerShift struct {
	Assignment model.Assignment
	Shift      model.ShiftInstance
}
