package model

import "time"

// AssignmentStatus tracks the lifecycle of a worker-to-shift assignment.
// Unassignment is a soft transition so the history stays queryable.
type AssignmentStatus string

const (
	AssignmentActive     AssignmentStatus = "assigned"
	AssignmentUnassigned AssignmentStatus = "unassigned"
)

// Assignment pairs a worker with a shift instance. A worker holds at most one
// active assignment per shift; the count of active assignments for a shift
// equals its FilledCount.
type Assignment struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	ShiftInstanceID string           `gorm:"index:idx_assignment_shift_worker;size:64;not null" json:"shift_instance_id"`
	WorkerID        string           `gorm:"index:idx_assignment_shift_worker;size:36;not null" json:"worker_id"`
	AssignedBy      string           `gorm:"size:36" json:"assigned_by"`
	AssignedAt      time.Time        `gorm:"not null" json:"assigned_at"`
	UnassignedAt    *time.Time       `json:"unassigned_at,omitempty"`
	Status          AssignmentStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
