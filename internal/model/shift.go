package model

import "time"

// ShiftStatus is the derived fill state of a shift instance.
type ShiftStatus string

const (
	ShiftOpen            ShiftStatus = "open"
	ShiftPartiallyFilled ShiftStatus = "partially_filled"
	ShiftFilled          ShiftStatus = "filled"
	ShiftCancelled       ShiftStatus = "cancelled"
)

// StatusOf derives the fill status from the filled count and capacity.
// Cancellation is a terminal state handled outside this function.
func StatusOf(filled, capacity int) ShiftStatus {
	switch {
	case filled <= 0:
		return ShiftOpen
	case filled < capacity:
		return ShiftPartiallyFilled
	default:
		return ShiftFilled
	}
}

// ShiftInstance is a single dated, capacity-bound unit of work. Template-generated
// instances carry a deterministic ID derived from (template, date, slot); ad-hoc
// instances carry a random ID and a nil TemplateID.
type ShiftInstance struct {
	ID          string      `gorm:"primaryKey;size:64" json:"id"`
	TemplateID  *string     `gorm:"index;size:36" json:"template_id,omitempty"`
	SlotIndex   int         `gorm:"not null" json:"slot_index"`
	FacilityID  string      `gorm:"index;size:36;not null" json:"facility_id"`
	Department  string      `gorm:"size:128" json:"department"`
	Specialty   string      `gorm:"index;size:64;not null" json:"specialty"`
	Date        time.Time   `gorm:"index;not null" json:"date"` // midnight UTC
	StartTime   string      `gorm:"size:5;not null" json:"start_time"`
	EndTime     string      `gorm:"size:5;not null" json:"end_time"`
	HourlyRate  float64     `json:"hourly_rate"`
	Capacity    int         `gorm:"not null" json:"capacity"` // frozen at generation time
	FilledCount int         `gorm:"not null;default:0" json:"filled_count"`
	Status      ShiftStatus `gorm:"size:20;not null;index" json:"status"`
	Urgency     string      `gorm:"size:16" json:"urgency,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
