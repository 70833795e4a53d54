package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Weekdays is a bitmask of the days of week a template recurs on.
// Bit n corresponds to time.Weekday(n), Sunday = 0. The JSON form is the
// day-number list ([1,3] for Mon/Wed), so API responses feed back into
// requests unchanged; the bitmask is a storage detail.
type Weekdays uint8

// WeekdaysOf builds a bitmask from a list of weekdays.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// Has reports whether the given weekday is part of the set.
func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// Count returns the number of weekdays in the set.
func (w Weekdays) Count() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			n++
		}
	}
	return n
}

// List returns the weekdays in the set, Sunday first.
func (w Weekdays) List() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	days := make([]int, 0, w.Count())
	for _, d := range w.List() {
		days = append(days, int(d))
	}
	return json.Marshal(days)
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	var set Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid weekday %d: want 0 (Sunday) through 6 (Saturday)", d)
		}
		set |= 1 << uint(d)
	}
	*w = set
	return nil
}

// ShiftTemplate is a recurring staffing-need definition. Active templates are
// expanded into dated ShiftInstance rows over a rolling horizon.
type ShiftTemplate struct {
	ID          string   `gorm:"primaryKey;size:36" json:"id"`
	FacilityID  string   `gorm:"index;size:36;not null" json:"facility_id"`
	Department  string   `gorm:"size:128" json:"department"`
	Specialty   string   `gorm:"size:64;not null" json:"specialty"`
	Weekdays    Weekdays `gorm:"not null" json:"weekdays"`
	StartTime   string   `gorm:"size:5;not null" json:"start_time"` // "HH:MM" wall clock
	EndTime     string   `gorm:"size:5;not null" json:"end_time"`   // may wrap past midnight
	MinStaff    int      `gorm:"not null" json:"min_staff"`
	MaxStaff    int      `gorm:"not null" json:"max_staff"`
	HourlyRate  float64  `json:"hourly_rate"`
	HorizonDays int      `gorm:"not null" json:"horizon_days"`
	IsActive    bool     `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
