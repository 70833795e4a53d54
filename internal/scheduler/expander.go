package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// InstanceID returns the deterministic id for a template-generated shift
// instance. The id is the dedup key for expansion: re-running an expansion
// over an overlapping window maps each (template, date, slot) to the same id,
// and the store's conflict clause skips rows that already exist. Hashing the
// composite avoids collisions between ad-hoc ids and generated ones and keeps
// slot-count changes from aliasing each other.
func InstanceID(templateID string, date time.Time, slot int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", templateID, date.Format("2006-01-02"), slot)))
	return hex.EncodeToString(sum[:16])
}

// ExpandOptions controls a single expansion run. Instances whose id already
// exists are always left as they are; the deterministic id is the dedup key.
type ExpandOptions struct {
	// PreserveAssigned deletes the template's future unassigned instances
	// before generating, leaving any instance with active assignments
	// untouched. Used on template update and manual regeneration.
	PreserveAssigned bool
}

// Expander materializes a template's weekday pattern into dated shift
// instances. Expansion is idempotent and resumable: a failure partway through
// leaves already-created instances in place and a retry with the same
// parameters fills in the rest.
type Expander struct {
	store store.Store

	// Now is the clock used to bound "future" deletions; overridable in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExpander creates an expander backed by the given store.
func NewExpander(s store.Store) *Expander {
	return &Expander{
		store: s,
		Now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// templateLock returns the mutex serializing expansion runs for a template.
func (e *Expander) templateLock(templateID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[templateID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[templateID] = l
	}
	return l
}

// Expand ensures the required shift instances exist for every date in
// [windowStart, windowEnd] matching the template's weekday set, and returns
// the number of instances newly created. Each matching date gets one instance
// per required position (MinStaff slots), with capacity frozen from the
// template's MaxStaff at generation time.
//
// Runs for the same template are serialized; a concurrent call returns
// ErrRegenerationInProgress instead of blocking, so callers can retry later.
func (e *Expander) Expand(ctx context.Context, tmpl *model.ShiftTemplate, windowStart, windowEnd time.Time, opts ExpandOptions) (int, error) {
	if err := ValidatePattern(tmpl); err != nil {
		return 0, err
	}

	lock := e.templateLock(tmpl.ID)
	if !lock.TryLock() {
		return 0, ErrRegenerationInProgress
	}
	defer lock.Unlock()

	if opts.PreserveAssigned {
		today := midnight(e.Now().UTC())
		if _, err := e.store.DeleteUnassignedFuture(ctx, tmpl.ID, today); err != nil {
			return 0, fmt.Errorf("delete unassigned future instances: %w", err)
		}
	}

	var instances []model.ShiftInstance
	templateID := tmpl.ID
	for d := midnight(windowStart); !d.After(midnight(windowEnd)); d = d.AddDate(0, 0, 1) {
		if !tmpl.Weekdays.Has(d.Weekday()) {
			continue
		}
		for slot := 0; slot < tmpl.MinStaff; slot++ {
			instances = append(instances, model.ShiftInstance{
				ID:         InstanceID(tmpl.ID, d, slot),
				TemplateID: &templateID,
				SlotIndex:  slot,
				FacilityID: tmpl.FacilityID,
				Department: tmpl.Department,
				Specialty:  tmpl.Specialty,
				Date:       d,
				StartTime:  tmpl.StartTime,
				EndTime:    tmpl.EndTime,
				HourlyRate: tmpl.HourlyRate,
				Capacity:   tmpl.MaxStaff,
				Status:     model.ShiftOpen,
			})
		}
	}

	created, err := e.store.InsertInstances(ctx, instances)
	if err != nil {
		return int(created), fmt.Errorf("insert instances for template %s: %w", tmpl.ID, err)
	}
	return int(created), nil
}

// ValidatePattern checks a template's recurrence invariants: a non-empty
// weekday set while active, staffing bounds, and parsable wall-clock times.
func ValidatePattern(tmpl *model.ShiftTemplate) error {
	if tmpl.IsActive && tmpl.Weekdays.Count() == 0 {
		return fmt.Errorf("%w: active template has empty weekday set", ErrInvalidRecurrencePattern)
	}
	if tmpl.MinStaff < 1 {
		return fmt.Errorf("%w: min_staff must be at least 1", ErrInvalidRecurrencePattern)
	}
	if tmpl.MaxStaff < tmpl.MinStaff {
		return fmt.Errorf("%w: max_staff %d below min_staff %d", ErrInvalidRecurrencePattern, tmpl.MaxStaff, tmpl.MinStaff)
	}
	if _, err := model.ParseClock(tmpl.StartTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurrencePattern, err)
	}
	if _, err := model.ParseClock(tmpl.EndTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurrencePattern, err)
	}
	return nil
}

// midnight truncates a time to the start of its UTC day.
func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
