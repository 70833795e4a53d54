package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"staffing-backend/internal/event"
	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// FacilityDirectory is the narrow view of the facility system consulted at
// template creation.
type FacilityDirectory interface {
	FacilityExists(ctx context.Context, id string) (bool, error)
}

// Service owns the template lifecycle and its coupling to expansion: create
// and activation expand immediately, updates regenerate future unassigned
// instances, deactivation only halts future runs.
type Service struct {
	store      store.Store
	facilities FacilityDirectory
	expander   *Expander
	events     event.Sink

	// DefaultHorizonDays applies when a template does not set its own horizon.
	DefaultHorizonDays int

	// Now is overridable in tests.
	Now func() time.Time
}

// NewService creates the template lifecycle service.
func NewService(s store.Store, facilities FacilityDirectory, expander *Expander, events event.Sink, defaultHorizonDays int) *Service {
	if events == nil {
		events = event.LogSink{}
	}
	if defaultHorizonDays < 7 || defaultHorizonDays > 30 {
		defaultHorizonDays = 14
	}
	return &Service{
		store:              s,
		facilities:         facilities,
		expander:           expander,
		events:             events,
		DefaultHorizonDays: defaultHorizonDays,
		Now:                time.Now,
	}
}

// TemplatePatch carries the mutable template fields for an update. Nil fields
// are left unchanged.
type TemplatePatch struct {
	Department  *string         `json:"department"`
	Specialty   *string         `json:"specialty"`
	Weekdays    *model.Weekdays `json:"weekdays"`
	StartTime   *string         `json:"start_time"`
	EndTime     *string         `json:"end_time"`
	MinStaff    *int            `json:"min_staff"`
	MaxStaff    *int            `json:"max_staff"`
	HourlyRate  *float64        `json:"hourly_rate"`
	HorizonDays *int            `json:"horizon_days"`
}

// CreateTemplate validates and stores a new template. An active template is
// expanded immediately over [today, today+horizon].
func (s *Service) CreateTemplate(ctx context.Context, tmpl *model.ShiftTemplate) (*model.ShiftTemplate, int, error) {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	if tmpl.HorizonDays == 0 {
		tmpl.HorizonDays = s.DefaultHorizonDays
	}
	if tmpl.HorizonDays < 7 {
		tmpl.HorizonDays = 7
	}
	if tmpl.HorizonDays > 30 {
		tmpl.HorizonDays = 30
	}

	if err := ValidatePattern(tmpl); err != nil {
		return nil, 0, err
	}

	ok, err := s.facilities.FacilityExists(ctx, tmpl.FacilityID)
	if err != nil {
		return nil, 0, fmt.Errorf("check facility %s: %w", tmpl.FacilityID, err)
	}
	if !ok {
		return nil, 0, ErrFacilityNotFound
	}

	if err := s.store.CreateTemplate(ctx, tmpl); err != nil {
		return nil, 0, fmt.Errorf("create template: %w", err)
	}

	generated := 0
	if tmpl.IsActive {
		generated, err = s.expandHorizon(ctx, tmpl, ExpandOptions{})
		if err != nil {
			return nil, 0, err
		}
	}
	return tmpl, generated, nil
}

// UpdateTemplate applies a patch and, for active templates, regenerates the
// future unassigned instances from the new definition. Instances holding
// assignments are preserved even when the template changes.
func (s *Service) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*model.ShiftTemplate, int, error) {
	tmpl, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	applyPatch(tmpl, patch)
	if err := ValidatePattern(tmpl); err != nil {
		return nil, 0, err
	}

	if err := s.store.SaveTemplate(ctx, tmpl); err != nil {
		return nil, 0, fmt.Errorf("save template: %w", err)
	}

	generated := 0
	if tmpl.IsActive {
		generated, err = s.expandHorizon(ctx, tmpl, ExpandOptions{PreserveAssigned: true})
		if err != nil {
			return nil, 0, err
		}
	}
	return tmpl, generated, nil
}

// SetActive toggles a template. Activation triggers a fresh expansion;
// deactivation halts future generation but never deletes or unassigns
// existing instances.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*model.ShiftTemplate, int, error) {
	tmpl, err := s.getTemplate(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if tmpl.IsActive == active {
		return tmpl, 0, nil
	}

	tmpl.IsActive = active
	if active {
		if err := ValidatePattern(tmpl); err != nil {
			return nil, 0, err
		}
	}
	if err := s.store.SaveTemplate(ctx, tmpl); err != nil {
		return nil, 0, fmt.Errorf("save template: %w", err)
	}

	generated := 0
	if active {
		generated, err = s.expandHorizon(ctx, tmpl, ExpandOptions{})
		if err != nil {
			return nil, 0, err
		}
	}
	return tmpl, generated, nil
}

// Regenerate re-runs expansion for a template on demand, discarding future
// unassigned instances and recreating them from the current definition. For
// an inactive template the cleanup still runs but nothing is generated until
// reactivation; assigned instances are left untouched either way.
func (s *Service) Regenerate(ctx context.Context, id string) (int, error) {
	tmpl, err := s.getTemplate(ctx, id)
	if err != nil {
		return 0, err
	}
	if !tmpl.IsActive {
		today := midnight(s.Now().UTC())
		if _, err := s.store.DeleteUnassignedFuture(ctx, id, today); err != nil {
			return 0, fmt.Errorf("delete unassigned future instances: %w", err)
		}
		return 0, nil
	}
	return s.expandHorizon(ctx, tmpl, ExpandOptions{PreserveAssigned: true})
}

// CreateAdHocShift stores a manually created shift instance that is not bound
// to any template.
func (s *Service) CreateAdHocShift(ctx context.Context, sh *model.ShiftInstance) (*model.ShiftInstance, error) {
	if sh.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidRecurrencePattern)
	}
	if _, err := model.ParseClock(sh.StartTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrencePattern, err)
	}
	if _, err := model.ParseClock(sh.EndTime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrencePattern, err)
	}

	ok, err := s.facilities.FacilityExists(ctx, sh.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("check facility %s: %w", sh.FacilityID, err)
	}
	if !ok {
		return nil, ErrFacilityNotFound
	}

	sh.TemplateID = nil
	sh.Date = midnight(sh.Date)
	sh.FilledCount = 0
	sh.Status = model.ShiftOpen
	if err := s.store.CreateShift(ctx, sh); err != nil {
		return nil, fmt.Errorf("create shift: %w", err)
	}
	return sh, nil
}

// CancelShift marks a shift cancelled. Cancelled shifts accept no further
// assignments; existing assignments stay on record.
func (s *Service) CancelShift(ctx context.Context, id string) error {
	sh, err := s.store.GetShift(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShiftNotFound
		}
		return err
	}
	if sh.Status == model.ShiftCancelled {
		return nil
	}
	if err := s.store.CancelShift(ctx, id); err != nil {
		return fmt.Errorf("cancel shift: %w", err)
	}

	s.events.Publish(event.Event{
		Type:       event.ShiftCancelled,
		FacilityID: sh.FacilityID,
		At:         time.Now().UTC(),
		Payload: map[string]any{
			"shift_id": id,
			"date":     sh.Date.Format("2006-01-02"),
		},
	})
	return nil
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*model.ShiftTemplate, error) {
	return s.getTemplate(ctx, id)
}

func (s *Service) getTemplate(ctx context.Context, id string) (*model.ShiftTemplate, error) {
	tmpl, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tmpl, nil
}

// expandHorizon expands over the template's horizon window [today,
// today+horizon) and publishes a generation event when anything was created.
func (s *Service) expandHorizon(ctx context.Context, tmpl *model.ShiftTemplate, opts ExpandOptions) (int, error) {
	today := midnight(s.Now().UTC())
	windowEnd := today.AddDate(0, 0, tmpl.HorizonDays-1)

	generated, err := s.expander.Expand(ctx, tmpl, today, windowEnd, opts)
	if err != nil {
		return generated, err
	}
	if generated > 0 {
		s.events.Publish(event.Event{
			Type:       event.ShiftsGenerated,
			FacilityID: tmpl.FacilityID,
			At:         time.Now().UTC(),
			Payload: map[string]any{
				"template_id": tmpl.ID,
				"generated":   generated,
			},
		})
	}
	return generated, nil
}

func applyPatch(tmpl *model.ShiftTemplate, patch TemplatePatch) {
	if patch.Department != nil {
		tmpl.Department = *patch.Department
	}
	if patch.Specialty != nil {
		tmpl.Specialty = *patch.Specialty
	}
	if patch.Weekdays != nil {
		tmpl.Weekdays = *patch.Weekdays
	}
	if patch.StartTime != nil {
		tmpl.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		tmpl.EndTime = *patch.EndTime
	}
	if patch.MinStaff != nil {
		tmpl.MinStaff = *patch.MinStaff
	}
	if patch.MaxStaff != nil {
		tmpl.MaxStaff = *patch.MaxStaff
	}
	if patch.HourlyRate != nil {
		tmpl.HourlyRate = *patch.HourlyRate
	}
	if patch.HorizonDays != nil {
		tmpl.HorizonDays = *patch.HorizonDays
	}
}
