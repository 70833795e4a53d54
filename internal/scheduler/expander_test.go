package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"staffing-backend/internal/db"
	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// monday is a fixed Monday used as the expansion window anchor.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	// A named shared-cache database keeps every pooled connection on the
	// same in-memory instance while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

func monWedTemplate() *model.ShiftTemplate {
	return &model.ShiftTemplate{
		ID:          "tpl-1",
		FacilityID:  "fac-1",
		Department:  "ICU",
		Specialty:   "RN",
		Weekdays:    model.WeekdaysOf(time.Monday, time.Wednesday),
		StartTime:   "08:00",
		EndTime:     "16:00",
		MinStaff:    2,
		MaxStaff:    2,
		HourlyRate:  55,
		HorizonDays: 14,
		IsActive:    true,
	}
}

func TestInstanceID(t *testing.T) {
	a := InstanceID("tpl-1", monday, 0)
	b := InstanceID("tpl-1", monday, 0)
	assert.Equal(t, a, b, "same inputs must map to the same id")

	assert.NotEqual(t, a, InstanceID("tpl-1", monday, 1), "slots must not collide")
	assert.NotEqual(t, a, InstanceID("tpl-1", monday.AddDate(0, 0, 1), 0), "dates must not collide")
	assert.NotEqual(t, a, InstanceID("tpl-2", monday, 0), "templates must not collide")
	assert.Len(t, a, 32)
}

func TestExpandCount(t *testing.T) {
	s := newTestStore(t)
	e := NewExpander(s)
	tmpl := monWedTemplate()

	// 14-day window starting on a Monday: two Mondays, two Wednesdays,
	// two slots each.
	generated, err := e.Expand(context.Background(), tmpl, monday, monday.AddDate(0, 0, 13), ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, generated)

	shifts, err := s.ListOpenShifts(context.Background(), store.ShiftFilter{})
	require.NoError(t, err)
	require.Len(t, shifts, 8)

	for _, sh := range shifts {
		wd := sh.Date.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Wednesday, "unexpected weekday %s", wd)
		assert.Equal(t, 2, sh.Capacity, "capacity frozen from template max_staff")
		assert.Equal(t, 0, sh.FilledCount)
		assert.Equal(t, model.ShiftOpen, sh.Status)
		assert.Equal(t, "08:00", sh.StartTime)
	}
}

func TestExpandIdempotent(t *testing.T) {
	s := newTestStore(t)
	e := NewExpander(s)
	tmpl := monWedTemplate()
	ctx := context.Background()

	first, err := e.Expand(ctx, tmpl, monday, monday.AddDate(0, 0, 13), ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, first)

	second, err := e.Expand(ctx, tmpl, monday, monday.AddDate(0, 0, 13), ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, second, "re-running an identical expansion must create nothing")

	// An overlapping window only creates the instances beyond the old one.
	third, err := e.Expand(ctx, tmpl, monday, monday.AddDate(0, 0, 20), ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, third, "one extra Monday and Wednesday, two slots each")
}

func TestExpandRegenerationPreservesAssigned(t *testing.T) {
	s := newTestStore(t)
	e := NewExpander(s)
	e.Now = func() time.Time { return monday.AddDate(0, 0, -7) }
	tmpl := monWedTemplate()
	ctx := context.Background()

	_, err := e.Expand(ctx, tmpl, monday, monday.AddDate(0, 0, 6), ExpandOptions{})
	require.NoError(t, err)

	// Simulate a committed assignment on one instance.
	assignedID := InstanceID(tmpl.ID, monday, 0)
	a := &model.Assignment{
		ShiftInstanceID: assignedID,
		WorkerID:        "w-1",
		AssignedAt:      time.Now().UTC(),
		Status:          model.AssignmentActive,
	}
	require.NoError(t, s.CommitAssignment(ctx, a, nil))

	// Change the template window and regenerate.
	tmpl.StartTime = "09:00"
	tmpl.EndTime = "17:00"
	generated, err := e.Expand(ctx, tmpl, monday, monday.AddDate(0, 0, 6), ExpandOptions{PreserveAssigned: true})
	require.NoError(t, err)
	assert.Equal(t, 3, generated, "the three unassigned instances are recreated")

	kept, err := s.GetShift(ctx, assignedID)
	require.NoError(t, err)
	assert.Equal(t, "08:00", kept.StartTime, "assigned instance keeps its original window")
	assert.Equal(t, 1, kept.FilledCount)

	regen, err := s.GetShift(ctx, InstanceID(tmpl.ID, monday, 1))
	require.NoError(t, err)
	assert.Equal(t, "09:00", regen.StartTime, "unassigned instance reflects the updated template")
}

func TestExpandSerializedPerTemplate(t *testing.T) {
	s := newTestStore(t)
	e := NewExpander(s)
	tmpl := monWedTemplate()

	lock := e.templateLock(tmpl.ID)
	lock.Lock()
	defer lock.Unlock()

	_, err := e.Expand(context.Background(), tmpl, monday, monday.AddDate(0, 0, 6), ExpandOptions{})
	assert.ErrorIs(t, err, ErrRegenerationInProgress)

	// A different template is unaffected.
	other := monWedTemplate()
	other.ID = "tpl-2"
	generated, err := e.Expand(context.Background(), other, monday, monday.AddDate(0, 0, 6), ExpandOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, generated)
}

func TestValidatePattern(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*model.ShiftTemplate)
		valid  bool
	}{
		{"valid template", func(*model.ShiftTemplate) {}, true},
		{"empty weekday set while active", func(tmpl *model.ShiftTemplate) { tmpl.Weekdays = 0 }, false},
		{"empty weekday set while inactive", func(tmpl *model.ShiftTemplate) { tmpl.Weekdays = 0; tmpl.IsActive = false }, true},
		{"zero min staff", func(tmpl *model.ShiftTemplate) { tmpl.MinStaff = 0 }, false},
		{"max below min", func(tmpl *model.ShiftTemplate) { tmpl.MaxStaff = 1 }, false},
		{"bad start time", func(tmpl *model.ShiftTemplate) { tmpl.StartTime = "25:00" }, false},
		{"bad end time", func(tmpl *model.ShiftTemplate) { tmpl.EndTime = "oops" }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := monWedTemplate()
			tc.mutate(tmpl)
			err := ValidatePattern(tmpl)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRecurrencePattern)
			}
		})
	}
}
