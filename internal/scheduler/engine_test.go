package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"staffing-backend/internal/event"
	"staffing-backend/internal/model"
	"staffing-backend/internal/store"
)

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordingSink) Publish(evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingSink) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Type
	for _, evt := range r.events {
		out = append(out, evt.Type)
	}
	return out
}

// mapWorkerDirectory is an in-memory WorkerDirectory.
type mapWorkerDirectory map[string]*model.Worker

func (m mapWorkerDirectory) GetWorker(_ context.Context, id string) (*model.Worker, error) {
	if w, ok := m[id]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newEngineEnv(t *testing.T) (store.Store, *Engine, *recordingSink) {
	t.Helper()
	s := newTestStore(t)
	sink := &recordingSink{}
	workers := mapWorkerDirectory{
		"rn-1":       {ID: "rn-1", Specialty: "RN", IsActive: true},
		"rn-2":       {ID: "rn-2", Specialty: "RN", IsActive: true},
		"rn-3":       {ID: "rn-3", Specialty: "RN", IsActive: true},
		"lpn-1":      {ID: "lpn-1", Specialty: "LPN", IsActive: true},
		"rn-retired": {ID: "rn-retired", Specialty: "RN", IsActive: false},
	}
	return s, NewEngine(s, workers, sink), sink
}

func seedShift(t *testing.T, s store.Store, id string, capacity int) {
	t.Helper()
	require.NoError(t, s.CreateShift(context.Background(), &model.ShiftInstance{
		ID:         id,
		FacilityID: "fac-1",
		Specialty:  "RN",
		Date:       monday,
		StartTime:  "08:00",
		EndTime:    "16:00",
		Capacity:   capacity,
	}))
}

func TestAssign(t *testing.T) {
	s, engine, sink := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 2)

	a, err := engine.Assign(ctx, "s-1", "rn-1", "coordinator-1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentActive, a.Status)
	assert.Equal(t, "coordinator-1", a.AssignedBy)

	sh, err := s.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sh.FilledCount)
	assert.Equal(t, model.ShiftPartiallyFilled, sh.Status)

	assert.Contains(t, sink.types(), event.AssignmentCreated)
}

func TestAssignFillsToCapacity(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 1)

	_, err := engine.Assign(ctx, "s-1", "rn-1", "")
	require.NoError(t, err)

	sh, err := s.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, model.ShiftFilled, sh.Status)
}

func TestAssignValidationOrder(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 2)

	t.Run("unknown shift", func(t *testing.T) {
		_, err := engine.Assign(ctx, "nope", "rn-1", "")
		assert.ErrorIs(t, err, ErrShiftNotFound)
	})

	t.Run("cancelled shift", func(t *testing.T) {
		seedShift(t, s, "s-cancelled", 2)
		require.NoError(t, s.CancelShift(ctx, "s-cancelled"))
		_, err := engine.Assign(ctx, "s-cancelled", "rn-1", "")
		assert.ErrorIs(t, err, ErrShiftNotFound)
	})

	t.Run("unknown worker", func(t *testing.T) {
		_, err := engine.Assign(ctx, "s-1", "ghost", "")
		assert.ErrorIs(t, err, ErrWorkerNotFound)
	})

	t.Run("inactive worker", func(t *testing.T) {
		_, err := engine.Assign(ctx, "s-1", "rn-retired", "")
		assert.ErrorIs(t, err, ErrWorkerNotFound)
	})

	t.Run("specialty mismatch", func(t *testing.T) {
		_, err := engine.Assign(ctx, "s-1", "lpn-1", "")
		assert.ErrorIs(t, err, ErrSpecialtyMismatch)
	})

	t.Run("already assigned", func(t *testing.T) {
		_, err := engine.Assign(ctx, "s-1", "rn-1", "")
		require.NoError(t, err)
		_, err = engine.Assign(ctx, "s-1", "rn-1", "")
		assert.ErrorIs(t, err, ErrAlreadyAssigned)
	})
}

func TestAssignCapacityExceeded(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 2)

	_, err := engine.Assign(ctx, "s-1", "rn-1", "")
	require.NoError(t, err)
	_, err = engine.Assign(ctx, "s-1", "rn-2", "")
	require.NoError(t, err)

	_, err = engine.Assign(ctx, "s-1", "rn-3", "")
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	sh, err := s.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sh.FilledCount, "rejected assign must not mutate the counter")
	assert.Equal(t, model.ShiftFilled, sh.Status)
}

func TestAssignScheduleConflict(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-a", 2)

	// s-b overlaps s-a in time.
	require.NoError(t, s.CreateShift(ctx, &model.ShiftInstance{
		ID: "s-b", FacilityID: "fac-1", Specialty: "RN",
		Date: monday, StartTime: "12:00", EndTime: "20:00", Capacity: 2,
	}))

	_, err := engine.Assign(ctx, "s-a", "rn-1", "")
	require.NoError(t, err)

	_, err = engine.Assign(ctx, "s-b", "rn-1", "")
	assert.ErrorIs(t, err, ErrScheduleConflict)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "s-a", conflict.Conflicting.ShiftInstanceID)

	sh, err := s.GetShift(ctx, "s-b")
	require.NoError(t, err)
	assert.Equal(t, 0, sh.FilledCount, "conflicting assign must not mutate the target shift")
	assert.Equal(t, model.ShiftOpen, sh.Status)
}

func TestAssignUnassignRoundTrip(t *testing.T) {
	s, engine, sink := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 2)

	_, err := engine.Assign(ctx, "s-1", "rn-1", "")
	require.NoError(t, err)

	released, err := engine.Unassign(ctx, "s-1", "rn-1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentUnassigned, released.Status)
	require.NotNil(t, released.UnassignedAt)

	sh, err := s.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sh.FilledCount)
	assert.Equal(t, model.ShiftOpen, sh.Status)

	// History is retained for audit.
	history, err := engine.Assignments(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.AssignmentUnassigned, history[0].Status)

	assert.Contains(t, sink.types(), event.AssignmentRemoved)

	// The pair can be assigned again after release.
	_, err = engine.Assign(ctx, "s-1", "rn-1", "")
	require.NoError(t, err)

	history, err = engine.Assignments(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// interceptStore fires a hook before the first conflict scan, opening the
// window between pre-validation and commit for a simulated racing request.
type interceptStore struct {
	store.Store
	once sync.Once
	hook func()
}

func (s *interceptStore) WorkerActiveShifts(ctx context.Context, workerID string, from, to time.Time, excludeShiftID string) ([]store.WorkerShift, error) {
	s.once.Do(s.hook)
	return s.Store.WorkerActiveShifts(ctx, workerID, from, to, excludeShiftID)
}

func TestAssignRejectsRacingDuplicatePair(t *testing.T) {
	base := newTestStore(t)
	wrapped := &interceptStore{Store: base}
	workers := mapWorkerDirectory{"rn-1": {ID: "rn-1", Specialty: "RN", IsActive: true}}
	engine := NewEngine(wrapped, workers, &recordingSink{})
	ctx := context.Background()
	seedShift(t, base, "s-1", 2)

	// A rival request for the same pair commits after our validation has
	// passed but before our commit.
	wrapped.hook = func() {
		require.NoError(t, base.CommitAssignment(ctx, &model.Assignment{
			ShiftInstanceID: "s-1",
			WorkerID:        "rn-1",
			AssignedAt:      time.Now().UTC(),
			Status:          model.AssignmentActive,
		}, nil))
	}

	_, err := engine.Assign(ctx, "s-1", "rn-1", "")
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	sh, err := base.GetShift(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sh.FilledCount, "only the rival's seat claim survives")

	rows, err := base.AssignmentsForShift(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "the pair must never hold two active assignments")
	assert.Equal(t, model.AssignmentActive, rows[0].Status)
}

func TestUnassignWithoutAssignment(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	seedShift(t, s, "s-1", 1)

	_, err := engine.Unassign(context.Background(), "s-1", "rn-1")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestCapacityInvariantUnderSequence(t *testing.T) {
	s, engine, _ := newEngineEnv(t)
	ctx := context.Background()
	seedShift(t, s, "s-1", 2)

	steps := []struct {
		op     string
		worker string
	}{
		{"assign", "rn-1"},
		{"assign", "rn-2"},
		{"unassign", "rn-1"},
		{"assign", "rn-3"},
		{"unassign", "rn-2"},
		{"unassign", "rn-3"},
		{"assign", "rn-1"},
	}

	for _, step := range steps {
		var err error
		if step.op == "assign" {
			_, err = engine.Assign(ctx, "s-1", step.worker, "")
		} else {
			_, err = engine.Unassign(ctx, "s-1", step.worker)
		}
		require.NoError(t, err, "%s %s", step.op, step.worker)

		sh, err := s.GetShift(ctx, "s-1")
		require.NoError(t, err)

		active := 0
		all, err := s.AssignmentsForShift(ctx, "s-1")
		require.NoError(t, err)
		for _, a := range all {
			if a.Status == model.AssignmentActive {
				active++
			}
		}
		assert.Equal(t, active, sh.FilledCount, "filled count must equal active assignments")
		assert.GreaterOrEqual(t, sh.FilledCount, 0)
		assert.LessOrEqual(t, sh.FilledCount, sh.Capacity)
		assert.Equal(t, model.StatusOf(sh.FilledCount, sh.Capacity), sh.Status)
	}
}
