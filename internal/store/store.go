package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staffing-backend/internal/model"
)

// Store defines the interface for all database operations. It is the sole
// writer of ShiftInstance.FilledCount and Status.
type Store interface {
	DB() *gorm.DB

	// Templates
	CreateTemplate(ctx context.Context, t *model.ShiftTemplate) error
	GetTemplate(ctx context.Context, id string) (*model.ShiftTemplate, error)
	SaveTemplate(ctx context.Context, t *model.ShiftTemplate) error
	ListActiveTemplates(ctx context.Context) ([]model.ShiftTemplate, error)

	// Shift instances
	InsertInstances(ctx context.Context, instances []model.ShiftInstance) (int64, error)
	DeleteUnassignedFuture(ctx context.Context, templateID string, from time.Time) (int64, error)
	GetShift(ctx context.Context, id string) (*model.ShiftInstance, error)
	CreateShift(ctx context.Context, sh *model.ShiftInstance) error
	ListOpenShifts(ctx context.Context, f ShiftFilter) ([]model.ShiftInstance, error)
	CancelShift(ctx context.Context, id string) error

	// Assignments
	ActiveAssignment(ctx context.Context, shiftID, workerID string) (*model.Assignment, error)
	AssignmentsForShift(ctx context.Context, shiftID string) ([]model.Assignment, error)
	WorkerActiveShifts(ctx context.Context, workerID string, from, to time.Time, excludeShiftID string) ([]WorkerShift, error)
	CommitAssignment(ctx context.Context, a *model.Assignment, guard func(tx *gorm.DB) error) error
	ReleaseAssignment(ctx context.Context, shiftID, workerID string) (*model.Assignment, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for handlers that manage their own
// transactions (push subscriptions).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) CreateTemplate(ctx context.Context, t *model.ShiftTemplate) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *gormStore) GetTemplate(ctx context.Context, id string) (*model.ShiftTemplate, error) {
	var t model.ShiftTemplate
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) SaveTemplate(ctx context.Context, t *model.ShiftTemplate) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *gormStore) ListActiveTemplates(ctx context.Context) ([]model.ShiftTemplate, error) {
	var templates []model.ShiftTemplate
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// InsertInstances creates the given shift instances, silently skipping any
// whose deterministic ID already exists. The ON CONFLICT clause is the dedup
// mechanism; re-running an expansion never duplicates and never races a
// concurrent query-then-insert. Returns the number of rows actually created.
func (s *gormStore) InsertInstances(ctx context.Context, instances []model.ShiftInstance) (int64, error) {
	if len(instances) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&instances)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// DeleteUnassignedFuture removes a template's future instances that have no
// active assignments. Instances with FilledCount > 0 are never touched, so
// regeneration preserves worker commitments.
func (s *gormStore) DeleteUnassignedFuture(ctx context.Context, templateID string, from time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("template_id = ? AND date >= ? AND filled_count = 0", templateID, from).
		Delete(&model.ShiftInstance{})
	return res.RowsAffected, res.Error
}

func (s *gormStore) GetShift(ctx context.Context, id string) (*model.ShiftInstance, error) {
	var sh model.ShiftInstance
	if err := s.db.WithContext(ctx).First(&sh, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *gormStore) CreateShift(ctx context.Context, sh *model.ShiftInstance) error {
	if sh.ID == "" {
		sh.ID = uuid.New().String()
	}
	if sh.Status == "" {
		sh.Status = model.StatusOf(sh.FilledCount, sh.Capacity)
	}
	return s.db.WithContext(ctx).Create(sh).Error
}

func (s *gormStore) ListOpenShifts(ctx context.Context, f ShiftFilter) ([]model.ShiftInstance, error) {
	q := s.db.WithContext(ctx).
		Where("status IN ?", []model.ShiftStatus{model.ShiftOpen, model.ShiftPartiallyFilled})
	if f.FacilityID != "" {
		q = q.Where("facility_id = ?", f.FacilityID)
	}
	if f.Specialty != "" {
		q = q.Where("specialty = ?", f.Specialty)
	}
	if f.From != nil {
		q = q.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date <= ?", *f.To)
	}

	var shifts []model.ShiftInstance
	if err := q.Order("date, start_time, slot_index").Find(&shifts).Error; err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *gormStore) CancelShift(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&model.ShiftInstance{}).
		Where("id = ?", id).
		UpdateColumn("status", model.ShiftCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *gormStore) ActiveAssignment(ctx context.Context, shiftID, workerID string) (*model.Assignment, error) {
	var a model.Assignment
	err := s.db.WithContext(ctx).
		Where("shift_instance_id = ? AND worker_id = ? AND status = ?", shiftID, workerID, model.AssignmentActive).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *gormStore) AssignmentsForShift(ctx context.Context, shiftID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := s.db.WithContext(ctx).
		Where("shift_instance_id = ?", shiftID).
		Order("assigned_at").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// WorkerActiveShifts returns the worker's active assignments whose shift dates
// fall within [from, to], paired with the shift rows. excludeShiftID keeps the
// candidate shift itself out of a conflict scan.
func (s *gormStore) WorkerActiveShifts(ctx context.Context, workerID string, from, to time.Time, excludeShiftID string) ([]WorkerShift, error) {
	q := s.db.WithContext(ctx).
		Where("worker_id = ? AND status = ?", workerID, model.AssignmentActive)
	if excludeShiftID != "" {
		q = q.Where("shift_instance_id <> ?", excludeShiftID)
	}

	var assignments []model.Assignment
	if err := q.Find(&assignments).Error; err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	shiftIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		shiftIDs = append(shiftIDs, a.ShiftInstanceID)
	}

	var shifts []model.ShiftInstance
	err := s.db.WithContext(ctx).
		Where("id IN ? AND date >= ? AND date <= ?", shiftIDs, from, to).
		Find(&shifts).Error
	if err != nil {
		return nil, err
	}

	shiftMap := make(map[string]model.ShiftInstance, len(shifts))
	for _, sh := range shifts {
		shiftMap[sh.ID] = sh
	}

	var result []WorkerShift
	for _, a := range assignments {
		if sh, ok := shiftMap[a.ShiftInstanceID]; ok {
			result = append(result, WorkerShift{Assignment: a, Shift: sh})
		}
	}
	return result, nil
}

// CommitAssignment atomically claims one seat on the shift and inserts the
// assignment row. The seat claim is a conditional update; zero affected rows
// means the shift was filled or cancelled between validation and commit, and
// the transaction is rolled back with gorm.ErrRecordNotFound for the caller
// to re-diagnose. Pair uniqueness is enforced here, not only by the caller's
// pre-validation: an active assignment for the same (shift, worker) already
// committed by a racing request rolls the transaction back with
// gorm.ErrDuplicatedKey. The guard callback runs inside the same transaction
// so a conflict re-check is authoritative for the commit.
func (s *gormStore) CommitAssignment(ctx context.Context, a *model.Assignment, guard func(tx *gorm.DB) error) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := guard(tx); err != nil {
				return err
			}
		}

		var active int64
		err := tx.Model(&model.Assignment{}).
			Where("shift_instance_id = ? AND worker_id = ? AND status = ?",
				a.ShiftInstanceID, a.WorkerID, model.AssignmentActive).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return gorm.ErrDuplicatedKey
		}

		res := tx.Model(&model.ShiftInstance{}).
			Where("id = ? AND filled_count < capacity AND status <> ?", a.ShiftInstanceID, model.ShiftCancelled).
			UpdateColumn("filled_count", gorm.Expr("filled_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := recomputeStatus(tx, a.ShiftInstanceID); err != nil {
			return err
		}

		return tx.Create(a).Error
	})
}

// ReleaseAssignment transitions the pair's active assignment to unassigned and
// reopens the seat. The assignment row is kept for audit. Returns
// gorm.ErrRecordNotFound when no active assignment exists for the pair.
func (s *gormStore) ReleaseAssignment(ctx context.Context, shiftID, workerID string) (*model.Assignment, error) {
	var released model.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("shift_instance_id = ? AND worker_id = ? AND status = ?", shiftID, workerID, model.AssignmentActive).
			First(&released).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		released.Status = model.AssignmentUnassigned
		released.UnassignedAt = &now
		if err := tx.Save(&released).Error; err != nil {
			return err
		}

		res := tx.Model(&model.ShiftInstance{}).
			Where("id = ? AND filled_count > 0", shiftID).
			UpdateColumn("filled_count", gorm.Expr("filled_count - 1"))
		if res.Error != nil {
			return res.Error
		}

		return recomputeStatus(tx, shiftID)
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// recomputeStatus rewrites a shift's derived status from its committed
// counter. Cancelled is terminal and never overwritten.
func recomputeStatus(tx *gorm.DB, shiftID string) error {
	var sh model.ShiftInstance
	if err := tx.First(&sh, "id = ?", shiftID).Error; err != nil {
		return err
	}
	if sh.Status == model.ShiftCancelled {
		return nil
	}
	next := model.StatusOf(sh.FilledCount, sh.Capacity)
	if next == sh.Status {
		return nil
	}
	return tx.Model(&model.ShiftInstance{}).
		Where("id = ?", shiftID).
		UpdateColumn("status", next).Error
}
