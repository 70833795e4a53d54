// Package directory provides the gorm-backed implementations of the worker
// and facility lookups the scheduling core consumes. In a larger deployment
// these would proxy an external identity system; the interfaces the core
// depends on are declared on the consumer side in the scheduler package.
package directory

import (
	"context"

	"gorm.io/gorm"

	"staffing-backend/internal/model"
)

// GormWorkerDirectory resolves workers from the shared database.
type GormWorkerDirectory struct {
	db *gorm.DB
}

// NewWorkerDirectory creates a worker directory.
func NewWorkerDirectory(db *gorm.DB) *GormWorkerDirectory {
	return &GormWorkerDirectory{db: db}
}

// GetWorker returns the worker record, or gorm.ErrRecordNotFound.
func (d *GormWorkerDirectory) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	var w model.Worker
	if err := d.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GormFacilityDirectory resolves facilities from the shared database.
type GormFacilityDirectory struct {
	db *gorm.DB
}

// NewFacilityDirectory creates a facility directory.
func NewFacilityDirectory(db *gorm.DB) *GormFacilityDirectory {
	return &GormFacilityDirectory{db: db}
}

// FacilityExists reports whether an active facility with the id exists.
func (d *GormFacilityDirectory) FacilityExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.Facility{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
