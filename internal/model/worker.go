package model

import "time"

// Worker is the directory record consulted for specialty validation.
// Worker CRUD itself is owned by an external system.
type Worker struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:256" json:"name"`
	Specialty string    `gorm:"size:64;not null" json:"specialty"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
