package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Facility staff subscribe to the facilities they coordinate; scheduling
// events for those facilities fan out to the subscribed endpoints.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Facilities []*Facility `gorm:"many2many:subscription_facility_mapping;"`
}
