package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Car event types.
const (
	CarEventCreated = "CREATED"
	CarEventUpdated = "UPDATED"
	CarEventDeleted = "DELETED"
)

// CarEvent is an append-only audit entry for admin writes to a listing.
type CarEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"eventId"`
	ListingID int64          `gorm:"column:listing_id;index;not null" json:"listingId"`
	EventType string         `gorm:"column:event_type;type:varchar(20);not null" json:"eventType"`
	Actor     *string        `gorm:"column:actor" json:"actor"`
	EventData datatypes.JSON `gorm:"column:event_data" json:"eventData"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"createdAt"`
}

func (CarEvent) TableName() string {
	return "car_events"
}

// BeforeCreate sets event_id if not already set (DBs without default uuid).
func (e *CarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
