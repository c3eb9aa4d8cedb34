package models

import (
	"time"

	"gorm.io/gorm"
)

// EventStatus is the moderation state of a community event.
type EventStatus string

const (
	EventStatusPending  EventStatus = "PENDING"
	EventStatusApproved EventStatus = "APPROVED"
)

// Event represents a community event submitted for listing.
type Event struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Category    string         `json:"category"`
	Location    string         `json:"location"`
	StartDate   time.Time      `gorm:"not null;index" json:"start_date"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	Status      EventStatus    `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
