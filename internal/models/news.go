package models

import "time"

// News is a curated news item with an optional uploaded cover image.
type News struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ImageURL  string    `json:"image_url"`
	Title     string    `gorm:"not null" json:"title"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
