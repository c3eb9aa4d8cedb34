package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPending  PostStatus = "PENDING"
	PostStatusApproved PostStatus = "APPROVED"
	PostStatusRejected PostStatus = "REJECTED"
)

// Post represents a piece of user-generated content awaiting or past moderation.
// AuthorName and AuthorAvatar are denormalized at creation time so the rendered
// post stays stable even if the user record changes later.
type Post struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          *uint           `gorm:"index" json:"user_id,omitempty"`
	User            *User           `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	AuthorName      string          `json:"author_name"`
	AuthorAvatar    string          `json:"author_avatar"`
	Content         string          `gorm:"type:text;not null" json:"content"`
	Category        string          `gorm:"not null;index" json:"category"`
	Location        string          `json:"location"`
	EventDate       *time.Time      `json:"event_date,omitempty"`
	PollQuestion    string          `json:"poll_question,omitempty"`
	PollOptions     json.RawMessage `gorm:"type:jsonb" json:"poll_options,omitempty"`
	Alert           bool            `gorm:"default:false" json:"alert"`
	Likes           int             `gorm:"default:0" json:"likes"`
	Shares          int             `gorm:"default:0" json:"shares"`
	Status          PostStatus      `gorm:"type:varchar(16);default:'PENDING';index" json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	Media           []PostMedia     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"media"`
	Reports         []PostReport    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"reports,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// PostMedia is one uploaded file attached to a post.
type PostMedia struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"not null;index" json:"post_id"`
	URL         string    `gorm:"not null" json:"url"`
	StoragePath string    `gorm:"not null" json:"-"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// PostReport is one abuse report filed against a post.
type PostReport struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
