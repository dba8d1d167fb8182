package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JournalEntry is a free-form journal note.
type JournalEntry struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id,omitempty"`
	UserID    string     `gorm:"index;not null" json:"user_id,omitempty"`
	Title     string     `gorm:"type:text" json:"title"`
	Content   string     `gorm:"type:text" json:"content"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (JournalEntry) TableName() string {
	return "entries"
}

func (e *JournalEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
