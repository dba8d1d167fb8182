package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reminder is a reminder row owned by one user. ID is empty until the row
// store has persisted it.
type Reminder struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id,omitempty"`
	UserID      string     `gorm:"index;not null" json:"user_id,omitempty"`
	Title       string     `gorm:"type:text" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the table name shared with the mobile clients.
func (Reminder) TableName() string {
	return "os_reminders"
}

// BeforeCreate assigns an opaque identifier.
func (r *Reminder) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
