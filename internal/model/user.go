package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account of the authentication subsystem.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Profile holds the display name of a user. ID equals the user id.
type Profile struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Credential is a key/value secret shared by all clients, e.g. OPENAI_API_KEY.
type Credential struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"type:text;not null"`
}

func (Credential) TableName() string {
	return "credentials"
}

// All lists every model managed by migrations.
func All() []interface{} {
	return []interface{}{&User{}, &Profile{}, &Credential{}, &Reminder{}, &JournalEntry{}}
}
