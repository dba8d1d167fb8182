package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pathakanu/memorymate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileStore manages the profiles table, keyed by user id.
type ProfileStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewProfileStore creates a profile store bound to db.
func NewProfileStore(db *gorm.DB, logger *log.Logger) *ProfileStore {
	return &ProfileStore{db: db, logger: logger}
}

// Get returns the profile of userID or ErrNotFound.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	var profile model.Profile
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Printf("get profile %s: %v", userID, err)
		return nil, remoteError("get profile", err)
	}
	return &profile, nil
}

// Upsert inserts the profile or replaces username and full name of an existing one.
func (s *ProfileStore) Upsert(ctx context.Context, profile model.Profile) error {
	if profile.ID == "" {
		return ErrMissingUser
	}
	now := time.Now().UTC()
	profile.UpdatedAt = &now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		s.logger.Printf("upsert profile %s: %v", profile.ID, err)
		return remoteError("upsert profile", err)
	}
	return nil
}

// Update changes the display names of an existing profile.
func (s *ProfileStore) Update(ctx context.Context, userID, username, fullName string) error {
	if userID == "" {
		return ErrMissingUser
	}
	result := s.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"username":   username,
			"full_name":  fullName,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		s.logger.Printf("update profile %s: %v", userID, result.Error)
		return remoteError("update profile", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
