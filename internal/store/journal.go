package store

import (
	"context"
	"log"
	"time"

	"github.com/pathakanu/memorymate/internal/model"
	"gorm.io/gorm"
)

// JournalStore manages the entries table.
type JournalStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewJournalStore creates a journal store bound to db.
func NewJournalStore(db *gorm.DB, logger *log.Logger) *JournalStore {
	return &JournalStore{db: db, logger: logger}
}

// List returns the journal entries of userID, newest first.
func (s *JournalStore) List(ctx context.Context, userID string) ([]model.JournalEntry, error) {
	entries := []model.JournalEntry{}
	if userID == "" {
		return entries, ErrMissingUser
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		s.logger.Printf("list journal entries for %s: %v", userID, err)
		return []model.JournalEntry{}, remoteError("list journal entries", err)
	}
	return entries, nil
}

// Create inserts entry for userID. The id and creation time are assigned here.
func (s *JournalStore) Create(ctx context.Context, entry model.JournalEntry, userID string) (*model.JournalEntry, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	row := model.JournalEntry{
		UserID:  userID,
		Title:   entry.Title,
		Content: entry.Content,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Printf("create journal entry for %s: %v", userID, err)
		return nil, remoteError("create journal entry", err)
	}
	return &row, nil
}

// Update rewrites title and content and stamps updated_at.
func (s *JournalStore) Update(ctx context.Context, entry model.JournalEntry, userID string) error {
	if entry.ID == "" {
		return ErrMissingID
	}
	if userID == "" {
		return ErrMissingUser
	}
	result := s.db.WithContext(ctx).
		Model(&model.JournalEntry{}).
		Where("id = ? AND user_id = ?", entry.ID, userID).
		Updates(map[string]interface{}{
			"title":      entry.Title,
			"content":    entry.Content,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		s.logger.Printf("update journal entry %s: %v", entry.ID, result.Error)
		return remoteError("update journal entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the entry owned by userID. It returns ErrNotFound when no row matched.
func (s *JournalStore) Delete(ctx context.Context, id, userID string) error {
	if id == "" {
		return ErrMissingID
	}
	if userID == "" {
		return ErrMissingUser
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.JournalEntry{})
	if result.Error != nil {
		s.logger.Printf("delete journal entry %s: %v", id, result.Error)
		return remoteError("delete journal entry", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
