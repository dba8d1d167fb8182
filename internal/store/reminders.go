package store

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/pathakanu/memorymate/internal/model"
	"gorm.io/gorm"
)

// ReminderStore performs CRUD operations on the os_reminders table.
type ReminderStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewReminderStore creates a store bound to db.
func NewReminderStore(db *gorm.DB, logger *log.Logger) *ReminderStore {
	return &ReminderStore{db: db, logger: logger}
}

// List returns every reminder owned by userID. On failure the slice is empty
// and the error is returned alongside it.
func (s *ReminderStore) List(ctx context.Context, userID string) ([]model.Reminder, error) {
	reminders := []model.Reminder{}
	if userID == "" {
		return reminders, ErrMissingUser
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&reminders).Error; err != nil {
		s.logger.Printf("list reminders for %s: %v", userID, err)
		return []model.Reminder{}, remoteError("list reminders", err)
	}
	return reminders, nil
}

// Upcoming returns reminders of userID due at or after the given instant,
// earliest first.
func (s *ReminderStore) Upcoming(ctx context.Context, userID string, after time.Time) ([]model.Reminder, error) {
	reminders := []model.Reminder{}
	if userID == "" {
		return reminders, ErrMissingUser
	}
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND due_date IS NOT NULL AND due_date >= ?", userID, after.UTC()).
		Order("due_date ASC").
		Find(&reminders).Error; err != nil {
		s.logger.Printf("upcoming reminders for %s: %v", userID, err)
		return []model.Reminder{}, remoteError("upcoming reminders", err)
	}
	return reminders, nil
}

// Create inserts reminder for userID and returns the persisted row including
// its assigned id. Any id on the input is ignored.
func (s *ReminderStore) Create(ctx context.Context, reminder model.Reminder, userID string) (*model.Reminder, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	row := model.Reminder{
		UserID:      userID,
		Title:       strings.TrimSpace(reminder.Title),
		Description: reminder.Description,
		DueDate:     utc(reminder.DueDate),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Printf("create reminder for %s: %v", userID, err)
		return nil, remoteError("create reminder", err)
	}
	return &row, nil
}

// Update changes title, description and due date of the row matching both
// reminder.ID and userID.
func (s *ReminderStore) Update(ctx context.Context, reminder model.Reminder, userID string) error {
	if reminder.ID == "" {
		return ErrMissingID
	}
	if userID == "" {
		return ErrMissingUser
	}
	result := s.db.WithContext(ctx).
		Model(&model.Reminder{}).
		Where("id = ? AND user_id = ?", reminder.ID, userID).
		Updates(map[string]interface{}{
			"title":       strings.TrimSpace(reminder.Title),
			"description": reminder.Description,
			"due_date":    utc(reminder.DueDate),
		})
	if result.Error != nil {
		s.logger.Printf("update reminder %s: %v", reminder.ID, result.Error)
		return remoteError("update reminder", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row matching both id and userID.
func (s *ReminderStore) Delete(ctx context.Context, id, userID string) error {
	if id == "" {
		return ErrMissingID
	}
	if userID == "" {
		return ErrMissingUser
	}
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Reminder{})
	if result.Error != nil {
		s.logger.Printf("delete reminder %s: %v", id, result.Error)
		return remoteError("delete reminder", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
