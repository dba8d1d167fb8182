package reminder

import (
	"sync"
	"time"

	"github.com/pathakanu/memorymate/internal/model"
)

// ViewModel holds the reminder list shown to the user. Concurrent refreshes
// are not merged; the last Replace wins.
type ViewModel struct {
	mu            sync.RWMutex
	reminders     []model.Reminder
	lastRefreshed time.Time
}

// NewViewModel returns an empty view model.
func NewViewModel() *ViewModel {
	return &ViewModel{reminders: []model.Reminder{}}
}

// Replace swaps the whole collection.
func (v *ViewModel) Replace(reminders []model.Reminder) {
	next := make([]model.Reminder, len(reminders))
	copy(next, reminders)

	v.mu.Lock()
	v.reminders = next
	v.mu.Unlock()
}

// Reminders returns a copy of the current collection.
func (v *ViewModel) Reminders() []model.Reminder {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.Reminder, len(v.reminders))
	copy(out, v.reminders)
	return out
}

// MarkRefreshed records the completion time of a refresh cycle.
func (v *ViewModel) MarkRefreshed(at time.Time) {
	v.mu.Lock()
	v.lastRefreshed = at
	v.mu.Unlock()
}

// LastRefreshed returns the completion time of the latest refresh, zero if none ran.
func (v *ViewModel) LastRefreshed() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastRefreshed
}
