package reminder

import (
	"context"

	"github.com/pathakanu/memorymate/internal/model"
)

// Lister is the read side of the reminder store used by sync strategies.
type Lister interface {
	List(ctx context.Context, userID string) ([]model.Reminder, error)
}

// Strategy reconciles the view model with the authoritative store.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, userID string, view *ViewModel) error
}

// FullReplaceSync re-reads every reminder of the user and replaces the
// view model with the result. A failed read leaves an empty list behind.
type FullReplaceSync struct {
	store Lister
}

// NewFullReplaceSync returns the full replace strategy over store.
func NewFullReplaceSync(store Lister) *FullReplaceSync {
	return &FullReplaceSync{store: store}
}

func (s *FullReplaceSync) Name() string {
	return "full-replace"
}

func (s *FullReplaceSync) Apply(ctx context.Context, userID string, view *ViewModel) error {
	reminders, err := s.store.List(ctx, userID)
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	view.Replace(reminders)
	return err
}
