package store

import (
	"context"
	"errors"
	"log"

	"github.com/pathakanu/memorymate/internal/model"
	"gorm.io/gorm"
)

// CredentialStore reads shared secrets from the credentials table.
type CredentialStore struct {
	db     *gorm.DB
	logger *log.Logger
}

// NewCredentialStore creates a credential store bound to db.
func NewCredentialStore(db *gorm.DB, logger *log.Logger) *CredentialStore {
	return &CredentialStore{db: db, logger: logger}
}

// Lookup returns the value stored under key or ErrNotFound.
func (s *CredentialStore) Lookup(ctx context.Context, key string) (string, error) {
	var credential model.Credential
	err := s.db.WithContext(ctx).Where(&model.Credential{Key: key}).Take(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		s.logger.Printf("lookup credential %s: %v", key, err)
		return "", remoteError("lookup credential", err)
	}
	return credential.Value, nil
}

// Put stores value under key, replacing any previous value.
func (s *CredentialStore) Put(ctx context.Context, key, value string) error {
	if err := s.db.WithContext(ctx).Save(&model.Credential{Key: key, Value: value}).Error; err != nil {
		s.logger.Printf("put credential %s: %v", key, err)
		return remoteError("put credential", err)
	}
	return nil
}
