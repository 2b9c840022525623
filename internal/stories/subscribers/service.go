package subscribers

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Service provides business logic for subscriber records
type Service struct {
	storage Storage
}

// NewService creates a new subscriber service
func NewService(storage Storage) *Service {
	return &Service{
		storage: storage,
	}
}

// Touch registers first contact. Existing records are left as they are.
func (s *Service) Touch(ctx context.Context, id int64, handle string) error {
	err := s.storage.UpsertIdentity(ctx, Identity{
		ID:     id,
		Handle: optional(handle),
	})
	if err != nil {
		return errors.Wrapf(err, "touch subscriber %d", id)
	}
	return nil
}

// SaveName fills in the display name unless one is already stored.
func (s *Service) SaveName(ctx context.Context, id int64, handle, displayName string) error {
	err := s.storage.UpsertIdentity(ctx, Identity{
		ID:          id,
		Handle:      optional(handle),
		DisplayName: optional(displayName),
	})
	if err != nil {
		return errors.Wrapf(err, "save name for subscriber %d", id)
	}
	return nil
}

func (s *Service) SavePhone(ctx context.Context, id int64, phone string) error {
	if err := s.storage.SetPhone(ctx, id, phone); err != nil {
		return errors.Wrapf(err, "save phone for subscriber %d", id)
	}
	return nil
}

// ListAll returns every subscriber for the admin export.
func (s *Service) ListAll(ctx context.Context) ([]*Subscriber, error) {
	return s.storage.ListSubscribers(ctx, ListCriteria{})
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
