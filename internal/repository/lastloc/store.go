package lastloc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/panoview/internal/db"
	"github.com/kailas-cloud/panoview/internal/domain"
)

// store is the consumer interface for persistence operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store persists the single last-known-location slot. The slot is
// overwritten on every successful panorama resolution, never appended.
type Store struct {
	store store
	key   string
}

// New creates a last-location store. keyPrefix follows the configured
// storage prefix, e.g. "panoview:".
func New(s store, keyPrefix string) *Store {
	return &Store{store: s, key: keyPrefix + "lastloc"}
}

// Load returns the persisted coordinate, or nil if none was ever saved.
func (s *Store) Load(ctx context.Context) (*domain.Coordinate, error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lastloc GET: %w", err)
	}

	var c domain.Coordinate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("lastloc decode: %w", err)
	}
	if !c.Valid() {
		return nil, fmt.Errorf("lastloc decode: coordinate out of range: %s", c)
	}
	return &c, nil
}

// Save overwrites the slot with the given coordinate.
func (s *Store) Save(ctx context.Context, c domain.Coordinate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("lastloc encode: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("lastloc SET: %w", err)
	}
	return nil
}
