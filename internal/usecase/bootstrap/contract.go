package bootstrap

import (
	"context"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// Geolocator performs a single fresh device-position lookup.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (domain.Coordinate, error)
}

// LastLocation reads the persisted last-known coordinate; nil when no
// location was ever saved.
type LastLocation interface {
	Load(ctx context.Context) (*domain.Coordinate, error)
}
