// Package bootstrap resolves the startup coordinate: device position
// first, then the persisted last-known location, then a fixed default.
package bootstrap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// Source identifies where the startup coordinate came from.
type Source string

const (
	// SourceDevice means a fresh geolocation fix.
	SourceDevice Source = "device"
	// SourceStored means the persisted last-known location.
	SourceStored Source = "stored"
	// SourceDefault means the configured fallback.
	SourceDefault Source = "default"
)

// positionTimeout bounds the device lookup; no cached fix is accepted,
// so a slow lookup falls through rather than blocking startup.
const positionTimeout = 5 * time.Second

// Service resolves the initial coordinate.
type Service struct {
	geo      Geolocator
	stored   LastLocation
	fallback domain.Coordinate
	logger   *zap.Logger
}

// New creates a bootstrap service. fallback must be a valid coordinate.
func New(geo Geolocator, stored LastLocation, fallback domain.Coordinate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{geo: geo, stored: stored, fallback: fallback, logger: logger}
}

// Resolve returns the startup coordinate and its source. It never fails:
// every lookup error falls through to the next source.
func (s *Service) Resolve(ctx context.Context) (domain.Coordinate, Source) {
	posCtx, cancel := context.WithTimeout(ctx, positionTimeout)
	defer cancel()

	if pos, err := s.geo.CurrentPosition(posCtx); err == nil {
		return pos, SourceDevice
	} else {
		s.logger.Warn("device position unavailable", zap.Error(err))
	}

	if stored, err := s.stored.Load(ctx); err == nil && stored != nil {
		return *stored, SourceStored
	} else if err != nil {
		s.logger.Warn("stored location unavailable", zap.Error(err))
	}

	return s.fallback, SourceDefault
}
