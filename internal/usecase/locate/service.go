// Package locate finds the nearest panorama to a coordinate with an
// expanding-radius search.
package locate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
)

// radiusLadder is the ascending search sequence. Small radii first so a
// close panorama is never shadowed by a distant one; the 10 km cap
// bounds the worst case at eight provider calls.
var radiusLadder = []int{50, 100, 250, 500, 1000, 2000, 5000, 10000}

// probeRadiusMeters is the single fixed radius used by the autocomplete
// existence probe.
const probeRadiusMeters = 500

// Service is the panorama locator.
type Service struct {
	index      PanoramaIndex
	dispatcher *dispatch.Service
	logger     *zap.Logger
}

// New creates a locator.
func New(index PanoramaIndex, dispatcher *dispatch.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, dispatcher: dispatcher, logger: logger}
}

// Locate walks the radius ladder in ascending order and returns the
// first panorama found together with the winning radius. Per-radius
// failures advance the ladder; an exhausted ladder returns (nil, nil) —
// a valid negative result that drives the fallback place search, not an
// error. A deferred dispatch aborts the search: the queued replay will
// run later and the caller's rate-limit flag explains the empty result.
func (s *Service) Locate(ctx context.Context, origin domain.Coordinate) (*domain.PanoramaMatch, error) {
	for _, radius := range radiusLadder {
		r := radius
		loc, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (*domain.Coordinate, error) {
			return s.index.PanoramaMetadata(ctx, origin, r, domain.SourceOutdoor)
		})
		if errors.Is(err, domain.ErrDeferred) {
			return nil, nil
		}
		if err != nil {
			s.logger.Debug("panorama query failed, widening search",
				zap.Int("radius_m", r), zap.Error(err))
			continue
		}
		if loc != nil {
			return &domain.PanoramaMatch{Location: *loc, RadiusMeters: r}, nil
		}
	}
	return nil, nil
}

// Probe checks panorama availability at a single fixed radius. It is the
// cheap existence check used per autocomplete candidate, not a full
// expanding search. The resolved panorama coordinate is returned so the
// caller can jump straight to it.
func (s *Service) Probe(ctx context.Context, at domain.Coordinate) (bool, *domain.Coordinate, error) {
	loc, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (*domain.Coordinate, error) {
		return s.index.PanoramaMetadata(ctx, at, probeRadiusMeters, domain.SourceDefault)
	})
	if err != nil {
		return false, nil, err
	}
	return loc != nil, loc, nil
}
