// Package nearby ranks points of interest around a coordinate when no
// panorama exists there. Three stages, each tried only if the previous
// one came back empty: distance-ranked landmarks, radius-bounded general
// attractions, then a static per-city landmark table.
package nearby

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/domain/geo"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
)

const (
	backupRadiusMeters = 5000
	enrichLimit        = 3
)

// Service is the fallback place finder.
type Service struct {
	places     Places
	landmarks  LandmarkTable
	dispatcher *dispatch.Service
	logger     *zap.Logger
}

// New creates a fallback finder.
func New(places Places, landmarks LandmarkTable, dispatcher *dispatch.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{places: places, landmarks: landmarks, dispatcher: dispatcher, logger: logger}
}

// FindNearby returns ranked points of interest around origin. Stage
// failures degrade to an empty stage result; an empty final list is a
// valid outcome the caller turns into a user-visible message.
func (s *Service) FindNearby(ctx context.Context, origin domain.Coordinate) ([]domain.NearbyPlace, error) {
	// Stage 1: landmarks ranked by distance. Radius must be omitted when
	// ranking by distance.
	results := s.search(ctx, domain.NearbyQuery{
		Location:       origin,
		Type:           "tourist_attraction",
		RankByDistance: true,
	})

	// Stage 2: general points of interest, only when stage 1 was empty.
	if len(results) == 0 {
		results = s.search(ctx, domain.NearbyQuery{
			Location:     origin,
			Type:         "point_of_interest",
			Keyword:      "attraction",
			RadiusMeters: backupRadiusMeters,
		})
	}

	// Stage 3: static city landmarks, only when both live stages were empty.
	if len(results) == 0 {
		return s.seeded(ctx, origin), nil
	}

	return s.enrich(ctx, origin, results), nil
}

// search runs one nearby-search stage through the dispatcher. Any
// failure (including a deferred dispatch) yields an empty stage.
func (s *Service) search(ctx context.Context, q domain.NearbyQuery) []domain.PlaceDetails {
	results, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) ([]domain.PlaceDetails, error) {
		return s.places.NearbySearch(ctx, q)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDeferred) {
			s.logger.Warn("nearby search stage failed",
				zap.String("type", q.Type), zap.Error(err))
		}
		return nil
	}
	return results
}

// seeded resolves origin to a locality and serves the curated landmark
// list for known cities, guaranteeing a non-empty fallback there.
func (s *Service) seeded(ctx context.Context, origin domain.Coordinate) []domain.NearbyPlace {
	locality, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (string, error) {
		_, loc, err := s.places.ReverseGeocode(ctx, origin)
		return loc, err
	})
	if err != nil || locality == "" {
		if err != nil && !errors.Is(err, domain.ErrDeferred) {
			s.logger.Warn("reverse geocode for seeded landmarks failed", zap.Error(err))
		}
		return nil
	}
	return s.landmarks(locality)
}

// enrich fetches details for the top raw results concurrently and
// computes each distance from origin. A failed item is dropped; partial
// enrichment failure never fails the batch.
func (s *Service) enrich(
	ctx context.Context, origin domain.Coordinate, results []domain.PlaceDetails,
) []domain.NearbyPlace {
	top := results[:min(enrichLimit, len(results))]
	enriched := make([]*domain.NearbyPlace, len(top))

	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range top {
		g.Go(func() error {
			details, err := dispatch.Call(gctx, s.dispatcher, func(ctx context.Context) (*domain.PlaceDetails, error) {
				return s.places.PlaceDetails(ctx, raw.PlaceID, "")
			})
			if err != nil || details == nil || details.Location == nil {
				if err != nil && !errors.Is(err, domain.ErrDeferred) {
					s.logger.Debug("place enrichment failed",
						zap.String("place_id", raw.PlaceID), zap.Error(err))
				}
				return nil
			}

			meters := geo.Haversine(origin.Lat, origin.Lng, details.Location.Lat, details.Location.Lng)
			name := details.Name
			if name == "" {
				name = "Unknown Place"
			}
			enriched[i] = &domain.NearbyPlace{
				Name:           name,
				Description:    details.FormattedAddress,
				Location:       *details.Location,
				DistanceMeters: meters,
				Distance:       geo.FormatKm(meters),
				Rating:         details.Rating,
				RatingCount:    details.RatingCount,
				OpenNow:        details.OpenNow,
				Photos:         details.Photos,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.NearbyPlace, 0, len(enriched))
	for _, p := range enriched {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
