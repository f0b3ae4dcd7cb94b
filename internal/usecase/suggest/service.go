// Package suggest converts free-text input into address candidates
// annotated with panorama availability, sorted so panorama-backed
// results surface first.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
)

// rankLimit caps how many raw predictions get the expensive per-candidate
// details + probe treatment.
const rankLimit = 5

// seedLocation is a well-known location with guaranteed panorama coverage.
type seedLocation struct {
	name string
	loc  domain.Coordinate
}

var seedLocations = []seedLocation{
	{"Pune, India", domain.Coordinate{Lat: 18.5204, Lng: 73.8567}},
	{"Eiffel Tower, Paris", domain.Coordinate{Lat: 48.8584, Lng: 2.2945}},
	{"Times Square, New York", domain.Coordinate{Lat: 40.7580, Lng: -73.9855}},
	{"Big Ben, London", domain.Coordinate{Lat: 51.5007, Lng: -0.1246}},
	{"Shibuya Crossing, Tokyo", domain.Coordinate{Lat: 35.6595, Lng: 139.7004}},
	{"Burj Khalifa, Dubai", domain.Coordinate{Lat: 25.1972, Lng: 55.2744}},
}

// Service is the autocomplete ranker.
type Service struct {
	places     Places
	prober     PanoramaProber
	dispatcher *dispatch.Service
	logger     *zap.Logger

	// generation guards against a stale keystroke batch overwriting a
	// newer one.
	generation atomic.Uint64
}

// New creates a ranker.
func New(places Places, prober PanoramaProber, dispatcher *dispatch.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{places: places, prober: prober, dispatcher: dispatcher, logger: logger}
}

// Seeds returns the default suggestion list: well-known locations with
// guaranteed coverage, shown on initial load and for empty input.
func (s *Service) Seeds() []domain.SearchCandidate {
	out := make([]domain.SearchCandidate, len(seedLocations))
	for i, seed := range seedLocations {
		loc := seed.loc
		out[i] = domain.SearchCandidate{
			// Synthetic id; SeedCoordinate recovers the location on selection.
			PlaceID:          fmt.Sprintf("%g,%g", loc.Lat, loc.Lng),
			Description:      seed.name,
			HasStreetView:    true,
			Score:            domain.ScorePanorama,
			ResolvedLocation: &loc,
		}
	}
	return out
}

// SeedCoordinate parses the synthetic "lat,lng" place id used by seed
// suggestions.
func SeedCoordinate(placeID string) (domain.Coordinate, bool) {
	latStr, lngStr, ok := strings.Cut(placeID, ",")
	if !ok {
		return domain.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil {
		return domain.Coordinate{}, false
	}
	c := domain.Coordinate{Lat: lat, Lng: lng}
	return c, c.Valid()
}

// Rank fetches predictions for input and annotates each with panorama
// availability. Empty or whitespace-only input yields an empty result
// immediately. Returns domain.ErrSuperseded when a newer call started
// while this one was in flight; the stale batch must be discarded.
func (s *Service) Rank(ctx context.Context, input string) ([]domain.SearchCandidate, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	gen := s.generation.Add(1)

	// One session token per keystroke burst, shared with the details
	// lookups so the provider bills the session as a unit.
	token := uuid.NewString()

	predictions, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) ([]domain.SearchCandidate, error) {
		return s.places.Autocomplete(ctx, input, token)
	})
	if err != nil {
		return nil, err
	}
	if len(predictions) > rankLimit {
		predictions = predictions[:rankLimit]
	}

	candidates := make([]domain.SearchCandidate, len(predictions))
	g, gctx := errgroup.WithContext(ctx)
	for i, pred := range predictions {
		g.Go(func() error {
			candidates[i] = s.annotate(gctx, pred, token)
			return nil
		})
	}
	_ = g.Wait()

	if s.generation.Load() != gen {
		return nil, domain.ErrSuperseded
	}

	// Stable: equal scores keep provider order.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	return candidates, nil
}

// annotate resolves details and probes panorama availability for one
// prediction. Failures degrade the candidate's score, never the batch.
func (s *Service) annotate(
	ctx context.Context, pred domain.SearchCandidate, token string,
) domain.SearchCandidate {
	out := pred
	out.Score = domain.ScoreUnresolved

	details, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (*domain.PlaceDetails, error) {
		return s.places.PlaceDetails(ctx, pred.PlaceID, token)
	})
	if err != nil || details == nil {
		if err != nil && !errors.Is(err, domain.ErrDeferred) {
			s.logger.Debug("candidate details lookup failed",
				zap.String("place_id", pred.PlaceID), zap.Error(err))
		}
		return out
	}
	out.Details = details
	if details.Location == nil {
		return out
	}

	out.Score = domain.ScoreDetailsOnly
	hasPano, resolved, err := s.prober.Probe(ctx, *details.Location)
	if err != nil {
		// Probe failure means no confirmed coverage, not a dead candidate.
		return out
	}
	if hasPano {
		out.HasStreetView = true
		out.Score = domain.ScorePanorama
		out.ResolvedLocation = resolved
	}
	return out
}
