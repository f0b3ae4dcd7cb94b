// Package viewer orchestrates the street-level viewing session: it ties
// the panorama locator, the fallback place finder, the autocomplete
// ranker and the rotation controller to a single current view and
// exposes that view's state.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
	"github.com/kailas-cloud/panoview/internal/usecase/rotate"
	"github.com/kailas-cloud/panoview/internal/usecase/suggest"
)

// Mount retry schedule. The panorama surface occasionally fails its
// first mount right after a location change; a short fixed backoff
// recovers that case.
const (
	mountAttempts = 3
	mountBackoff  = 2 * time.Second
)

// User-facing messages for the three terminal failure modes.
const (
	msgNothingFound    = "No street view or nearby places found in this area"
	msgMountFailed     = "Failed to load Street View. Please try again in a moment."
	msgAddressNotFound = "Address not found"
	msgUnknownLocation = "Unknown location"
)

// State is a point-in-time snapshot of the viewing session.
type State struct {
	Address      string                   `json:"address"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
	Loading      bool                     `json:"loading"`
	Initializing bool                     `json:"initializing"`
	RateLimited  bool                     `json:"rateLimited"`
	Rotating     bool                     `json:"rotating"`
	ShowNearby   bool                     `json:"showNearby"`
	Location     domain.Coordinate        `json:"location"`
	Pov          *domain.Pov              `json:"pov,omitempty"`
	NearbyPlaces []domain.NearbyPlace     `json:"nearbyPlaces,omitempty"`
	Suggestions  []domain.SearchCandidate `json:"suggestions,omitempty"`
}

// session is one mounted panorama plus its rotation controller. Replaced
// wholesale on every successful Open.
type session struct {
	view    View
	rotator *rotate.Controller
}

func (s *session) close() {
	s.rotator.Close()
	s.view.Close()
}

// Service is the viewing-session orchestrator.
type Service struct {
	locator    Locator
	nearby     NearbyFinder
	geocoder   Geocoder
	opener     PanoramaOpener
	suggester  Suggester
	lastloc    LastLocation
	dispatcher *dispatch.Service
	rotateCfg  rotate.Config
	logger     *zap.Logger

	// mu guards only the fields below; long provider calls never hold
	// it, so Snapshot stays responsive during an in-flight Open.
	mu           sync.Mutex
	session      *session
	address      string
	errorMessage string
	loading      bool
	initializing bool
	showNearby   bool
	location     domain.Coordinate
	nearbyPlaces []domain.NearbyPlace
	suggestions  []domain.SearchCandidate
}

// New creates the orchestrator. The session starts empty and in the
// initializing state until the first Open completes.
func New(
	locator Locator,
	nearby NearbyFinder,
	geocoder Geocoder,
	opener PanoramaOpener,
	suggester Suggester,
	lastloc LastLocation,
	dispatcher *dispatch.Service,
	rotateCfg rotate.Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		locator:      locator,
		nearby:       nearby,
		geocoder:     geocoder,
		opener:       opener,
		suggester:    suggester,
		lastloc:      lastloc,
		dispatcher:   dispatcher,
		rotateCfg:    rotateCfg,
		logger:       logger,
		initializing: true,
	}
}

// Open resolves pos to a viewing session: the nearest panorama when one
// exists within the search ladder, otherwise the ranked nearby places
// fallback. The previous session, if any, is torn down only after the
// new resolution succeeds in producing a state.
func (s *Service) Open(ctx context.Context, pos domain.Coordinate) error {
	if !pos.Valid() {
		return fmt.Errorf("open view: coordinate out of range: %s", pos)
	}

	s.setLoading(true)

	match, err := s.locator.Locate(ctx, pos)
	if err != nil {
		s.failLoading(msgMountFailed)
		return fmt.Errorf("open view: %w", err)
	}

	if match == nil {
		return s.openFallback(ctx, pos)
	}
	return s.openPanorama(ctx, match)
}

// openFallback serves the no-panorama outcome: nearby places when any
// exist, a terminal message otherwise.
func (s *Service) openFallback(ctx context.Context, pos domain.Coordinate) error {
	places, err := s.nearby.FindNearby(ctx, pos)
	if err != nil {
		s.logger.Warn("nearby fallback failed", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.close()
		s.session = nil
	}
	s.location = pos
	s.address = ""
	s.loading = false
	s.initializing = false
	s.nearbyPlaces = places
	s.showNearby = len(places) > 0
	if len(places) == 0 {
		s.errorMessage = msgNothingFound
	}
	return nil
}

// openPanorama mounts the matched panorama, wires rotation, resolves the
// display address and persists the location.
func (s *Service) openPanorama(ctx context.Context, match *domain.PanoramaMatch) error {
	view, err := s.mount(ctx, match.Location)
	if err != nil {
		s.failLoading(msgMountFailed)
		return fmt.Errorf("open view: %w", err)
	}

	address, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (string, error) {
		addr, _, err := s.geocoder.ReverseGeocode(ctx, match.Location)
		return addr, err
	})
	if err != nil || address == "" {
		if err != nil && !errors.Is(err, domain.ErrDeferred) {
			s.logger.Warn("reverse geocode failed", zap.Error(err))
		}
		address = msgUnknownLocation
	}

	rotator := rotate.New(view, s.rotateCfg, s.logger)
	view.OnPovChanged(rotator.OnPovChanged)
	rotator.OnReady()

	s.mu.Lock()
	if s.session != nil {
		s.session.close()
	}
	s.session = &session{view: view, rotator: rotator}
	s.location = view.Location()
	s.address = address
	s.errorMessage = ""
	s.loading = false
	s.initializing = false
	s.showNearby = false
	s.nearbyPlaces = nil
	s.mu.Unlock()

	if err := s.lastloc.Save(ctx, view.Location()); err != nil {
		// Persistence is best effort; the session is already live.
		s.logger.Warn("saving last location failed", zap.Error(err))
	}
	return nil
}

// mount opens the panorama surface with a fixed retry schedule.
func (s *Service) mount(ctx context.Context, loc domain.Coordinate) (View, error) {
	var lastErr error
	for attempt := 1; attempt <= mountAttempts; attempt++ {
		view, err := s.opener.Open(ctx, loc)
		if err == nil {
			return view, nil
		}
		lastErr = err
		s.logger.Warn("panorama mount failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt == mountAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(mountBackoff):
		}
	}
	return nil, lastErr
}

// Search geocodes a free-text address and opens the view there.
func (s *Service) Search(ctx context.Context, address string) error {
	s.setLoading(true)
	loc, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (domain.Coordinate, error) {
		c, _, err := s.geocoder.Geocode(ctx, address)
		return c, err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			s.failLoading(msgAddressNotFound)
		} else {
			s.failLoading("")
		}
		return fmt.Errorf("search %q: %w", address, err)
	}
	return s.Open(ctx, loc)
}

// Select opens the view at a chosen suggestion. Location precedence:
// seed coordinate encoded in the place id, then the probe-resolved
// panorama coordinate, then the details geometry, then a place-id
// geocode as the last resort.
func (s *Service) Select(ctx context.Context, candidate domain.SearchCandidate) error {
	s.clearSuggestions()

	if loc, ok := suggest.SeedCoordinate(candidate.PlaceID); ok {
		return s.Open(ctx, loc)
	}
	if candidate.ResolvedLocation != nil {
		return s.Open(ctx, *candidate.ResolvedLocation)
	}
	if candidate.Details != nil && candidate.Details.Location != nil {
		return s.Open(ctx, *candidate.Details.Location)
	}

	s.setLoading(true)
	loc, err := dispatch.Call(ctx, s.dispatcher, func(ctx context.Context) (domain.Coordinate, error) {
		c, _, err := s.geocoder.GeocodePlaceID(ctx, candidate.PlaceID)
		return c, err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			s.failLoading(msgAddressNotFound)
		} else {
			s.failLoading("")
		}
		return fmt.Errorf("select place %q: %w", candidate.PlaceID, err)
	}
	return s.Open(ctx, loc)
}

// Suggest refreshes the suggestion list for input. Blank input restores
// the seed list; a superseded batch leaves the current list untouched.
func (s *Service) Suggest(ctx context.Context, input string) ([]domain.SearchCandidate, error) {
	candidates, err := s.suggester.Rank(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrSuperseded) {
			return nil, err
		}
		return nil, fmt.Errorf("suggest: %w", err)
	}
	if candidates == nil {
		candidates = s.suggester.Seeds()
	}

	s.mu.Lock()
	s.suggestions = candidates
	s.mu.Unlock()
	return candidates, nil
}

// Interact registers user interaction with the view: rotation pauses and
// the resume timer re-arms.
func (s *Service) Interact() {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess != nil {
		sess.rotator.OnUserMovement()
	}
}

// SetPov writes a user-driven point of view to the current panorama. The
// rotation controller observes the write and pauses.
func (s *Service) SetPov(pov domain.Pov) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return domain.ErrPanoramaUnavailable
	}
	sess.view.SetPov(pov)
	return nil
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Address:      s.address,
		ErrorMessage: s.errorMessage,
		Loading:      s.loading,
		Initializing: s.initializing,
		RateLimited:  s.dispatcher.Limited(),
		ShowNearby:   s.showNearby,
		Location:     s.location,
		NearbyPlaces: s.nearbyPlaces,
		Suggestions:  s.suggestions,
	}
	if s.session != nil {
		pov := s.session.view.Pov()
		st.Pov = &pov
		st.Rotating = s.session.rotator.Rotating()
	}
	return st
}

// Shutdown tears down the current session. Idempotent.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.close()
		s.session = nil
	}
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.errorMessage = ""
	s.mu.Unlock()
}

func (s *Service) failLoading(msg string) {
	s.mu.Lock()
	s.loading = false
	s.initializing = false
	s.errorMessage = msg
	s.mu.Unlock()
}

func (s *Service) clearSuggestions() {
	s.mu.Lock()
	s.suggestions = nil
	s.mu.Unlock()
}
