package viewer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
	"github.com/kailas-cloud/panoview/internal/usecase/rotate"
)

// --- Mocks ---

type mockLocator struct {
	match *domain.PanoramaMatch
	err   error
}

func (m *mockLocator) Locate(_ context.Context, _ domain.Coordinate) (*domain.PanoramaMatch, error) {
	return m.match, m.err
}

type mockNearby struct {
	places []domain.NearbyPlace
	err    error
	calls  int
}

func (m *mockNearby) FindNearby(_ context.Context, _ domain.Coordinate) ([]domain.NearbyPlace, error) {
	m.calls++
	return m.places, m.err
}

type mockGeocoder struct {
	geocodeLoc  domain.Coordinate
	geocodeErr  error
	placeIDLoc  domain.Coordinate
	placeIDErr  error
	placeIDArgs []string
	address     string
	reverseErr  error
}

func (m *mockGeocoder) Geocode(_ context.Context, _ string) (domain.Coordinate, string, error) {
	return m.geocodeLoc, "formatted", m.geocodeErr
}

func (m *mockGeocoder) GeocodePlaceID(_ context.Context, placeID string) (domain.Coordinate, string, error) {
	m.placeIDArgs = append(m.placeIDArgs, placeID)
	return m.placeIDLoc, "formatted", m.placeIDErr
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _ domain.Coordinate) (string, string, error) {
	return m.address, "Pune", m.reverseErr
}

// fakeView mimics the provider panorama surface, with synchronous
// change listeners.
type fakeView struct {
	location domain.Coordinate

	mu        sync.Mutex
	pov       domain.Pov
	listeners []func(domain.Pov)
	closed    bool
}

func (v *fakeView) Location() domain.Coordinate { return v.location }

func (v *fakeView) Pov() domain.Pov {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pov
}

func (v *fakeView) SetPov(pov domain.Pov) {
	v.mu.Lock()
	v.pov = pov
	listeners := make([]func(domain.Pov), len(v.listeners))
	copy(listeners, v.listeners)
	v.mu.Unlock()
	for _, fn := range listeners {
		fn(pov)
	}
}

func (v *fakeView) OnPovChanged(fn func(domain.Pov)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

func (v *fakeView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *fakeView) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

type mockOpener struct {
	mu       sync.Mutex
	views    []*fakeView
	attempts int
	// failures is how many initial attempts fail before success.
	failures int
	err      error
}

func (m *mockOpener) Open(_ context.Context, loc domain.Coordinate) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failures {
		return nil, m.err
	}
	v := &fakeView{location: loc}
	m.views = append(m.views, v)
	return v, nil
}

type mockSuggester struct {
	seeds   []domain.SearchCandidate
	ranked  []domain.SearchCandidate
	rankErr error
}

func (m *mockSuggester) Seeds() []domain.SearchCandidate { return m.seeds }

func (m *mockSuggester) Rank(_ context.Context, input string) ([]domain.SearchCandidate, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	return m.ranked, m.rankErr
}

type mockLastLocation struct {
	mu    sync.Mutex
	saved []domain.Coordinate
	err   error
}

func (m *mockLastLocation) Save(_ context.Context, c domain.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, c)
	return m.err
}

func (m *mockLastLocation) last() *domain.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	c := m.saved[len(m.saved)-1]
	return &c
}

// --- Harness ---

type deps struct {
	locator   *mockLocator
	nearby    *mockNearby
	geocoder  *mockGeocoder
	opener    *mockOpener
	suggester *mockSuggester
	lastloc   *mockLastLocation
}

func newService(d *deps) *Service {
	dispatcher := dispatch.New(10*time.Millisecond, 5*time.Millisecond, nil)
	cfg := rotate.Config{ResumeDelay: 10 * time.Millisecond, FrameInterval: 2 * time.Millisecond}
	return New(
		d.locator, d.nearby, d.geocoder, d.opener, d.suggester,
		d.lastloc, dispatcher, cfg, nil,
	)
}

func defaultDeps() *deps {
	return &deps{
		locator:   &mockLocator{},
		nearby:    &mockNearby{},
		geocoder:  &mockGeocoder{address: "FC Road, Pune"},
		opener:    &mockOpener{},
		suggester: &mockSuggester{},
		lastloc:   &mockLastLocation{},
	}
}

var pune = domain.Coordinate{Lat: 18.5204, Lng: 73.8567}

// --- Tests ---

func TestOpen_MatchMountsSession(t *testing.T) {
	resolved := domain.Coordinate{Lat: 18.5195, Lng: 73.8553}
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: resolved, RadiusMeters: 250}
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}

	st := svc.Snapshot()
	if st.Loading || st.Initializing {
		t.Errorf("expected settled state, got loading=%v initializing=%v", st.Loading, st.Initializing)
	}
	if st.Address != "FC Road, Pune" {
		t.Errorf("expected reverse-geocoded address, got %q", st.Address)
	}
	if st.ShowNearby || st.ErrorMessage != "" {
		t.Errorf("unexpected fallback state: %+v", st)
	}
	if !st.Location.Equal(resolved) {
		t.Errorf("expected panorama location %s, got %s", resolved, st.Location)
	}
	if st.Pov == nil {
		t.Error("expected a mounted view with a pov")
	}

	if saved := d.lastloc.last(); saved == nil || !saved.Equal(resolved) {
		t.Errorf("expected last location %s persisted, got %v", resolved, saved)
	}
}

func TestOpen_MatchStartsRotation(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if svc.Snapshot().Rotating {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("rotation never started after mount")
}

func TestOpen_NoMatchShowsNearby(t *testing.T) {
	d := defaultDeps()
	d.nearby.places = []domain.NearbyPlace{{Name: "Shaniwar Wada"}}
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}

	st := svc.Snapshot()
	if !st.ShowNearby || len(st.NearbyPlaces) != 1 {
		t.Fatalf("expected nearby fallback, got %+v", st)
	}
	if st.ErrorMessage != "" {
		t.Errorf("unexpected error message %q", st.ErrorMessage)
	}
	if st.Pov != nil {
		t.Error("no session must be mounted for the fallback")
	}
	if d.lastloc.last() != nil {
		t.Error("fallback must not persist a location")
	}
}

func TestOpen_NothingFoundMessage(t *testing.T) {
	d := defaultDeps()
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}

	st := svc.Snapshot()
	if st.ErrorMessage != msgNothingFound {
		t.Errorf("expected %q, got %q", msgNothingFound, st.ErrorMessage)
	}
	if st.ShowNearby {
		t.Error("empty fallback must not show the nearby panel")
	}
}

func TestOpen_InvalidCoordinate(t *testing.T) {
	svc := newService(defaultDeps())
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), domain.Coordinate{Lat: 200}); err == nil {
		t.Fatal("expected an error for an out-of-range coordinate")
	}
}

func TestOpen_MountRetriesOnce(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	d.opener.failures = 1
	d.opener.err = domain.ErrPanoramaUnavailable
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.opener.attempts != 2 {
		t.Errorf("expected 2 mount attempts, got %d", d.opener.attempts)
	}
	if svc.Snapshot().ErrorMessage != "" {
		t.Error("recovered mount must clear the error state")
	}
}

func TestOpen_MountFailureSetsMessage(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	d.opener.failures = mountAttempts + 1
	d.opener.err = domain.ErrPanoramaUnavailable
	svc := newService(d)
	defer svc.Shutdown()

	// A short deadline cuts the backoff sleeps; the mount still fails.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Open(ctx, pune); err == nil {
		t.Fatal("expected mount failure")
	}
	st := svc.Snapshot()
	if st.ErrorMessage != msgMountFailed {
		t.Errorf("expected %q, got %q", msgMountFailed, st.ErrorMessage)
	}
	if st.Loading {
		t.Error("failed open must clear the loading flag")
	}
}

func TestOpen_ReverseGeocodeFailureDegradesAddress(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	d.geocoder.reverseErr = errors.New("geocoder down")
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := svc.Snapshot().Address; got != msgUnknownLocation {
		t.Errorf("expected %q, got %q", msgUnknownLocation, got)
	}
}

func TestOpen_ReplacesPreviousSession(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("second Open: %v", err)
	}

	if len(d.opener.views) != 2 {
		t.Fatalf("expected 2 mounted views, got %d", len(d.opener.views))
	}
	if !d.opener.views[0].isClosed() {
		t.Error("previous view must be closed on replacement")
	}
	if d.opener.views[1].isClosed() {
		t.Error("current view must stay open")
	}
	if len(d.lastloc.saved) != 2 {
		t.Errorf("each successful resolution overwrites the slot, got %d saves", len(d.lastloc.saved))
	}
}

func TestSearch_AddressNotFound(t *testing.T) {
	d := defaultDeps()
	d.geocoder.geocodeErr = domain.ErrAddressNotFound
	svc := newService(d)
	defer svc.Shutdown()

	err := svc.Search(context.Background(), "nowhere at all")
	if !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
	if got := svc.Snapshot().ErrorMessage; got != msgAddressNotFound {
		t.Errorf("expected %q, got %q", msgAddressNotFound, got)
	}
}

func TestSearch_OpensAtGeocodedLocation(t *testing.T) {
	d := defaultDeps()
	d.geocoder.geocodeLoc = pune
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	if err := svc.Search(context.Background(), "Pune"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := svc.Snapshot().Location; !got.Equal(pune) {
		t.Errorf("expected %s, got %s", pune, got)
	}
}

func TestSelect_SeedCoordinateWins(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	err := svc.Select(context.Background(), domain.SearchCandidate{
		PlaceID:          "18.5204,73.8567",
		ResolvedLocation: &domain.Coordinate{Lat: 1, Lng: 1},
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(d.geocoder.placeIDArgs) != 0 {
		t.Error("seed selection must not geocode")
	}
}

func TestSelect_ResolvedLocationBeforeDetails(t *testing.T) {
	resolved := domain.Coordinate{Lat: 48.8584, Lng: 2.2945}
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: resolved, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	err := svc.Select(context.Background(), domain.SearchCandidate{
		PlaceID:          "ChIJEiffel",
		ResolvedLocation: &resolved,
		Details:          &domain.PlaceDetails{Location: &domain.Coordinate{Lat: 2, Lng: 2}},
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(d.geocoder.placeIDArgs) != 0 {
		t.Error("resolved location must preempt the geocode fallback")
	}
	if got := svc.Snapshot().Location; !got.Equal(resolved) {
		t.Errorf("expected %s, got %s", resolved, got)
	}
}

func TestSelect_GeocodeFallback(t *testing.T) {
	d := defaultDeps()
	d.geocoder.placeIDLoc = pune
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)
	defer svc.Shutdown()

	err := svc.Select(context.Background(), domain.SearchCandidate{PlaceID: "ChIJOpaque"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(d.geocoder.placeIDArgs) != 1 || d.geocoder.placeIDArgs[0] != "ChIJOpaque" {
		t.Errorf("expected a place-id geocode, got %v", d.geocoder.placeIDArgs)
	}
}

func TestSuggest_BlankRestoresSeeds(t *testing.T) {
	d := defaultDeps()
	d.suggester.seeds = []domain.SearchCandidate{{PlaceID: "seed", Description: "Pune, India"}}
	svc := newService(d)
	defer svc.Shutdown()

	got, err := svc.Suggest(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 || got[0].PlaceID != "seed" {
		t.Fatalf("expected seed suggestions, got %+v", got)
	}
	if st := svc.Snapshot(); len(st.Suggestions) != 1 {
		t.Error("seeds must be reflected in the snapshot")
	}
}

func TestSuggest_SupersededKeepsState(t *testing.T) {
	d := defaultDeps()
	d.suggester.seeds = []domain.SearchCandidate{{PlaceID: "seed"}}
	svc := newService(d)
	defer svc.Shutdown()

	if _, err := svc.Suggest(context.Background(), ""); err != nil {
		t.Fatalf("Suggest seeds: %v", err)
	}

	d.suggester.rankErr = domain.ErrSuperseded
	_, err := svc.Suggest(context.Background(), "stale input")
	if !errors.Is(err, domain.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if st := svc.Snapshot(); len(st.Suggestions) != 1 || st.Suggestions[0].PlaceID != "seed" {
		t.Error("a superseded batch must not touch the current suggestions")
	}
}

func TestSetPov_NoSession(t *testing.T) {
	svc := newService(defaultDeps())
	defer svc.Shutdown()

	if err := svc.SetPov(domain.Pov{Heading: 10}); !errors.Is(err, domain.ErrPanoramaUnavailable) {
		t.Fatalf("expected ErrPanoramaUnavailable, got %v", err)
	}
	// Interact without a session is a no-op.
	svc.Interact()
}

func TestShutdown_Idempotent(t *testing.T) {
	d := defaultDeps()
	d.locator.match = &domain.PanoramaMatch{Location: pune, RadiusMeters: 50}
	svc := newService(d)

	if err := svc.Open(context.Background(), pune); err != nil {
		t.Fatalf("Open: %v", err)
	}
	svc.Shutdown()
	svc.Shutdown()
	if !d.opener.views[0].isClosed() {
		t.Error("shutdown must close the mounted view")
	}
}
