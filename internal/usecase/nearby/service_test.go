package nearby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/repository/landmarks"
	"github.com/kailas-cloud/panoview/internal/usecase/dispatch"
)

// --- Mocks ---

type mockPlaces struct {
	searches []domain.NearbyQuery
	// byType maps query type to stage results.
	byType map[string][]domain.PlaceDetails
	// searchErr fails every NearbySearch call.
	searchErr error

	details    map[string]*domain.PlaceDetails
	detailsErr error

	locality   string
	reverseErr error
}

func (m *mockPlaces) NearbySearch(_ context.Context, req domain.NearbyQuery) ([]domain.PlaceDetails, error) {
	m.searches = append(m.searches, req)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.byType[req.Type], nil
}

func (m *mockPlaces) PlaceDetails(_ context.Context, placeID, _ string) (*domain.PlaceDetails, error) {
	if m.detailsErr != nil {
		return nil, m.detailsErr
	}
	return m.details[placeID], nil
}

func (m *mockPlaces) ReverseGeocode(_ context.Context, _ domain.Coordinate) (string, string, error) {
	if m.reverseErr != nil {
		return "", "", m.reverseErr
	}
	return "somewhere", m.locality, nil
}

func newDispatcher() *dispatch.Service {
	return dispatch.New(10*time.Millisecond, 5*time.Millisecond, nil)
}

var origin = domain.Coordinate{Lat: 18.5204, Lng: 73.8567}

func rawPlace(id string) domain.PlaceDetails {
	return domain.PlaceDetails{PlaceID: id, Name: "raw " + id}
}

func fullDetails(id, name string, lat, lng float64) *domain.PlaceDetails {
	return &domain.PlaceDetails{
		PlaceID:          id,
		Name:             name,
		FormattedAddress: name + " address",
		Location:         &domain.Coordinate{Lat: lat, Lng: lng},
	}
}

// --- Tests ---

func TestFindNearby_PrimaryStageWins(t *testing.T) {
	places := &mockPlaces{
		byType: map[string][]domain.PlaceDetails{
			"tourist_attraction": {rawPlace("p1")},
		},
		details: map[string]*domain.PlaceDetails{
			"p1": fullDetails("p1", "Shaniwar Wada", 18.5195, 73.8553),
		},
	}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 place, got %d", len(got))
	}
	if got[0].Name != "Shaniwar Wada" {
		t.Errorf("expected enriched name, got %q", got[0].Name)
	}
	if got[0].Distance == "" || got[0].DistanceMeters <= 0 {
		t.Errorf("expected computed distance, got %q (%f m)", got[0].Distance, got[0].DistanceMeters)
	}

	if len(places.searches) != 1 {
		t.Fatalf("expected only the primary stage to run, got %d searches", len(places.searches))
	}
	q := places.searches[0]
	if q.Type != "tourist_attraction" || !q.RankByDistance {
		t.Errorf("unexpected primary query: %+v", q)
	}
	if q.RadiusMeters != 0 {
		t.Errorf("distance ranking must omit the radius, got %d", q.RadiusMeters)
	}
}

func TestFindNearby_BackupStageOnlyWhenPrimaryEmpty(t *testing.T) {
	places := &mockPlaces{
		byType: map[string][]domain.PlaceDetails{
			"point_of_interest": {rawPlace("p2")},
		},
		details: map[string]*domain.PlaceDetails{
			"p2": fullDetails("p2", "Aga Khan Palace", 18.5516, 73.9003),
		},
	}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Aga Khan Palace" {
		t.Fatalf("expected backup stage result, got %+v", got)
	}

	if len(places.searches) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(places.searches))
	}
	backup := places.searches[1]
	if backup.Type != "point_of_interest" || backup.Keyword != "attraction" {
		t.Errorf("unexpected backup query: %+v", backup)
	}
	if backup.RadiusMeters != backupRadiusMeters {
		t.Errorf("expected backup radius %d, got %d", backupRadiusMeters, backup.RadiusMeters)
	}
	if backup.RankByDistance {
		t.Error("backup stage must not rank by distance")
	}
}

func TestFindNearby_SeededLandmarksForKnownCity(t *testing.T) {
	places := &mockPlaces{locality: "Pune"}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 seeded landmarks, got %d", len(got))
	}
	if got[0].Name != "Shaniwar Wada" {
		t.Errorf("expected Shaniwar Wada first, got %q", got[0].Name)
	}
	if len(places.searches) != 2 {
		t.Errorf("both live stages must run before the static table, got %d", len(places.searches))
	}
}

func TestFindNearby_UnknownCityYieldsEmpty(t *testing.T) {
	places := &mockPlaces{locality: "Atlantis"}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestFindNearby_ReverseGeocodeFailureYieldsEmpty(t *testing.T) {
	places := &mockPlaces{reverseErr: errors.New("geocoder down")}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestFindNearby_EnrichmentFailureDropsItem(t *testing.T) {
	places := &mockPlaces{
		byType: map[string][]domain.PlaceDetails{
			"tourist_attraction": {rawPlace("ok"), rawPlace("broken")},
		},
		details: map[string]*domain.PlaceDetails{
			"ok": fullDetails("ok", "Sinhagad Fort", 18.3664, 73.7536),
			// "broken" resolves to nil details and is dropped.
		},
	}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Sinhagad Fort" {
		t.Fatalf("expected only the enrichable item, got %+v", got)
	}
}

func TestFindNearby_EnrichesAtMostThree(t *testing.T) {
	raw := []domain.PlaceDetails{rawPlace("a"), rawPlace("b"), rawPlace("c"), rawPlace("d")}
	places := &mockPlaces{
		byType: map[string][]domain.PlaceDetails{"tourist_attraction": raw},
		details: map[string]*domain.PlaceDetails{
			"a": fullDetails("a", "A", 18.52, 73.85),
			"b": fullDetails("b", "B", 18.53, 73.86),
			"c": fullDetails("c", "C", 18.54, 73.87),
			"d": fullDetails("d", "D", 18.55, 73.88),
		},
	}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != enrichLimit {
		t.Fatalf("expected %d enriched places, got %d", enrichLimit, len(got))
	}
}

func TestFindNearby_MissingNameFallsBack(t *testing.T) {
	d := fullDetails("p1", "", 18.52, 73.85)
	places := &mockPlaces{
		byType:  map[string][]domain.PlaceDetails{"tourist_attraction": {rawPlace("p1")}},
		details: map[string]*domain.PlaceDetails{"p1": d},
	}
	svc := New(places, landmarks.ForLocality, newDispatcher(), nil)

	got, err := svc.FindNearby(context.Background(), origin)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Unknown Place" {
		t.Fatalf("expected name fallback, got %+v", got)
	}
}
