package viewer

import (
	"context"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// View is a mounted panorama surface.
type View interface {
	Location() domain.Coordinate
	Pov() domain.Pov
	SetPov(pov domain.Pov)
	OnPovChanged(fn func(domain.Pov))
	Close()
}

// PanoramaOpener mounts a panorama view at a resolved coordinate.
type PanoramaOpener interface {
	Open(ctx context.Context, loc domain.Coordinate) (View, error)
}

// Locator runs the expanding-radius panorama search.
type Locator interface {
	Locate(ctx context.Context, origin domain.Coordinate) (*domain.PanoramaMatch, error)
}

// NearbyFinder serves the no-panorama fallback.
type NearbyFinder interface {
	FindNearby(ctx context.Context, origin domain.Coordinate) ([]domain.NearbyPlace, error)
}

// Geocoder resolves between addresses, place ids and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinate, string, error)
	GeocodePlaceID(ctx context.Context, placeID string) (domain.Coordinate, string, error)
	ReverseGeocode(ctx context.Context, loc domain.Coordinate) (address, locality string, err error)
}

// Suggester ranks autocomplete candidates.
type Suggester interface {
	Seeds() []domain.SearchCandidate
	Rank(ctx context.Context, input string) ([]domain.SearchCandidate, error)
}

// LastLocation persists the last successfully resolved coordinate.
type LastLocation interface {
	Save(ctx context.Context, c domain.Coordinate) error
}
