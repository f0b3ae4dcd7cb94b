package nearby

import (
	"context"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// Places covers the provider operations the fallback finder needs.
type Places interface {
	NearbySearch(ctx context.Context, req domain.NearbyQuery) ([]domain.PlaceDetails, error)
	PlaceDetails(ctx context.Context, placeID, sessionToken string) (*domain.PlaceDetails, error)
	ReverseGeocode(ctx context.Context, loc domain.Coordinate) (address, locality string, err error)
}

// LandmarkTable returns curated landmarks for a locality, nil when the
// city is not seeded.
type LandmarkTable func(locality string) []domain.NearbyPlace
