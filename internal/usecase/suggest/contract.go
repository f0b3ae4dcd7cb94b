package suggest

import (
	"context"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// Places covers the provider operations the ranker needs.
type Places interface {
	Autocomplete(ctx context.Context, input, sessionToken string) ([]domain.SearchCandidate, error)
	PlaceDetails(ctx context.Context, placeID, sessionToken string) (*domain.PlaceDetails, error)
}

// PanoramaProber runs the fixed-radius existence check for a candidate.
type PanoramaProber interface {
	Probe(ctx context.Context, at domain.Coordinate) (bool, *domain.Coordinate, error)
}
