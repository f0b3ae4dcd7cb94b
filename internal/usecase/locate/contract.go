package locate

import (
	"context"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// PanoramaIndex queries the provider's panorama index. A nil coordinate
// with a nil error means no coverage within the radius.
type PanoramaIndex interface {
	PanoramaMetadata(
		ctx context.Context, loc domain.Coordinate, radiusMeters int, source domain.PanoramaSource,
	) (*domain.Coordinate, error)
}
