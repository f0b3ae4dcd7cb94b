package googlemaps

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// Panorama is a mounted street-level view. It models the vendor SDK's
// panorama surface: a point of view that both the rotation controller
// and the user may move, with change listeners for the latter case.
type Panorama struct {
	location domain.Coordinate
	panoID   string

	mu        sync.Mutex
	pov       domain.Pov
	status    domain.PanoramaStatus
	listeners []func(domain.Pov)
	closed    bool
}

// OpenPanorama mounts a panorama at loc. The provider is asked for the
// imagery bundle metadata; any failure here is a mount failure that the
// caller may retry.
func (c *Client) OpenPanorama(ctx context.Context, loc domain.Coordinate) (*Panorama, error) {
	resolved, err := c.PanoramaMetadata(ctx, loc, 50, domain.SourceDefault)
	if err != nil {
		return nil, fmt.Errorf("open panorama: %w", err)
	}
	if resolved == nil {
		return nil, fmt.Errorf("open panorama at %s: %w", loc, domain.ErrPanoramaUnavailable)
	}

	return &Panorama{
		location: *resolved,
		pov:      domain.Pov{Heading: 0, Pitch: 0},
		status:   domain.PanoramaOK,
	}, nil
}

// Location returns the panorama's anchored coordinate.
func (p *Panorama) Location() domain.Coordinate {
	return p.location
}

// Status reports the load status.
func (p *Panorama) Status() domain.PanoramaStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Pov returns the current point of view.
func (p *Panorama) Pov() domain.Pov {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pov
}

// SetPov moves the point of view and notifies change listeners. Both
// programmatic rotation and observed user movement arrive here; it is
// the listener's job to tell them apart.
func (p *Panorama) SetPov(pov domain.Pov) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pov = pov
	listeners := make([]func(domain.Pov), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(pov)
	}
}

// OnPovChanged registers a listener invoked after every point-of-view write.
func (p *Panorama) OnPovChanged(fn func(domain.Pov)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Close detaches all listeners and marks the view unmounted. Idempotent.
func (p *Panorama) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.status = domain.PanoramaPending
	p.listeners = nil
}
