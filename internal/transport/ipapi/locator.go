// Package ipapi resolves the device position from its public IP address.
// In a service deployment there is no browser geolocation API; this
// fulfils the same single-shot, 5-second-timeout, no-cached-fix contract
// behind the bootstrap's Geolocator interface.
package ipapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/version"
)

type lookupResponse struct {
	Status  string  `json:"status"` // "success" or "fail"
	Message string  `json:"message,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city,omitempty"`
}

// Config holds the IP geolocation settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Locator looks up the current position via an ip-api.com style endpoint.
type Locator struct {
	httpClient *http.Client
	baseURL    string
}

// NewLocator creates an IP geolocation locator.
func NewLocator(cfg Config) *Locator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	return &Locator{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// CurrentPosition performs one fresh position lookup. No cached fix is
// ever returned; each call hits the service.
func (l *Locator) CurrentPosition(ctx context.Context) (domain.Coordinate, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, l.baseURL+"/json?fields=status,message,lat,lon,city", nil,
	)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geolocation: create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geolocation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinate{}, fmt.Errorf("geolocation: http %d", resp.StatusCode)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinate{}, fmt.Errorf("geolocation: decode response: %w", err)
	}
	if decoded.Status != "success" {
		return domain.Coordinate{}, fmt.Errorf("geolocation failed: %s", decoded.Message)
	}

	c := domain.Coordinate{Lat: decoded.Lat, Lng: decoded.Lon}
	if !c.Valid() {
		return domain.Coordinate{}, fmt.Errorf("geolocation: coordinate out of range: %s", c)
	}
	return c, nil
}

// HealthCheck verifies the geolocation endpoint answers.
func (l *Locator) HealthCheck(ctx context.Context) error {
	_, err := l.CurrentPosition(ctx)
	return err
}
