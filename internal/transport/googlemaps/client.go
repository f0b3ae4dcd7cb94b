package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/metrics"
	"github.com/kailas-cloud/panoview/internal/version"
)

// Config holds the geospatial provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	DetailsCacheTTL time.Duration
	Logger          *zap.Logger
}

// Client is the geospatial provider client. All pipeline components call
// it through the rate-limited dispatcher, never directly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	details    *gocache.Cache
	logger     *zap.Logger
}

// NewClient creates a provider client.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cacheTTL := cfg.DetailsCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		details:    gocache.New(cacheTTL, 2*cacheTTL),
		logger:     logger,
	}
}

// PanoramaMetadata queries the nearest panorama within radius meters of
// loc. Returns the panorama's own coordinate, or nil when the provider
// has no coverage there (a valid negative result, not an error).
func (c *Client) PanoramaMetadata(
	ctx context.Context, loc domain.Coordinate, radiusMeters int, source domain.PanoramaSource,
) (*domain.Coordinate, error) {
	q := url.Values{}
	q.Set("location", loc.String())
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("source", string(source))

	var resp panoramaMetadataResponse
	if err := c.getJSON(ctx, "streetview_metadata", "/maps/api/streetview/metadata", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
		if resp.Location == nil {
			return nil, fmt.Errorf("streetview metadata: OK without location: %w", domain.ErrProviderError)
		}
		return &domain.Coordinate{Lat: resp.Location.Lat, Lng: resp.Location.Lng}, nil
	case statusZeroResults, statusNotFound:
		return nil, nil
	default:
		return nil, c.statusErr("streetview_metadata", resp.Status, "")
	}
}

// NearbySearch runs a nearby-search query and returns raw provider
// results in provider order.
func (c *Client) NearbySearch(ctx context.Context, req domain.NearbyQuery) ([]domain.PlaceDetails, error) {
	q := url.Values{}
	q.Set("location", req.Location.String())
	if req.Type != "" {
		q.Set("type", req.Type)
	}
	if req.Keyword != "" {
		q.Set("keyword", req.Keyword)
	}
	if req.RankByDistance {
		q.Set("rankby", "distance")
	} else if req.RadiusMeters > 0 {
		q.Set("radius", strconv.Itoa(req.RadiusMeters))
	}

	var resp nearbySearchResponse
	if err := c.getJSON(ctx, "nearby_search", "/maps/api/place/nearbysearch/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, nil
	default:
		return nil, c.statusErr("nearby_search", resp.Status, resp.ErrorMessage)
	}

	out := make([]domain.PlaceDetails, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, toDetails(r))
	}
	return out, nil
}

// PlaceDetails fetches the enriched record for a place. sessionToken may
// be empty outside of an autocomplete burst. Successful lookups are
// cached for a short TTL.
func (c *Client) PlaceDetails(
	ctx context.Context, placeID, sessionToken string,
) (*domain.PlaceDetails, error) {
	if cached, ok := c.details.Get(placeID); ok {
		metrics.ProviderDetailsCacheTotal.WithLabelValues("hit").Inc()
		d := cached.(domain.PlaceDetails)
		return &d, nil
	}
	metrics.ProviderDetailsCacheTotal.WithLabelValues("miss").Inc()

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "place_id,name,formatted_address,geometry,types,photos,rating,user_ratings_total,opening_hours")
	if sessionToken != "" {
		q.Set("sessiontoken", sessionToken)
	}

	var resp placeDetailsResponse
	if err := c.getJSON(ctx, "place_details", "/maps/api/place/details/json", q, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, c.statusErr("place_details", resp.Status, resp.ErrorMessage)
	}

	d := toDetails(resp.Result)
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	c.details.SetDefault(placeID, d)
	return &d, nil
}

// Autocomplete fetches text predictions for the given input. The session
// token groups a keystroke burst with the eventual details lookup for
// provider-side billing.
func (c *Client) Autocomplete(
	ctx context.Context, input, sessionToken string,
) ([]domain.SearchCandidate, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("types", "geocode|establishment")
	if sessionToken != "" {
		q.Set("sessiontoken", sessionToken)
	}

	var resp autocompleteResponse
	if err := c.getJSON(ctx, "autocomplete", "/maps/api/place/autocomplete/json", q, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, nil
	default:
		return nil, c.statusErr("autocomplete", resp.Status, resp.ErrorMessage)
	}

	out := make([]domain.SearchCandidate, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, domain.SearchCandidate{PlaceID: p.PlaceID, Description: p.Description})
	}
	return out, nil
}

// Geocode resolves a free-text address to a coordinate and formatted
// address. Returns domain.ErrAddressNotFound when nothing matches.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, string, error) {
	q := url.Values{}
	q.Set("address", address)
	return c.geocode(ctx, q)
}

// GeocodePlaceID resolves a place id to a coordinate and formatted address.
func (c *Client) GeocodePlaceID(ctx context.Context, placeID string) (domain.Coordinate, string, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	return c.geocode(ctx, q)
}

func (c *Client) geocode(ctx context.Context, q url.Values) (domain.Coordinate, string, error) {
	var resp geocodeResponse
	if err := c.getJSON(ctx, "geocode", "/maps/api/geocode/json", q, &resp); err != nil {
		return domain.Coordinate{}, "", err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return domain.Coordinate{}, "", domain.ErrAddressNotFound
	default:
		return domain.Coordinate{}, "", c.statusErr("geocode", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return domain.Coordinate{}, "", domain.ErrAddressNotFound
	}

	first := resp.Results[0]
	loc := domain.Coordinate{Lat: first.Geometry.Location.Lat, Lng: first.Geometry.Location.Lng}
	return loc, first.FormattedAddress, nil
}

// ReverseGeocode resolves a coordinate to its formatted address and
// locality (city/town). Locality may be empty when the provider returns
// no locality component.
func (c *Client) ReverseGeocode(
	ctx context.Context, loc domain.Coordinate,
) (address, locality string, err error) {
	q := url.Values{}
	q.Set("latlng", loc.String())

	var resp geocodeResponse
	if err := c.getJSON(ctx, "reverse_geocode", "/maps/api/geocode/json", q, &resp); err != nil {
		return "", "", err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return "", "", domain.ErrAddressNotFound
	default:
		return "", "", c.statusErr("reverse_geocode", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return "", "", domain.ErrAddressNotFound
	}

	first := resp.Results[0]
	for _, comp := range first.AddressComponents {
		for _, t := range comp.Types {
			if t == "locality" {
				locality = comp.LongName
			}
		}
	}
	return first.FormattedAddress, locality, nil
}

// getJSON performs a GET against the provider with the API key attached
// and decodes the JSON body. HTTP 429 maps to domain.ErrRateLimited.
func (c *Client) getJSON(
	ctx context.Context, endpoint, path string, q url.Values, out any,
) error {
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.ProviderRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return fmt.Errorf("%s: http 429: %w", endpoint, domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: http %d: %s: %w", endpoint, resp.StatusCode, body, domain.ErrProviderError)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// statusErr maps a non-OK provider body status to a domain error.
// OVER_QUERY_LIMIT is the body-level spelling of a 429.
func (c *Client) statusErr(endpoint, status, message string) error {
	if status == statusOverQueryLimit {
		return fmt.Errorf("%s: 429 %s: %w", endpoint, status, domain.ErrRateLimited)
	}
	if message != "" {
		return fmt.Errorf("%s: status %s: %s: %w", endpoint, status, message, domain.ErrProviderError)
	}
	return fmt.Errorf("%s: status %s: %w", endpoint, status, domain.ErrProviderError)
}

func toDetails(r placeResult) domain.PlaceDetails {
	d := domain.PlaceDetails{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Types:            r.Types,
		Rating:           r.Rating,
		RatingCount:      r.UserRatingsTotal,
	}
	if d.FormattedAddress == "" {
		d.FormattedAddress = r.Vicinity
	}
	if r.Geometry != nil {
		d.Location = &domain.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	}
	if r.OpeningHours != nil {
		d.OpenNow = r.OpeningHours.OpenNow
	}
	for _, p := range r.Photos {
		d.Photos = append(d.Photos, domain.Photo{Reference: p.PhotoReference, Width: p.Width, Height: p.Height})
	}
	return d
}
