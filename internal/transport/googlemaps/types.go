package googlemaps

// Wire types for the Google Maps Web Service JSON API.

// Provider status codes shared by the Places, Geocoding and Street View
// metadata endpoints.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusNotFound       = "NOT_FOUND"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type openingHours struct {
	OpenNow *bool `json:"open_now,omitempty"`
}

type photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type placeResult struct {
	PlaceID          string        `json:"place_id"`
	Name             string        `json:"name"`
	FormattedAddress string        `json:"formatted_address"`
	Vicinity         string        `json:"vicinity"`
	Geometry         *geometry     `json:"geometry,omitempty"`
	Types            []string      `json:"types,omitempty"`
	Photos           []photo       `json:"photos,omitempty"`
	Rating           *float64      `json:"rating,omitempty"`
	UserRatingsTotal *int          `json:"user_ratings_total,omitempty"`
	OpeningHours     *openingHours `json:"opening_hours,omitempty"`
}

type nearbySearchResponse struct {
	Results      []placeResult `json:"results"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type placeDetailsResponse struct {
	Result       placeResult `json:"result"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

type prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type autocompleteResponse struct {
	Predictions  []prediction `json:"predictions"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResult struct {
	FormattedAddress  string             `json:"formatted_address"`
	Geometry          geometry           `json:"geometry"`
	AddressComponents []addressComponent `json:"address_components"`
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type panoramaMetadataResponse struct {
	Status   string  `json:"status"`
	PanoID   string  `json:"pano_id,omitempty"`
	Location *latLng `json:"location,omitempty"`
}
