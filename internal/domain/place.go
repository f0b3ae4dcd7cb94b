package domain

// Photo references a provider-hosted place photo.
type Photo struct {
	Reference string `json:"photo_reference"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// PlaceDetails is the enriched provider record for a single place.
type PlaceDetails struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Location         *Coordinate
	Types            []string
	Photos           []Photo
	Rating           *float64
	RatingCount      *int
	OpenNow          *bool
}

// NearbyQuery describes a nearby-search request. RankByDistance and
// RadiusMeters are mutually exclusive in the provider's query model;
// when RankByDistance is set the radius must be omitted.
type NearbyQuery struct {
	Location       Coordinate
	Type           string
	Keyword        string
	RankByDistance bool
	RadiusMeters   int
}

// NearbyPlace is a fallback point of interest shown when no panorama
// exists near the queried position. DistanceMeters is always computed
// from the original query coordinate, never taken from the provider, so
// live and seeded entries stay comparable.
type NearbyPlace struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Location       Coordinate `json:"location"`
	DistanceMeters float64    `json:"distance_meters"`
	Distance       string     `json:"distance"`
	Rating         *float64   `json:"rating,omitempty"`
	RatingCount    *int       `json:"rating_count,omitempty"`
	OpenNow        *bool      `json:"open_now,omitempty"`
	Photos         []Photo    `json:"photos,omitempty"`
}
