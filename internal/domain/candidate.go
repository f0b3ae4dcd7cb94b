package domain

// Candidate scores. A candidate with confirmed panorama coverage always
// outranks one that merely resolved, which outranks a failed lookup.
const (
	ScorePanorama    = 100
	ScoreDetailsOnly = 50
	ScoreUnresolved  = 0
)

// SearchCandidate is an autocomplete prediction annotated with panorama
// availability. ResolvedLocation is the panorama's own coordinate when
// HasStreetView is true, not the place geometry.
type SearchCandidate struct {
	PlaceID          string        `json:"place_id"`
	Description      string        `json:"description"`
	HasStreetView    bool          `json:"has_street_view"`
	Score            int           `json:"score"`
	ResolvedLocation *Coordinate   `json:"resolved_location,omitempty"`
	Details          *PlaceDetails `json:"-"`
}
