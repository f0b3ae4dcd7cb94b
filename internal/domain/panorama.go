package domain

// PanoramaMatch is the outcome of a successful expanding-radius search:
// the panorama's resolved coordinate and the radius at which it was found.
type PanoramaMatch struct {
	Location     Coordinate
	RadiusMeters int
}

// Pov is a panorama point of view.
type Pov struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
}

// PanoramaSource restricts which imagery a panorama query may return.
type PanoramaSource string

const (
	// SourceDefault allows indoor and outdoor imagery.
	SourceDefault PanoramaSource = "default"
	// SourceOutdoor restricts results to outdoor imagery.
	SourceOutdoor PanoramaSource = "outdoor"
)

// PanoramaStatus reports whether a mounted panorama finished loading.
type PanoramaStatus string

const (
	// PanoramaOK means imagery is loaded and displayable.
	PanoramaOK PanoramaStatus = "OK"
	// PanoramaPending means the panorama has not reported ready yet.
	PanoramaPending PanoramaStatus = "PENDING"
	// PanoramaError means the panorama failed to load.
	PanoramaError PanoramaStatus = "ERROR"
)
