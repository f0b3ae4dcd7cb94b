package domain

import "fmt"

// Coordinate is an immutable geographic position in degrees.
// Equality is exact numeric equality; no tolerance is applied.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies on the globe.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Equal reports exact numeric equality with other.
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Lat == other.Lat && c.Lng == other.Lng
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lng)
}
