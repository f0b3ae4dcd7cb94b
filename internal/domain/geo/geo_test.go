package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Shaniwar Wada to Aga Khan Palace, roughly 5.5 km.
	d := Haversine(18.5195, 73.8553, 18.5516, 73.9003)
	if d < 5000 || d > 7000 {
		t.Errorf("expected ~5.5 km, got %.0f m", d)
	}
}

func TestHaversine_ZeroForSamePoint(t *testing.T) {
	if d := Haversine(18.5204, 73.8567, 18.5204, 73.8567); d != 0 {
		t.Errorf("expected 0, got %g", d)
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	a := Haversine(48.8584, 2.2945, 51.5007, -0.1246)
	b := Haversine(51.5007, -0.1246, 48.8584, 2.2945)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("expected symmetric distance, got %g and %g", a, b)
	}
	// Paris to London is about 340 km.
	if a < 300_000 || a > 400_000 {
		t.Errorf("expected ~340 km, got %.0f m", a)
	}
}

func TestFormatKm(t *testing.T) {
	cases := []struct {
		meters float64
		want   string
	}{
		{1200, "1.2 km"},
		{3800, "3.8 km"},
		{999, "1.0 km"},
		{0, "0.0 km"},
		{12345, "12.3 km"},
	}
	for _, tc := range cases {
		if got := FormatKm(tc.meters); got != tc.want {
			t.Errorf("FormatKm(%g) = %q, want %q", tc.meters, got, tc.want)
		}
	}
}

func TestValidateCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{18.5204, 73.8567, true},
		{-90, -180, true},
		{90, 180, true},
		{90.1, 0, false},
		{0, 180.1, false},
		{-91, 0, false},
	}
	for _, tc := range cases {
		if got := ValidateCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("ValidateCoordinates(%g, %g) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}
