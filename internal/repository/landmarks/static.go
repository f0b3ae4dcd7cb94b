package landmarks

import "github.com/kailas-cloud/panoview/internal/domain"

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

// table maps locality names (as returned by reverse geocoding) to a
// curated landmark list. It is the last fallback stage: for seeded
// cities the UI is never empty, whatever the live provider returns.
var table = map[string][]domain.NearbyPlace{
	"Pune": {
		{
			Name:           "Shaniwar Wada",
			Description:    "Historic fortification and palace in Pune, built in 1732.",
			Location:       domain.Coordinate{Lat: 18.5195, Lng: 73.8553},
			DistanceMeters: 1200,
			Distance:       "1.2 km",
			Rating:         ptrF(4.5),
			RatingCount:    ptrI(1000),
		},
		{
			Name:           "Aga Khan Palace",
			Description:    "Historic building and museum, significant for Indian independence movement.",
			Location:       domain.Coordinate{Lat: 18.5516, Lng: 73.9003},
			DistanceMeters: 2500,
			Distance:       "2.5 km",
			Rating:         ptrF(4.4),
			RatingCount:    ptrI(800),
		},
		{
			Name:           "Sinhagad Fort",
			Description:    "Ancient mountain fortress with panoramic views.",
			Location:       domain.Coordinate{Lat: 18.3664, Lng: 73.7536},
			DistanceMeters: 3800,
			Distance:       "3.8 km",
			Rating:         ptrF(4.6),
			RatingCount:    ptrI(1200),
		},
	},
}

// ForLocality returns the curated landmarks for a locality, or nil when
// the city is not seeded. The returned slice is a copy; callers may
// mutate it freely.
func ForLocality(name string) []domain.NearbyPlace {
	seeds, ok := table[name]
	if !ok {
		return nil
	}
	out := make([]domain.NearbyPlace, len(seeds))
	copy(out, seeds)
	return out
}
