package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// GeoChecker checks geolocation provider availability.
type GeoChecker interface {
	HealthCheck(ctx context.Context) error
}
