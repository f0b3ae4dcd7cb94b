package domain

import "errors"

var (
	// ErrRateLimited signals the geospatial provider rejected a call with
	// a 429-style rate limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrDeferred signals the dispatcher queued the task for replay
	// instead of running it. Deferred is not failed; callers must not
	// surface it as an error.
	ErrDeferred = errors.New("request deferred")
	// ErrSuperseded signals a result batch was overtaken by a newer
	// request and must be discarded.
	ErrSuperseded = errors.New("result superseded")
	// ErrAddressNotFound signals geocoding produced no result.
	ErrAddressNotFound = errors.New("address not found")
	// ErrPanoramaUnavailable signals panorama mounting failed after all
	// retries.
	ErrPanoramaUnavailable = errors.New("panorama unavailable")
	// ErrProviderError wraps unexpected geospatial provider failures.
	ErrProviderError = errors.New("geospatial provider error")
)
