package shared

import "errors"

var (
	// ErrUpstreamUnavailable is returned when the history or catalog API cannot be
	// reached or answers with a non-success response. It is fatal to a sync run.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound is returned when the catalog has no entity matching a lookup.
	ErrNotFound = errors.New("not found in catalog")

	// Configuration errors
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSyncInProgress is returned when a sync is requested while another is running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
