package service

import "errors"

// Sentinel errors for the aggregation service.
var (
	// ErrAllSourcesFailed is returned by a forced refresh without fallback
	// when no adapter produced data.
	ErrAllSourcesFailed = errors.New("all sources failed")
	// ErrStopped is returned once the service has been stopped.
	ErrStopped = errors.New("service stopped")
)
