package broadcast

import "errors"

// Sentinel errors for subscriber delivery.
var (
	ErrClosed         = errors.New("subscriber closed")
	ErrSlowSubscriber = errors.New("subscriber did not drain in time")
)
