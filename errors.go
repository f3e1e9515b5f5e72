package nostr

import "errors"

var (
	// ErrRelayFailed is returned for endpoints that exhausted their retries.
	ErrRelayFailed = errors.New("relay failed after exhausting retries")

	// ErrNotConnected is returned when sending to an endpoint without an open transport.
	ErrNotConnected = errors.New("relay not connected")

	// ErrSupervisorClosed is returned by operations attempted after CloseAll.
	ErrSupervisorClosed = errors.New("supervisor closed")

	ErrInvalidFilter = errors.New("invalid filter")
)
