package nostr

// ConnectionState is the lifecycle state of one relay endpoint.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"

	// StateFailed is terminal: the endpoint exhausted its retries and is never dialed again.
	StateFailed ConnectionState = "failed"
)

func (s ConnectionState) String() string { return string(s) }

// IsTerminal reports whether no further transitions will happen.
func (s ConnectionState) IsTerminal() bool { return s == StateFailed }
