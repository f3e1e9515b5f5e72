package nostr

import "time"

// Timestamp is a unix timestamp in seconds, as used in created_at, since and until.
type Timestamp int64

func Now() Timestamp { return Timestamp(time.Now().Unix()) }

func (t Timestamp) Time() time.Time { return time.Unix(int64(t), 0) }
