package nostr

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Notification is what a subscription callback receives: either an event delivered
// by a relay or a change in the state of one of the relays. Exactly one field is set.
type Notification struct {
	Event  *RelayEvent
	Status *RelayStatus
}

// IsStatus reports whether this is a connection status update rather than a relay event.
func (n Notification) IsStatus() bool { return n.Status != nil }

// RelayStatus is a synthesized notification, it never comes from a relay.
type RelayStatus struct {
	URL   string
	State ConnectionState
}

// Callback receives notifications. It is called concurrently from the goroutines of
// different relays, and in arrival order for any single relay.
type Callback func(Notification)

// EventDispatcher turns inbound frames into notifications, forwarding each event id at
// most once per subscription epoch no matter how many relays send it.
type EventDispatcher struct {
	subscriptionID string
	logger         *zerolog.Logger

	// seen is nil while no subscription is active.
	seen     atomic.Pointer[MapOf[ID, struct{}]]
	callback atomic.Pointer[Callback]

	// DuplicateHook, if set, is called for every event dropped because some relay already delivered it.
	DuplicateHook func(relay string, id ID)
}

func NewEventDispatcher(subscriptionID string, logger *zerolog.Logger) *EventDispatcher {
	return &EventDispatcher{
		subscriptionID: subscriptionID,
		logger:         loggerOr(logger),
	}
}

// SetCallback sets the function notifications go to. A nil callback drops everything.
func (d *EventDispatcher) SetCallback(cb Callback) {
	if cb == nil {
		d.callback.Store(nil)
		return
	}
	d.callback.Store(&cb)
}

// ResetEpoch starts a new epoch with an empty dedup set.
func (d *EventDispatcher) ResetEpoch() {
	d.seen.Store(NewMapOf[ID, struct{}]())
}

// Deactivate ends the current epoch. Events are dropped until the next ResetEpoch.
func (d *EventDispatcher) Deactivate() {
	d.seen.Store(nil)
}

// Active reports whether an epoch is running.
func (d *EventDispatcher) Active() bool { return d.seen.Load() != nil }

// OnStatusChange forwards a connection state transition as a notification.
func (d *EventDispatcher) OnStatusChange(url string, state ConnectionState) {
	d.deliver(Notification{Status: &RelayStatus{URL: url, State: state}})
}

// OnFrame handles one raw frame received from url. Nothing that comes in here is
// ever returned as an error: bad frames are logged and dropped.
func (d *EventDispatcher) OnFrame(frame string, url string) {
	seen := d.seen.Load()

	// skip decoding events we already have
	if seen != nil {
		pre := gjson.GetMany(frame, "0", "1", "2.id")
		if pre[0].Str == "EVENT" && pre[1].Str == d.subscriptionID && len(pre[2].Str) == 64 {
			if id, err := IDFromHex(pre[2].Str); err == nil {
				if _, ok := seen.Load(id); ok {
					d.duplicate(url, id)
					return
				}
			}
		}
	}

	envelope, err := ParseMessage(frame)
	if err != nil {
		if errors.Is(err, UnknownLabel) {
			d.logger.Debug().Err(err).Str("relay", url).Msg("ignoring message")
		} else {
			d.logger.Warn().Err(err).Str("relay", url).Str("frame", truncate(frame, 200)).Msg("malformed message")
		}
		return
	}

	switch env := envelope.(type) {
	case *EventEnvelope:
		if env.SubscriptionID == nil || *env.SubscriptionID != d.subscriptionID {
			d.logger.Debug().Str("relay", url).Msg("event for unknown subscription")
			return
		}
		if env.ID == ZeroID {
			d.logger.Warn().Str("relay", url).Msg("event without an id")
			return
		}
		if seen == nil {
			seen = d.seen.Load()
			if seen == nil {
				d.logger.Debug().Str("relay", url).Stringer("id", env.ID).Msg("event with no active subscription")
				return
			}
		}
		if _, loaded := seen.LoadOrStore(env.ID, struct{}{}); loaded {
			d.duplicate(url, env.ID)
			return
		}
		d.deliver(Notification{Event: &RelayEvent{Event: env.Event, Relay: url}})
	case *NoticeEnvelope:
		d.logger.Info().Str("relay", url).Str("notice", string(*env)).Msg("notice from relay")
	case *EOSEEnvelope:
		if string(*env) != d.subscriptionID {
			d.logger.Debug().Str("relay", url).Str("id", string(*env)).Msg("EOSE for unknown subscription")
			return
		}
		d.logger.Debug().Str("relay", url).Msg("end of stored events")
	case *ClosedEnvelope:
		if env.SubscriptionID != d.subscriptionID {
			d.logger.Debug().Str("relay", url).Str("id", env.SubscriptionID).Msg("CLOSED for unknown subscription")
			return
		}
		d.logger.Info().Str("relay", url).Str("reason", env.Reason).Msg("subscription closed by relay")
	default:
		d.logger.Debug().Str("relay", url).Str("label", envelope.Label()).Msg("unexpected message from relay")
	}
}

func (d *EventDispatcher) duplicate(url string, id ID) {
	if d.DuplicateHook != nil {
		d.DuplicateHook(url, id)
	}
}

func (d *EventDispatcher) deliver(n Notification) {
	if cb := d.callback.Load(); cb != nil {
		(*cb)(n)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
