package nostr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FrameSender is what the registry needs from the supervisor.
type FrameSender interface {
	ConnectedURLs() []string
	Send(ctx context.Context, url string, frame []byte) error
}

// Epochs is told when a subscription starts and stops, so it can keep per-subscription state.
type Epochs interface {
	ResetEpoch()
	Deactivate()
}

// SubscriptionRegistry holds the one logical subscription of a manager and keeps every
// connected relay subscribed to it.
type SubscriptionRegistry struct {
	id     string
	sender FrameSender
	epochs Epochs
	logger *zerolog.Logger

	// SendTimeout bounds each REQ or CLOSE write. Defaults to 10 seconds.
	SendTimeout time.Duration

	// mu is held while frames go out so REQs for consecutive filters can't overtake each other.
	mu     sync.Mutex
	filter *Filter
	req    []byte
}

func NewSubscriptionRegistry(id string, sender FrameSender, epochs Epochs, logger *zerolog.Logger) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		id:          id,
		sender:      sender,
		epochs:      epochs,
		logger:      loggerOr(logger),
		SendTimeout: 10 * time.Second,
	}
}

// ID is the subscription identifier used on the wire. It never changes.
func (r *SubscriptionRegistry) ID() string { return r.id }

// Filter returns a copy of the current filter, if any.
func (r *SubscriptionRegistry) Filter() (Filter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filter == nil {
		return Filter{}, false
	}
	return r.filter.Clone(), true
}

// SetFilter replaces the filter, starts a new dedup epoch and sends the new REQ to every
// connected relay. An invalid filter is rejected and nothing changes.
func (r *SubscriptionRegistry) SetFilter(filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}

	req, err := ReqEnvelope{SubscriptionID: r.id, Filters: []Filter{filter}}.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f := filter.Clone()
	r.filter = &f
	r.req = req
	r.epochs.ResetEpoch()

	r.broadcast(req, "REQ")
	return nil
}

// OnEndpointConnected replays the current REQ on url only.
func (r *SubscriptionRegistry) OnEndpointConnected(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.req == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.SendTimeout)
	defer cancel()
	if err := r.sender.Send(ctx, url, r.req); err != nil {
		r.logger.Debug().Err(err).Str("relay", url).Msg("failed to replay REQ")
	}
}

// Close sends CLOSE to every connected relay and forgets the filter.
func (r *SubscriptionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filter == nil {
		return
	}

	closeFrame, _ := CloseEnvelope(r.id).MarshalJSON()
	r.broadcast(closeFrame, "CLOSE")
	r.filter = nil
	r.req = nil
	r.epochs.Deactivate()
}

// Reset forgets the filter without writing anything, for when the connections are going away anyway.
func (r *SubscriptionRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.filter = nil
	r.req = nil
	r.epochs.Deactivate()
}

func (r *SubscriptionRegistry) broadcast(frame []byte, label string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.SendTimeout)
	defer cancel()

	var g errgroup.Group
	for _, url := range r.sender.ConnectedURLs() {
		g.Go(func() error {
			if err := r.sender.Send(ctx, url, frame); err != nil {
				r.logger.Debug().Err(err).Str("relay", url).Msgf("failed to send %s", label)
			}
			return nil
		})
	}
	g.Wait()
}
