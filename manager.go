package nostr

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const DefaultSubscriptionID = "default-subscription"

// ManagerOptions configures a Manager. The zero value is usable.
type ManagerOptions struct {
	// SubscriptionID identifies the single subscription on every relay. Defaults to "default-subscription".
	SubscriptionID string

	// MaxRetries defaults to 5, use a negative number to never retry.
	MaxRetries int

	// RetryDelay defaults to 5 seconds.
	RetryDelay time.Duration

	// DialTimeout defaults to 7 seconds.
	DialTimeout time.Duration

	// RequestHeader sets the HTTP request header of the websocket preflight request
	RequestHeader http.Header

	Logger *zerolog.Logger

	// Dial replaces the websocket dialer, DialTimeout and RequestHeader are ignored when it is set.
	Dial DialFunc

	// DuplicateHook is called for every event dropped because another relay already delivered it.
	DuplicateHook func(relay string, id ID)
}

// Manager keeps a set of relays connected and subscribed to one filter, merging what
// they send into a single callback.
type Manager struct {
	supervisor *ConnectionSupervisor
	registry   *SubscriptionRegistry
	dispatcher *EventDispatcher
	logger     *zerolog.Logger

	closed atomic.Bool
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.SubscriptionID == "" {
		opts.SubscriptionID = DefaultSubscriptionID
	}
	logger := loggerOr(opts.Logger)

	dial := opts.Dial
	if dial == nil {
		dial = SocketOptions{
			RequestHeader: opts.RequestHeader,
			DialTimeout:   opts.DialTimeout,
			Logger:        logger,
		}.Dialer()
	}

	m := &Manager{logger: logger}
	m.dispatcher = NewEventDispatcher(opts.SubscriptionID, logger)
	m.dispatcher.DuplicateHook = opts.DuplicateHook
	m.supervisor = NewConnectionSupervisor(SupervisorOptions{
		SubscriptionID: opts.SubscriptionID,
		MaxRetries:     opts.MaxRetries,
		RetryDelay:     opts.RetryDelay,
		Dial:           dial,
		Logger:         logger,
		HandleFrame: func(url string, frame string) {
			m.dispatcher.OnFrame(frame, url)
		},
		StateChanged: m.dispatcher.OnStatusChange,
		Connected: func(url string) {
			m.registry.OnEndpointConnected(url)
		},
	})
	m.registry = NewSubscriptionRegistry(opts.SubscriptionID, m.supervisor, m.dispatcher, logger)

	return m
}

// Subscribe points callback at the merged stream of the given relays, subscribed to filter.
// Relays already connected get the new filter right away, the others as soon as they connect.
// Relay URLs that can't be used are logged and skipped.
func (m *Manager) Subscribe(urls []string, filter Filter, callback Callback) error {
	if callback == nil {
		return errors.New("callback is required")
	}
	if m.closed.Load() {
		return ErrSupervisorClosed
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	m.dispatcher.SetCallback(callback)
	if err := m.registry.SetFilter(filter); err != nil {
		return err
	}

	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		nm := NormalizeURL(u)
		if !IsValidRelayURL(nm) {
			m.logger.Warn().Str("relay", u).Msg("skipping invalid relay url")
			continue
		}
		valid = AppendUnique(valid, nm)
	}
	m.supervisor.ConnectAll(valid)

	return nil
}

// SetFilter replaces the filter of the subscription, which starts a new dedup epoch.
func (m *Manager) SetFilter(filter Filter) error {
	if m.closed.Load() {
		return ErrSupervisorClosed
	}
	return m.registry.SetFilter(filter)
}

// Filter returns the current filter, if there is one.
func (m *Manager) Filter() (Filter, bool) { return m.registry.Filter() }

// Unsubscribe sends CLOSE to every connected relay but keeps the connections open.
func (m *Manager) Unsubscribe() { m.registry.Close() }

// Connect connects to a single relay and waits for it, see ConnectionSupervisor.Connect.
func (m *Manager) Connect(ctx context.Context, url string) error {
	return m.supervisor.Connect(ctx, NormalizeURL(url))
}

// Close tears down every connection and the subscription and stops delivering
// notifications. It is safe to call more than once.
func (m *Manager) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.dispatcher.SetCallback(nil)
	m.supervisor.CloseAll()
	m.registry.Reset()
}

// GetStatus returns the state of every relay the manager knows about.
func (m *Manager) GetStatus() map[string]ConnectionState {
	return m.supervisor.Statuses()
}
