package nostr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SupervisorOptions configures a ConnectionSupervisor.
type SupervisorOptions struct {
	// SubscriptionID is sent in the CLOSE frame written to every open endpoint on CloseAll.
	SubscriptionID string

	// MaxRetries is how many reconnections are attempted, counting every failed dial
	// and unclean close since the endpoint was connected to, before it is marked failed.
	// A successful dial does not refill the budget, a clean close does. Zero means 5,
	// negative means none.
	MaxRetries int

	// RetryDelay is the fixed wait between attempts. Defaults to 5 seconds.
	RetryDelay time.Duration

	// Dial opens sockets. Defaults to SocketOptions{}.Dialer().
	Dial DialFunc

	Logger *zerolog.Logger

	// HandleFrame receives every inbound frame along with the URL of the endpoint it came from.
	HandleFrame func(url string, frame string)

	// StateChanged is called after every state transition, from the endpoint's own goroutine.
	StateChanged func(url string, state ConnectionState)

	// Connected is called every time an endpoint enters the connected state, after StateChanged.
	Connected func(url string)
}

// ConnectionSupervisor keeps one endpoint record per relay URL and runs, for each of
// them, an independent connect / retry state machine.
type ConnectionSupervisor struct {
	opts      SupervisorOptions
	logger    *zerolog.Logger
	endpoints *MapOf[string, *endpoint]

	ctx    context.Context
	cancel context.CancelCauseFunc
	closed atomic.Bool
}

type endpoint struct {
	url string

	mu      sync.Mutex
	state   ConnectionState
	retries int
	socket  Socket
	attempt *attempt
	removed bool
	cancel  context.CancelCauseFunc
}

// attempt is a connection attempt shared by everybody calling Connect while it is in flight.
type attempt struct {
	done chan struct{}
	err  error
}

func newAttempt() *attempt { return &attempt{done: make(chan struct{})} }

func (a *attempt) resolve(err error) {
	a.err = err
	close(a.done)
}

var alreadyConnected = func() *attempt {
	a := newAttempt()
	a.resolve(nil)
	return a
}()

func NewConnectionSupervisor(opts SupervisorOptions) *ConnectionSupervisor {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = SocketOptions{Logger: opts.Logger}.Dialer()
	}
	if opts.HandleFrame == nil {
		opts.HandleFrame = func(string, string) {}
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &ConnectionSupervisor{
		opts:      opts,
		logger:    loggerOr(opts.Logger),
		endpoints: NewMapOf[string, *endpoint](),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect connects to url, or joins the attempt already in flight for it.
// It returns nil once the endpoint is connected, an error wrapping ErrRelayFailed if it
// ran out of retries, or the cause of ctx if that ends first. Leaving early does not
// stop the attempt.
func (s *ConnectionSupervisor) Connect(ctx context.Context, url string) error {
	a, err := s.start(url)
	if err != nil {
		return err
	}

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// ConnectAll starts connecting to every url and returns immediately.
func (s *ConnectionSupervisor) ConnectAll(urls []string) {
	for _, url := range urls {
		if _, err := s.start(url); err != nil {
			s.logger.Debug().Err(err).Str("relay", url).Msg("not connecting")
		}
	}
}

func (s *ConnectionSupervisor) start(url string) (*attempt, error) {
	for {
		if s.closed.Load() {
			return nil, ErrSupervisorClosed
		}

		ep, _ := s.endpoints.LoadOrCompute(url, func() *endpoint {
			return &endpoint{url: url, state: StateDisconnected}
		})

		ep.mu.Lock()
		if ep.removed {
			// lost a race with CloseAll, look again
			ep.mu.Unlock()
			continue
		}

		switch {
		case ep.attempt != nil:
			a := ep.attempt
			ep.mu.Unlock()
			return a, nil
		case ep.state == StateConnected:
			ep.mu.Unlock()
			return alreadyConnected, nil
		case ep.state == StateFailed:
			ep.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrRelayFailed, url)
		}

		a := newAttempt()
		ep.attempt = a
		ctx, cancel := context.WithCancelCause(s.ctx)
		ep.cancel = cancel
		ep.mu.Unlock()

		go s.run(ctx, cancel, ep)
		return a, nil
	}
}

// run is the endpoint's own goroutine. It is the only place where its state changes,
// apart from CloseAll taking the record away.
func (s *ConnectionSupervisor) run(ctx context.Context, cancel context.CancelCauseFunc, ep *endpoint) {
	defer cancel(nil)

	for {
		if !s.transition(ctx, ep, StateConnecting) {
			return
		}

		sock, err := s.opts.Dial(ctx, ep.url, func(frame string) {
			s.opts.HandleFrame(ep.url, frame)
		})
		if err != nil {
			s.logger.Info().Err(err).Str("relay", ep.url).Msg("connection failed")
			if !s.transition(ctx, ep, StateError) || !s.transition(ctx, ep, StateDisconnected) {
				return
			}
		} else {
			ep.mu.Lock()
			if ep.removed || ctx.Err() != nil {
				ep.mu.Unlock()
				sock.Close()
				return
			}
			ep.socket = sock
			ep.state = StateConnected
			a := ep.attempt
			ep.attempt = nil
			ep.mu.Unlock()

			a.resolve(nil)
			s.emit(ep.url, StateConnected)
			if s.opts.Connected != nil {
				s.opts.Connected(ep.url)
			}

			select {
			case <-sock.Done():
			case <-ctx.Done():
				// CloseAll owns the socket now
				return
			}

			sockErr := sock.Err()
			ep.mu.Lock()
			if ep.removed {
				ep.mu.Unlock()
				return
			}
			ep.socket = nil
			if sockErr != nil {
				ep.attempt = newAttempt()
			} else {
				// the next Connect starts a new retry budget
				ep.retries = 0
			}
			ep.mu.Unlock()

			if sockErr == nil {
				s.logger.Info().Str("relay", ep.url).Msg("connection closed")
				s.transition(ctx, ep, StateDisconnected)
				return
			}

			s.logger.Info().Err(sockErr).Str("relay", ep.url).Msg("connection lost")
			if !s.transition(ctx, ep, StateDisconnected) {
				return
			}
		}

		ep.mu.Lock()
		if ep.removed {
			ep.mu.Unlock()
			return
		}
		if ep.retries >= s.opts.MaxRetries {
			ep.state = StateFailed
			a := ep.attempt
			ep.attempt = nil
			ep.mu.Unlock()

			s.logger.Warn().Str("relay", ep.url).Int("retries", s.opts.MaxRetries).Msg("giving up on relay")
			s.emit(ep.url, StateFailed)
			if a != nil {
				a.resolve(fmt.Errorf("%w: %s", ErrRelayFailed, ep.url))
			}
			return
		}
		ep.retries++
		retry := ep.retries
		ep.mu.Unlock()

		s.logger.Debug().Str("relay", ep.url).Int("retry", retry).Dur("delay", s.opts.RetryDelay).Msg("scheduling retry")

		timer := time.NewTimer(s.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// transition records state and announces it, unless the endpoint was removed or
// its context canceled, in which case it returns false and the caller must stop.
func (s *ConnectionSupervisor) transition(ctx context.Context, ep *endpoint, state ConnectionState) bool {
	ep.mu.Lock()
	if ep.removed || ctx.Err() != nil {
		ep.mu.Unlock()
		return false
	}
	ep.state = state
	ep.mu.Unlock()

	s.emit(ep.url, state)
	return true
}

func (s *ConnectionSupervisor) emit(url string, state ConnectionState) {
	s.logger.Debug().Str("relay", url).Stringer("state", state).Msg("relay state")
	if s.opts.StateChanged != nil {
		s.opts.StateChanged(url, state)
	}
}

// CloseAll writes a CLOSE frame to every open endpoint and closes it, cancels pending
// retries and in-flight attempts, and forgets every endpoint. Nothing is announced
// afterwards. Calling it again does nothing.
func (s *ConnectionSupervisor) CloseAll() {
	if s.closed.Swap(true) {
		return
	}

	closeFrame, _ := CloseEnvelope(s.opts.SubscriptionID).MarshalJSON()

	var g errgroup.Group
	s.endpoints.Range(func(url string, ep *endpoint) bool {
		s.endpoints.Delete(url)

		ep.mu.Lock()
		ep.removed = true
		sock := ep.socket
		ep.socket = nil
		cancel := ep.cancel
		a := ep.attempt
		ep.attempt = nil
		ep.mu.Unlock()

		if a != nil {
			a.resolve(ErrSupervisorClosed)
		}

		if sock == nil {
			if cancel != nil {
				cancel(ErrSupervisorClosed)
			}
			return true
		}

		g.Go(func() error {
			ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
			defer done()

			if err := sock.Send(ctx, closeFrame); err != nil {
				s.logger.Debug().Err(err).Str("relay", url).Msg("failed to send CLOSE")
			}
			if err := sock.Close(); err != nil {
				s.logger.Debug().Err(err).Str("relay", url).Msg("failed to close")
			}
			cancel(ErrSupervisorClosed)
			return nil
		})
		return true
	})
	g.Wait()

	s.cancel(ErrSupervisorClosed)
}

// StatusOf returns the current state of url, disconnected if it is unknown.
func (s *ConnectionSupervisor) StatusOf(url string) ConnectionState {
	ep, ok := s.endpoints.Load(url)
	if !ok {
		return StateDisconnected
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.state
}

// Statuses returns a snapshot of every known endpoint's state.
func (s *ConnectionSupervisor) Statuses() map[string]ConnectionState {
	statuses := make(map[string]ConnectionState, s.endpoints.Size())
	s.endpoints.Range(func(url string, ep *endpoint) bool {
		ep.mu.Lock()
		statuses[url] = ep.state
		ep.mu.Unlock()
		return true
	})
	return statuses
}

// ConnectedURLs lists the endpoints that currently have an open transport.
func (s *ConnectionSupervisor) ConnectedURLs() []string {
	urls := make([]string, 0, s.endpoints.Size())
	s.endpoints.Range(func(url string, ep *endpoint) bool {
		ep.mu.Lock()
		if ep.state == StateConnected && ep.socket != nil {
			urls = append(urls, url)
		}
		ep.mu.Unlock()
		return true
	})
	return urls
}

// Send writes frame to the endpoint at url, failing with ErrNotConnected if it has no open transport.
func (s *ConnectionSupervisor) Send(ctx context.Context, url string, frame []byte) error {
	ep, ok := s.endpoints.Load(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, url)
	}

	ep.mu.Lock()
	sock := ep.socket
	ep.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, url)
	}

	return sock.Send(ctx, frame)
}
