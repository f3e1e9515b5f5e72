package nostr

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Socket is one physical connection to one relay.
type Socket interface {
	// Send writes a text frame, waiting until it is on the wire.
	Send(ctx context.Context, msg []byte) error

	// Close performs a clean close. It is safe to call more than once.
	Close() error

	// Done is closed once the connection is gone, for whatever reason.
	Done() <-chan struct{}

	// Err is nil when the connection was closed cleanly (by us or with a close
	// frame from the relay), otherwise it holds what broke it. Only valid after Done.
	Err() error
}

// DialFunc opens a Socket to url. Every text frame received is passed to handleFrame,
// in arrival order, from a single goroutine.
type DialFunc func(ctx context.Context, url string, handleFrame func(string)) (Socket, error)

// SocketOptions configures DialRelay.
type SocketOptions struct {
	// RequestHeader sets the HTTP request header of the websocket preflight request
	RequestHeader http.Header

	TLSConfig *tls.Config

	// DialTimeout is applied when ctx has no deadline of its own. Defaults to 7 seconds.
	DialTimeout time.Duration

	// PingInterval defaults to 29 seconds.
	PingInterval time.Duration

	Logger *zerolog.Logger
}

// Dialer returns a DialFunc that opens RelaySockets with these options.
func (opts SocketOptions) Dialer() DialFunc {
	return func(ctx context.Context, url string, handleFrame func(string)) (Socket, error) {
		s, err := DialRelay(ctx, url, opts, handleFrame)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// RelaySocket is a websocket connection to a Nostr relay.
type RelaySocket struct {
	URL string

	conn         *ws.Conn
	cancel       context.CancelCauseFunc
	writeQueue   chan writeRequest
	closed       atomic.Bool
	closedNotify chan struct{}
	err          error
	logger       *zerolog.Logger
}

var _ Socket = (*RelaySocket)(nil)

type writeRequest struct {
	msg    []byte
	answer chan error
}

// DialRelay connects to url. The connection lives until Close is called, ctx is
// canceled, or the transport breaks.
func DialRelay(ctx context.Context, url string, opts SocketOptions, handleFrame func(string)) (*RelaySocket, error) {
	logger := loggerOr(opts.Logger)
	logger.Debug().Str("relay", url).Msg("connecting")

	dialCtx := ctx
	if _, ok := dialCtx.Deadline(); !ok {
		timeout := opts.DialTimeout
		if timeout <= 0 {
			timeout = 7 * time.Second
		}
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeoutCause(ctx, timeout, errors.New("connection took too long"))
		defer cancel()
	}

	dialOpts := &ws.DialOptions{HTTPHeader: opts.RequestHeader}
	if opts.TLSConfig != nil {
		dialOpts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: opts.TLSConfig},
		}
	}

	c, _, err := ws.Dial(dialCtx, url, dialOpts)
	if err != nil {
		if cause := context.Cause(dialCtx); cause != nil && dialCtx.Err() != nil {
			return nil, fmt.Errorf("error opening websocket to '%s': %w", url, cause)
		}
		return nil, fmt.Errorf("error opening websocket to '%s': %w", url, err)
	}
	c.SetReadLimit(2 << 24) // 33MB

	ctx, cancel := context.WithCancelCause(ctx)
	s := &RelaySocket{
		URL:          url,
		conn:         c,
		cancel:       cancel,
		writeQueue:   make(chan writeRequest),
		closedNotify: make(chan struct{}),
		logger:       logger,
	}

	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = 29 * time.Second
	}

	go s.writeLoop(ctx, pingInterval)
	go s.readLoop(ctx, handleFrame)

	return s, nil
}

func (s *RelaySocket) writeLoop(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.doClose(nil)
			return
		case <-s.closedNotify:
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("ping took too long"))
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.doClose(fmt.Errorf("ping failed: %w", err))
				return
			}
		case wr := <-s.writeQueue:
			s.logger.Trace().Str("relay", s.URL).Bytes("frame", wr.msg).Msg("sending")
			wctx, cancel := context.WithTimeoutCause(ctx, 10*time.Second, errors.New("write took too long"))
			err := s.conn.Write(wctx, ws.MessageText, wr.msg)
			cancel()
			wr.answer <- err
			if err != nil {
				s.doClose(fmt.Errorf("write failed: %w", err))
				return
			}
		}
	}
}

func (s *RelaySocket) readLoop(ctx context.Context, handleFrame func(string)) {
	buf := new(bytes.Buffer)

	for {
		buf.Reset()

		_, reader, err := s.conn.Reader(ctx)
		if err == nil {
			_, err = io.Copy(buf, reader)
		}
		if err != nil {
			if s.closed.Load() {
				return
			}
			if ctx.Err() != nil || ws.CloseStatus(err) != -1 {
				// we closed it or the relay sent a close frame
				s.doClose(nil)
			} else {
				s.doClose(fmt.Errorf("read failed: %w", err))
			}
			return
		}

		s.logger.Trace().Str("relay", s.URL).Str("frame", buf.String()).Msg("received")
		handleFrame(buf.String())
	}
}

func (s *RelaySocket) doClose(cause error) {
	if s.closed.Swap(true) {
		return
	}

	s.err = cause
	close(s.closedNotify)

	if cause == nil {
		s.logger.Debug().Str("relay", s.URL).Msg("closing")
		s.conn.Close(ws.StatusNormalClosure, "")
		s.cancel(errors.New("socket closed"))
	} else {
		s.logger.Debug().Err(cause).Str("relay", s.URL).Msg("connection broken")
		s.cancel(cause)
		s.conn.CloseNow()
	}
}

// Send implements Socket.
func (s *RelaySocket) Send(ctx context.Context, msg []byte) error {
	answer := make(chan error, 1)

	select {
	case s.writeQueue <- writeRequest{msg: msg, answer: answer}:
	case <-s.closedNotify:
		return ErrNotConnected
	case <-ctx.Done():
		return context.Cause(ctx)
	}

	select {
	case err := <-answer:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Close implements Socket.
func (s *RelaySocket) Close() error {
	s.doClose(nil)
	return nil
}

// Done implements Socket.
func (s *RelaySocket) Done() <-chan struct{} { return s.closedNotify }

// Err implements Socket.
func (s *RelaySocket) Err() error {
	select {
	case <-s.closedNotify:
		return s.err
	default:
		return nil
	}
}
