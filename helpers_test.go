package nostr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func makeKeyPair(t *testing.T) (priv [32]byte, pub PubKey) {
	t.Helper()

	privkey := GeneratePrivateKey()
	pubkey := GetPublicKey(privkey)

	return privkey, pubkey
}

func makeEvent(t *testing.T, kind Kind, content string) Event {
	t.Helper()

	priv, _ := makeKeyPair(t)
	evt := Event{
		Kind:      kind,
		Content:   content,
		CreatedAt: Timestamp(1672068534),
		Tags:      Tags{{"t", "test"}},
	}
	require.NoError(t, evt.Sign(priv))
	return evt
}

func eventFrame(t *testing.T, subID string, evt Event) string {
	t.Helper()

	j, err := EventEnvelope{SubscriptionID: &subID, Event: evt}.MarshalJSON()
	require.NoError(t, err)
	return string(j)
}

func newWebsocketServer(handler func(*websocket.Conn)) *httptest.Server {
	return httptest.NewServer(&websocket.Server{
		Handshake: anyOriginHandshake,
		Handler:   handler,
	})
}

// anyOriginHandshake is an alternative to default in golang.org/x/net/websocket
// which checks for origin. nostr client sends no origin and it makes no difference
// for the tests here anyway.
var anyOriginHandshake = func(conf *websocket.Config, r *http.Request) error {
	return nil
}

var errConnectionReset = errors.New("connection reset by peer")

// fakeSocket is an in-memory Socket that records what is written to it.
type fakeSocket struct {
	url     string
	deliver func(string)

	mu   sync.Mutex
	sent []string
	once sync.Once
	done chan struct{}
	err  error
}

func (f *fakeSocket) Send(ctx context.Context, msg []byte) error {
	select {
	case <-f.done:
		return ErrNotConnected
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, string(msg))
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) Close() error {
	f.finish(nil)
	return nil
}

func (f *fakeSocket) Done() <-chan struct{} { return f.done }

func (f *fakeSocket) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSocket) finish(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// drop simulates the transport breaking without a close handshake.
func (f *fakeSocket) drop() { f.finish(errConnectionReset) }

func (f *fakeSocket) receive(frame string) { f.deliver(frame) }

func (f *fakeSocket) frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

// fakeNet hands out fakeSockets and can be told to refuse or hold dials.
type fakeNet struct {
	mu      sync.Mutex
	dials   map[string]int
	sockets map[string][]*fakeSocket
	refuse  map[string]int // remaining refusals, negative means forever
	gate    chan struct{}

	// dropAfter breaks every socket to a url this long after it connects.
	dropAfter map[string]time.Duration
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		dials:     make(map[string]int),
		sockets:   make(map[string][]*fakeSocket),
		refuse:    make(map[string]int),
		dropAfter: make(map[string]time.Duration),
	}
}

func (n *fakeNet) dial(ctx context.Context, url string, handleFrame func(string)) (Socket, error) {
	n.mu.Lock()
	n.dials[url]++
	gate := n.gate
	n.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if r := n.refuse[url]; r != 0 {
		if r > 0 {
			n.refuse[url] = r - 1
		}
		return nil, errors.New("connection refused")
	}

	s := &fakeSocket{url: url, deliver: handleFrame, done: make(chan struct{})}
	n.sockets[url] = append(n.sockets[url], s)
	if d, ok := n.dropAfter[url]; ok {
		time.AfterFunc(d, s.drop)
	}
	return s, nil
}

func (n *fakeNet) dialCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials[url]
}

func (n *fakeNet) socketCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sockets[url])
}

func (n *fakeNet) latest(url string) *fakeSocket {
	n.mu.Lock()
	defer n.mu.Unlock()
	if s := n.sockets[url]; len(s) > 0 {
		return s[len(s)-1]
	}
	return nil
}

// recorder collects every notification a callback receives.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) callback(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) events() []RelayEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evts []RelayEvent
	for _, n := range r.notes {
		if n.Event != nil {
			evts = append(evts, *n.Event)
		}
	}
	return evts
}

func (r *recorder) states(url string) []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var states []ConnectionState
	for _, n := range r.notes {
		if n.Status != nil && n.Status.URL == url {
			states = append(states, n.Status.State)
		}
	}
	return states
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}
