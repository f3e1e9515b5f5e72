package nostr

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu        sync.Mutex
	connected []string
	sent      map[string][]string
	broken    string
}

func (s *fakeSender) ConnectedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.connected)
}

func (s *fakeSender) Send(ctx context.Context, url string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == s.broken {
		return errors.New("broken pipe")
	}
	if s.sent == nil {
		s.sent = make(map[string][]string)
	}
	s.sent[url] = append(s.sent[url], string(frame))
	return nil
}

func (s *fakeSender) framesTo(url string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent[url])
}

type countingEpochs struct {
	resets        atomic.Int32
	deactivations atomic.Int32
}

func (e *countingEpochs) ResetEpoch() { e.resets.Add(1) }
func (e *countingEpochs) Deactivate() { e.deactivations.Add(1) }

func TestSetFilterSendsToConnectedRelays(t *testing.T) {
	sender := &fakeSender{connected: []string{relayA, relayB}}
	epochs := &countingEpochs{}
	r := NewSubscriptionRegistry("sub", sender, epochs, nil)

	require.NoError(t, r.SetFilter(Filter{Kinds: []Kind{KindProfileMetadata}, Limit: 10}))

	req := `["REQ","sub",{"kinds":[0],"limit":10}]`
	require.Equal(t, []string{req}, sender.framesTo(relayA))
	require.Equal(t, []string{req}, sender.framesTo(relayB))
	require.Equal(t, int32(1), epochs.resets.Load())

	f, ok := r.Filter()
	require.True(t, ok)
	require.True(t, FilterEqual(Filter{Kinds: []Kind{KindProfileMetadata}, Limit: 10}, f))
}

func TestSetFilterRejectsInvalidFilter(t *testing.T) {
	sender := &fakeSender{connected: []string{relayA}}
	epochs := &countingEpochs{}
	r := NewSubscriptionRegistry("sub", sender, epochs, nil)

	require.NoError(t, r.SetFilter(Filter{Kinds: []Kind{KindTextNote}}))

	err := r.SetFilter(Filter{Since: 200, Until: 100})
	require.ErrorIs(t, err, ErrInvalidFilter)
	err = r.SetFilter(Filter{Tags: TagMap{"foo": {"bar"}}})
	require.ErrorIs(t, err, ErrInvalidFilter)

	require.Len(t, sender.framesTo(relayA), 1)
	require.Equal(t, int32(1), epochs.resets.Load())
	f, _ := r.Filter()
	require.Equal(t, []Kind{KindTextNote}, f.Kinds)
}

func TestReplayOnConnect(t *testing.T) {
	sender := &fakeSender{}
	r := NewSubscriptionRegistry("sub", sender, &countingEpochs{}, nil)

	// nothing to replay yet
	r.OnEndpointConnected(relayA)
	require.Empty(t, sender.framesTo(relayA))

	require.NoError(t, r.SetFilter(Filter{Kinds: []Kind{KindTextNote}}))
	r.OnEndpointConnected(relayA)

	require.Equal(t, []string{`["REQ","sub",{"kinds":[1]}]`}, sender.framesTo(relayA))
	require.Empty(t, sender.framesTo(relayB))
}

func TestRegistryCloseAndReset(t *testing.T) {
	sender := &fakeSender{connected: []string{relayA}}
	epochs := &countingEpochs{}
	r := NewSubscriptionRegistry("sub", sender, epochs, nil)

	// closing with nothing set writes nothing
	r.Close()
	require.Empty(t, sender.framesTo(relayA))

	require.NoError(t, r.SetFilter(Filter{Kinds: []Kind{KindTextNote}}))
	r.Close()
	r.Close()

	require.Equal(t, []string{`["REQ","sub",{"kinds":[1]}]`, `["CLOSE","sub"]`}, sender.framesTo(relayA))
	require.Equal(t, int32(1), epochs.deactivations.Load())
	_, ok := r.Filter()
	require.False(t, ok)

	r.OnEndpointConnected(relayA)
	require.Len(t, sender.framesTo(relayA), 2)

	require.NoError(t, r.SetFilter(Filter{Kinds: []Kind{KindTextNote}}))
	r.Reset()
	require.Len(t, sender.framesTo(relayA), 3)
	_, ok = r.Filter()
	require.False(t, ok)
}

func TestBrokenRelayDoesNotBlockOthers(t *testing.T) {
	sender := &fakeSender{connected: []string{relayA, relayB}, broken: relayA}
	r := NewSubscriptionRegistry("sub", sender, &countingEpochs{}, nil)

	require.NoError(t, r.SetFilter(Filter{}))
	require.Empty(t, sender.framesTo(relayA))
	require.Equal(t, []string{`["REQ","sub",{}]`}, sender.framesTo(relayB))
}
