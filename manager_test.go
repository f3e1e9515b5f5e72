package nostr

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(n *fakeNet, maxRetries int) *Manager {
	return NewManager(ManagerOptions{
		MaxRetries: maxRetries,
		RetryDelay: 10 * time.Millisecond,
		Dial:       n.dial,
	})
}

func waitStatus(t *testing.T, m *Manager, want map[string]ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := m.GetStatus()
		if len(got) != len(want) {
			return false
		}
		for url, state := range want {
			if got[url] != state {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond, "status never became %v, last %v", want, m.GetStatus())
}

func waitFrame(t *testing.T, s *fakeSocket, frame string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Contains(s.frames(), frame)
	}, time.Second, 5*time.Millisecond, "never sent %s, got %v", frame, s.frames())
}

func TestManagerDedupThenFilterChange(t *testing.T) {
	n := newFakeNet()
	rec := &recorder{}
	m := newTestManager(n, 2)
	defer m.Close()

	_, pk1 := makeKeyPair(t)
	err := m.Subscribe([]string{relayA, relayB}, Filter{
		Kinds:   []Kind{KindProfileMetadata},
		Authors: []PubKey{pk1},
	}, rec.callback)
	require.NoError(t, err)
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected, relayB: StateConnected})

	req := `["REQ","default-subscription",{"kinds":[0],"authors":["` + pk1.Hex() + `"]}]`
	waitFrame(t, n.latest(relayA), req)
	waitFrame(t, n.latest(relayB), req)

	e1 := makeEvent(t, KindProfileMetadata, `{"name":"someone"}`)
	n.latest(relayA).receive(eventFrame(t, DefaultSubscriptionID, e1))
	n.latest(relayB).receive(eventFrame(t, DefaultSubscriptionID, e1))
	require.Len(t, rec.events(), 1)
	require.Equal(t, e1.ID, rec.events()[0].ID)

	require.NoError(t, m.SetFilter(Filter{Kinds: []Kind{KindTextNote}}))
	waitFrame(t, n.latest(relayA), `["REQ","default-subscription",{"kinds":[1]}]`)

	n.latest(relayA).receive(eventFrame(t, DefaultSubscriptionID, e1))
	require.Len(t, rec.events(), 2)
	require.Equal(t, e1.ID, rec.events()[1].ID)
}

func TestManagerUnreachableRelay(t *testing.T) {
	n := newFakeNet()
	n.refuse[relayB] = -1
	rec := &recorder{}
	m := newTestManager(n, 2)
	defer m.Close()

	require.NoError(t, m.Subscribe([]string{relayA, relayB}, Filter{Kinds: []Kind{KindTextNote}}, rec.callback))
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected, relayB: StateFailed})

	evt := makeEvent(t, KindTextNote, "still here")
	n.latest(relayA).receive(eventFrame(t, DefaultSubscriptionID, evt))

	require.Len(t, rec.events(), 1)
	require.Equal(t, relayA, rec.events()[0].Relay)
	require.Equal(t, 3, n.dialCount(relayB))

	require.Equal(t, []ConnectionState{StateConnecting, StateConnected}, rec.states(relayA))
	require.Equal(t, []ConnectionState{
		StateConnecting, StateError, StateDisconnected,
		StateConnecting, StateError, StateDisconnected,
		StateConnecting, StateError, StateDisconnected,
		StateFailed,
	}, rec.states(relayB))

	// nothing more is scheduled for B, A keeps delivering
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, n.dialCount(relayB))
	later := makeEvent(t, KindTextNote, "later")
	n.latest(relayA).receive(eventFrame(t, DefaultSubscriptionID, later))
	require.Len(t, rec.events(), 2)
	require.Equal(t, map[string]ConnectionState{relayA: StateConnected, relayB: StateFailed}, m.GetStatus())
}

func TestManagerReconnectReplaysSubscription(t *testing.T) {
	n := newFakeNet()
	rec := &recorder{}
	m := newTestManager(n, 2)
	defer m.Close()

	require.NoError(t, m.Subscribe([]string{relayA}, Filter{Kinds: []Kind{KindTextNote}}, rec.callback))
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected})
	first := n.latest(relayA)
	waitFrame(t, first, `["REQ","default-subscription",{"kinds":[1]}]`)

	evt := makeEvent(t, KindTextNote, "hello")
	first.receive(eventFrame(t, DefaultSubscriptionID, evt))

	first.drop()
	require.Eventually(t, func() bool { return n.socketCount(relayA) == 2 }, time.Second, 5*time.Millisecond)
	second := n.latest(relayA)
	waitFrame(t, second, `["REQ","default-subscription",{"kinds":[1]}]`)

	// same epoch, the relay sending everything again changes nothing
	second.receive(eventFrame(t, DefaultSubscriptionID, evt))
	require.Len(t, rec.events(), 1)

	require.Eventually(t, func() bool { return len(rec.states(relayA)) == 5 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []ConnectionState{
		StateConnecting, StateConnected, StateDisconnected, StateConnecting, StateConnected,
	}, rec.states(relayA))
}

func TestManagerClose(t *testing.T) {
	n := newFakeNet()
	rec := &recorder{}
	m := newTestManager(n, 2)

	require.NoError(t, m.Subscribe([]string{relayA, relayB}, Filter{Kinds: []Kind{KindTextNote}}, rec.callback))
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected, relayB: StateConnected})
	a := n.latest(relayA)
	waitFrame(t, a, `["REQ","default-subscription",{"kinds":[1]}]`)

	m.Close()
	m.Close()

	closes := 0
	for _, frame := range a.frames() {
		if frame == `["CLOSE","default-subscription"]` {
			closes++
		}
	}
	require.Equal(t, 1, closes)
	require.Empty(t, m.GetStatus())

	notified := rec.count()
	a.receive(eventFrame(t, DefaultSubscriptionID, makeEvent(t, KindTextNote, "late")))
	require.Equal(t, notified, rec.count())

	require.ErrorIs(t, m.Subscribe([]string{relayA}, Filter{}, rec.callback), ErrSupervisorClosed)
	require.ErrorIs(t, m.SetFilter(Filter{}), ErrSupervisorClosed)
}

func TestManagerUnsubscribeKeepsConnections(t *testing.T) {
	n := newFakeNet()
	rec := &recorder{}
	m := newTestManager(n, 2)
	defer m.Close()

	require.NoError(t, m.Subscribe([]string{relayA}, Filter{Kinds: []Kind{KindTextNote}}, rec.callback))
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected})
	a := n.latest(relayA)
	waitFrame(t, a, `["REQ","default-subscription",{"kinds":[1]}]`)

	m.Unsubscribe()
	waitFrame(t, a, `["CLOSE","default-subscription"]`)
	_, ok := m.Filter()
	require.False(t, ok)

	a.receive(eventFrame(t, DefaultSubscriptionID, makeEvent(t, KindTextNote, "after")))
	require.Empty(t, rec.events())
	require.Equal(t, map[string]ConnectionState{relayA: StateConnected}, m.GetStatus())

	require.NoError(t, m.SetFilter(Filter{Kinds: []Kind{KindReaction}}))
	waitFrame(t, a, `["REQ","default-subscription",{"kinds":[7]}]`)
}

func TestManagerRejectsBadInput(t *testing.T) {
	n := newFakeNet()
	m := newTestManager(n, 2)
	defer m.Close()

	err := m.Subscribe([]string{relayA}, Filter{Limit: -1}, func(Notification) {})
	require.ErrorIs(t, err, ErrInvalidFilter)
	require.Error(t, m.Subscribe([]string{relayA}, Filter{}, nil))

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, n.dialCount(relayA))
	require.Empty(t, m.GetStatus())
}

func TestManagerNormalizesRelayURLs(t *testing.T) {
	n := newFakeNet()
	m := newTestManager(n, 2)
	defer m.Close()

	err := m.Subscribe([]string{"A.example.com/", "wss://a.example.com", "ftp://nope.example.com"}, Filter{}, func(Notification) {})
	require.NoError(t, err)

	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected})
	require.Equal(t, 1, n.dialCount(relayA))
}

func TestManagerCustomSubscriptionID(t *testing.T) {
	n := newFakeNet()
	rec := &recorder{}
	m := NewManager(ManagerOptions{SubscriptionID: "feed", Dial: n.dial})
	defer m.Close()

	require.NoError(t, m.Subscribe([]string{relayA}, Filter{}, rec.callback))
	waitStatus(t, m, map[string]ConnectionState{relayA: StateConnected})
	waitFrame(t, n.latest(relayA), `["REQ","feed",{}]`)

	evt := makeEvent(t, KindTextNote, "x")
	n.latest(relayA).receive(eventFrame(t, DefaultSubscriptionID, evt))
	require.Empty(t, rec.events())
	n.latest(relayA).receive(eventFrame(t, "feed", evt))
	require.Len(t, rec.events(), 1)
}
