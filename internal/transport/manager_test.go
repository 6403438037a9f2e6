package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/slotchat/internal/config"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func waitState(t *testing.T, m *Manager, want State) Status {
	t.Helper()
	require.Eventually(t, func() bool { return m.Status().State == want }, waitFor, tick,
		"want state %s, have %s", want, m.Status().State)
	return m.Status()
}

func connected(t *testing.T) (*Manager, *fakeDialer, *fakeClock) {
	t.Helper()
	m, d, c := testManager(testTransportConfig())
	m.Connect()
	waitState(t, m, Connected)
	return m, d, c
}

func TestNewStartsDisconnected(t *testing.T) {
	m, d, _ := testManager(testTransportConfig())
	st := m.Status()
	assert.Equal(t, Disconnected, st.State)
	assert.Zero(t, st.Delay)
	assert.Equal(t, 0, d.dialCount())
}

func TestConnect(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()
	assert.Equal(t, 1, d.dialCount())
	assert.NoError(t, m.Status().LastError)
}

func TestConnectIdempotent(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()

	m.Connect()
	m.Connect()
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, Connected, m.Status().State)
}

func TestSendWhileDisconnected(t *testing.T) {
	m, d, _ := testManager(testTransportConfig())

	err := m.Send([]byte(`{"type":"chat"}`))
	var nce *NotConnectedError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, Disconnected, nce.State)
	assert.Equal(t, 0, d.dialCount())
}

func TestSendWhileReconnecting(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()
	conn := d.last()
	conn.drop()
	waitState(t, m, Reconnecting)

	err := m.Send([]byte("x"))
	var nce *NotConnectedError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, Reconnecting, nce.State)
	assert.Empty(t, conn.writes())
}

func TestSendWrites(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()

	require.NoError(t, m.Send([]byte("hello")))
	assert.Equal(t, [][]byte{[]byte("hello")}, d.last().writes())
}

func TestSendWriteFailureReconnects(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()

	conn := d.last()
	conn.mu.Lock()
	conn.writeErr = errors.New("broken pipe")
	conn.mu.Unlock()

	err := m.Send([]byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")

	st := waitState(t, m, Reconnecting)
	assert.Equal(t, time.Second, st.Delay)
	assert.True(t, conn.isClosed())
}

func TestOnMessageDeliversInOrder(t *testing.T) {
	m, d, _ := testManager(testTransportConfig())

	var mu sync.Mutex
	var got []string
	m.OnMessage(func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})
	m.Connect()
	waitState(t, m, Connected)
	defer m.Disconnect()

	conn := d.last()
	conn.deliver("a")
	conn.deliver("b")
	conn.deliver("c")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, waitFor, tick)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestReconnectDelaysGrow(t *testing.T) {
	m, d, c := connected(t)
	defer m.Disconnect()

	d.setFail(errors.New("refused"))
	d.last().drop()

	st := waitState(t, m, Reconnecting)
	assert.Equal(t, 1000*time.Millisecond, st.Delay)
	assert.Equal(t, 1, st.Attempt)

	for i, want := range []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond} {
		require.True(t, c.fire())
		require.Eventually(t, func() bool {
			s := m.Status()
			return s.State == Reconnecting && s.Delay == want
		}, waitFor, tick, "retry %d", i+1)
		assert.Equal(t, i+2, m.Status().Attempt)
		assert.EqualError(t, m.Status().LastError, "refused")
	}

	// Next attempt succeeds and resets the backoff.
	d.setFail(nil)
	require.True(t, c.fire())
	st = waitState(t, m, Connected)
	assert.Equal(t, 0, st.Attempt)
	assert.Zero(t, st.Delay)

	d.last().drop()
	st = waitState(t, m, Reconnecting)
	assert.Equal(t, 1000*time.Millisecond, st.Delay)
}

func TestStateObserversSeeTransitions(t *testing.T) {
	m, d, c := testManager(testTransportConfig())

	var mu sync.Mutex
	var states []State
	m.OnStateChange(func(s Status) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	m.Connect()
	waitState(t, m, Connected)
	d.last().drop()
	waitState(t, m, Reconnecting)
	require.True(t, c.fire())
	waitState(t, m, Connected)
	m.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected, Reconnecting, Connecting, Connected, Disconnected}, states)
}

func TestGivesUpAfterCap(t *testing.T) {
	cfg := testTransportConfig()
	cfg.Backoff = config.BackoffConfig{InitialMs: 100, Factor: 2, MaxMs: 400}
	m, d, c := testManager(cfg)
	defer m.Disconnect()

	d.setFail(errors.New("refused"))
	m.Connect()

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, delay := range want {
		require.Eventually(t, func() bool {
			s := m.Status()
			return s.State == Reconnecting && s.Delay == delay
		}, waitFor, tick, "delay %d", i)
		require.True(t, c.fire())
	}

	st := waitState(t, m, GivenUp)
	assert.EqualError(t, st.LastError, "refused")

	select {
	case err := <-m.Errors():
		assert.ErrorIs(t, err, ErrGivenUp)
		assert.Contains(t, err.Error(), "refused")
	case <-time.After(waitFor):
		t.Fatal("expected ErrGivenUp")
	}

	// No further retries are scheduled.
	assert.Empty(t, c.pending())
	dials := d.dialCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, dials, d.dialCount())

	// Manual connect restarts from the initial delay.
	m.Connect()
	require.Eventually(t, func() bool {
		s := m.Status()
		return s.State == Reconnecting && s.Delay == 100*time.Millisecond
	}, waitFor, tick)
}

func TestRetriesForeverWhenGiveUpDisabled(t *testing.T) {
	cfg := testTransportConfig()
	off := false
	cfg.Backoff = config.BackoffConfig{InitialMs: 100, Factor: 2, MaxMs: 200, GiveUp: &off}
	m, d, c := testManager(cfg)
	defer m.Disconnect()

	d.setFail(errors.New("refused"))
	m.Connect()

	for i := 0; i < 5; i++ {
		waitState(t, m, Reconnecting)
		require.True(t, c.fire())
	}
	st := waitState(t, m, Reconnecting)
	assert.Equal(t, 200*time.Millisecond, st.Delay)
}

func TestConnectWhileReconnectingDialsNow(t *testing.T) {
	m, d, c := connected(t)
	defer m.Disconnect()

	d.last().drop()
	waitState(t, m, Reconnecting)
	require.Len(t, c.pending(), 1)

	m.Connect()
	waitState(t, m, Connected)
	assert.Empty(t, c.pending())
	assert.Equal(t, 2, d.dialCount())
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	m, d, c := connected(t)

	d.last().drop()
	waitState(t, m, Reconnecting)
	require.Len(t, c.pending(), 1)

	m.Disconnect()
	assert.Equal(t, Disconnected, m.Status().State)
	assert.Empty(t, c.pending())

	dials := d.dialCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, dials, d.dialCount())
	assert.Equal(t, Disconnected, m.Status().State)
}

func TestDisconnectStopsDelivery(t *testing.T) {
	m, d, _ := testManager(testTransportConfig())

	var mu sync.Mutex
	var got []string
	m.OnMessage(func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})
	m.Connect()
	waitState(t, m, Connected)

	conn := d.last()
	m.Disconnect()
	assert.True(t, conn.isClosed())

	select {
	case conn.inbound <- []byte("late"):
	default:
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestDisconnectWhenIdle(t *testing.T) {
	m, _, _ := testManager(testTransportConfig())
	assert.NotPanics(t, m.Disconnect)
	assert.Equal(t, Disconnected, m.Status().State)
}

func TestStaleConnectionCloseIgnored(t *testing.T) {
	m, d, _ := connected(t)
	defer m.Disconnect()

	old := d.last()
	old.drop()
	waitState(t, m, Reconnecting)

	m.Connect()
	waitState(t, m, Connected)
	fresh := d.last()
	require.NotSame(t, old, fresh)

	// A second failure report from the old connection changes nothing.
	m.handleClose(1, errors.New("late close"))
	assert.Equal(t, Connected, m.Status().State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "reconnecting", Reconnecting.String())
	assert.Equal(t, "given_up", GivenUp.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestNotConnectedErrorMessage(t *testing.T) {
	err := &NotConnectedError{State: GivenUp}
	assert.Equal(t, "transport: not connected (given_up)", err.Error())
}
