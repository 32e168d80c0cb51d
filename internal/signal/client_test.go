package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"wirechat/client/internal/domain"
)

// testServer accepts websocket connections and records every frame per
// connection, handing each accepted connection to the test.
type testServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames [][]string
	accept chan int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{accept: make(chan int, 8)}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.mu.Lock()
		idx := len(ts.conns)
		ts.conns = append(ts.conns, conn)
		ts.frames = append(ts.frames, nil)
		ts.mu.Unlock()
		ts.accept <- idx
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.mu.Lock()
			ts.frames[idx] = append(ts.frames[idx], string(data))
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) waitConn(t *testing.T) int {
	t.Helper()
	select {
	case idx := <-ts.accept:
		return idx
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return -1
	}
}

func (ts *testServer) framesOf(idx int) []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]string, len(ts.frames[idx]))
	copy(out, ts.frames[idx])
	return out
}

func (ts *testServer) conn(idx int) *websocket.Conn {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.conns[idx]
}

func (ts *testServer) send(t *testing.T, idx int, frame string) {
	t.Helper()
	require.NoError(t, ts.conn(idx).WriteMessage(websocket.TextMessage, []byte(frame)))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestClient(ts *testServer) *Client {
	return NewClient(Options{
		URL:            ts.url(),
		Token:          "tok-1",
		Username:       "alice",
		ReconnectDelay: 10 * time.Millisecond,
	})
}

func TestConnectSendsHelloFirst(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)
	c.Connect()
	defer c.Disconnect()

	idx := ts.waitConn(t)
	waitFor(t, func() bool { return len(ts.framesOf(idx)) >= 1 }, "no hello frame")

	var first struct {
		Type string           `json:"type"`
		Data domain.HelloData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(ts.framesOf(idx)[0]), &first))
	require.Equal(t, domain.TypeHello, first.Type)
	require.Equal(t, domain.ProtocolVersion, first.Data.Protocol)
	require.Equal(t, "tok-1", first.Data.Token)
	require.Equal(t, "alice", first.Data.User)

	waitFor(t, func() bool { return c.State() == StateConnected }, "never reached connected")
}

func TestRoomReplayAfterReconnect(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)
	c.Connect()
	defer c.Disconnect()

	idx := ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")
	c.JoinRoom("room-A")
	waitFor(t, func() bool { return len(ts.framesOf(idx)) >= 2 }, "join not transmitted")

	// Abnormal close from the server side triggers a reconnect.
	require.NoError(t, ts.conn(idx).Close())

	idx2 := ts.waitConn(t)
	waitFor(t, func() bool { return len(ts.framesOf(idx2)) >= 2 }, "hello+replay not seen")

	frames := ts.framesOf(idx2)
	joins := 0
	for i, raw := range frames {
		var f struct {
			Type string          `json:"type"`
			Data domain.JoinData `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &f))
		if i == 0 {
			require.Equal(t, domain.TypeHello, f.Type)
			continue
		}
		if f.Type == domain.TypeJoin {
			joins++
			require.Equal(t, "room-A", f.Data.Room)
		}
	}
	require.Equal(t, 1, joins, "room must be replayed exactly once")
}

func TestIntentionalDisconnectDoesNotReconnect(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)
	c.Connect()
	ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	c.JoinRoom("room-A")
	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())
	require.Empty(t, c.JoinedRooms())

	// No new connection may appear after an intentional close.
	select {
	case <-ts.accept:
		t.Fatal("unexpected reconnect after intentional disconnect")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBackoffDelayDoubles(t *testing.T) {
	base := time.Second
	require.Equal(t, 1*time.Second, BackoffDelay(base, 1))
	require.Equal(t, 2*time.Second, BackoffDelay(base, 2))
	require.Equal(t, 4*time.Second, BackoffDelay(base, 3))
	require.Equal(t, 8*time.Second, BackoffDelay(base, 4))
	require.Equal(t, 16*time.Second, BackoffDelay(base, 5))
	require.Equal(t, 1*time.Second, BackoffDelay(base, 0))
}

func TestReconnectCapEntersErrorState(t *testing.T) {
	c := NewClient(Options{
		URL:                  "ws://127.0.0.1:1", // nothing listens here
		Token:                "tok-1",
		Username:             "alice",
		MaxReconnectAttempts: 2,
		ReconnectDelay:       time.Millisecond,
	})

	var mu sync.Mutex
	var gotErr *domain.ProtocolError
	attempts := 0
	c.OnProtocolError(func(perr domain.ProtocolError) {
		mu.Lock()
		gotErr = &perr
		mu.Unlock()
	})
	c.OnReconnecting(func(int) {
		mu.Lock()
		attempts++
		mu.Unlock()
	})

	c.Connect()
	waitFor(t, func() bool { return c.State() == StateError }, "never reached error state")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, attempts)
	require.NotNil(t, gotErr)
	require.Equal(t, "reconnect_failed", gotErr.Code)
}

func TestEventDispatchAndUnknownEvent(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)
	c.Connect()
	defer c.Disconnect()

	idx := ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	var mu sync.Mutex
	var got []domain.ChatMessage
	cancel := c.On(domain.EventMessage, func(data json.RawMessage) {
		var m domain.ChatMessage
		require.NoError(t, json.Unmarshal(data, &m))
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	// Unknown events and malformed frames are dropped without killing the loop.
	ts.send(t, idx, `{"type":"event","event":"totally_new_event","data":{}}`)
	ts.send(t, idx, `{not json`)
	ts.send(t, idx, `{"type":"event","event":"message","data":{"id":7,"room":"general","user":"bob","text":"hi","ts":1}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "message event not dispatched")

	mu.Lock()
	require.Equal(t, int64(7), got[0].ID)
	require.Equal(t, "bob", got[0].User)
	mu.Unlock()

	cancel()
	ts.send(t, idx, `{"type":"event","event":"message","data":{"id":8,"room":"general","user":"bob","text":"bye","ts":2}}`)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.Len(t, got, 1, "cancelled subscription must not fire")
	mu.Unlock()
}

func TestProtocolErrorFrameDispatch(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)
	c.Connect()
	defer c.Disconnect()

	idx := ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	errs := make(chan domain.ProtocolError, 1)
	c.OnProtocolError(func(perr domain.ProtocolError) { errs <- perr })

	ts.send(t, idx, `{"type":"error","error":{"code":"bad_token","msg":"token expired"}}`)

	select {
	case perr := <-errs:
		require.Equal(t, "bad_token", perr.Code)
		require.Equal(t, "token expired", perr.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("error frame not dispatched")
	}
}

func TestSendWhileDisconnectedFails(t *testing.T) {
	c := NewClient(Options{URL: "ws://127.0.0.1:1", Token: "t", Username: "u"})
	require.Error(t, c.SendChat("general", "hello"))
	require.Error(t, c.AcceptCall("call-1"))
}

func TestConnectDuringBackoffCancelsStaleTimer(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(Options{
		URL:            ts.url(),
		Token:          "tok-1",
		Username:       "alice",
		ReconnectDelay: 300 * time.Millisecond,
	})
	c.Connect()
	defer c.Disconnect()

	idx := ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	// Abnormal close starts the backoff timer.
	require.NoError(t, ts.conn(idx).Close())
	waitFor(t, func() bool { return c.State() == StateReconnecting }, "never entered reconnecting")

	// An explicit Connect inside the backoff window takes over.
	c.Connect()
	ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "explicit connect failed")

	// The cancelled timer must not open a second connection when it would
	// have fired.
	select {
	case <-ts.accept:
		t.Fatal("stale backoff timer dialed a duplicate connection")
	case <-time.After(600 * time.Millisecond):
	}
	require.Equal(t, StateConnected, c.State())
}

func TestStateChangesDeliveredInOrder(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(ts)

	var mu sync.Mutex
	var seen []State
	cancel := c.OnStateChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer cancel()

	c.Connect()
	ts.waitConn(t)
	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")
	c.Disconnect()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	}, "missing state notifications")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, seen[:3])
}
