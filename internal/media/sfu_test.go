package media

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// fakeSFUServer records control frames sent by the transport.
type fakeSFUServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	frames []sfuMessage
	conns  chan *websocket.Conn
}

func newFakeSFUServer(t *testing.T) *fakeSFUServer {
	t.Helper()
	fs := &fakeSFUServer{conns: make(chan *websocket.Conn, 4)}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg sfuMessage
			if json.Unmarshal(data, &msg) == nil {
				fs.mu.Lock()
				fs.frames = append(fs.frames, msg)
				fs.mu.Unlock()
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeSFUServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeSFUServer) types() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]string, len(fs.frames))
	for i, f := range fs.frames {
		out[i] = f.Type
	}
	return out
}

func (fs *fakeSFUServer) waitType(t *testing.T, want string) sfuMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fs.mu.Lock()
		for _, f := range fs.frames {
			if f.Type == want {
				fs.mu.Unlock()
				return f
			}
		}
		fs.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("frame %q never sent, got %v", want, fs.types())
	return sfuMessage{}
}

func newTestSFU(t *testing.T) *SFUTransport {
	t.Helper()
	local, err := NewLocalMedia("vp8", 1_200_000)
	require.NoError(t, err)
	return NewSFUTransport(local, SFUOptions{
		VideoCodec:   "vp9",
		MaxBitrate:   1_200_000,
		MaxFramerate: 30,
	})
}

func newBarePC(t *testing.T) *webrtc.PeerConnection {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc
}

func TestCandidateQueuedBeforeRemoteDescription(t *testing.T) {
	tr := newTestSFU(t)
	pc := newBarePC(t)
	tr.pc = pc

	payload, _ := json.Marshal(candidateData{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: "0"})
	tr.handleCandidate(payload)
	tr.handleCandidate(payload)

	tr.mu.Lock()
	queued := len(tr.pendingCandidates)
	tr.mu.Unlock()
	require.Equal(t, 2, queued, "candidates before remote description must be queued, not dropped")

	tr.flushCandidates(pc)
	tr.mu.Lock()
	require.Empty(t, tr.pendingCandidates)
	require.True(t, tr.remoteDescSet)
	tr.mu.Unlock()
}

func TestTracksAvailableSubscribesAll(t *testing.T) {
	fs := newFakeSFUServer(t)
	tr := newTestSFU(t)

	ws, _, err := websocket.DefaultDialer.Dial(fs.url(), nil)
	require.NoError(t, err)
	defer ws.Close()
	tr.ws = ws

	payload, _ := json.Marshal(map[string]availableTrack{
		"t1": {ClientID: "client-a", TrackID: "track-1"},
		"t2": {ClientID: "client-b", TrackID: "track-2"},
	})
	tr.handleTracksAvailable(payload)

	frame := fs.waitType(t, "subscribe_tracks")
	var subs []subscribeTrack
	require.NoError(t, json.Unmarshal(frame.Data, &subs))
	require.Len(t, subs, 2)
}

func TestRenegotiationGate(t *testing.T) {
	fs := newFakeSFUServer(t)
	tr := newTestSFU(t)

	ws, _, err := websocket.DefaultDialer.Dial(fs.url(), nil)
	require.NoError(t, err)
	defer ws.Close()
	tr.ws = ws
	tr.pc = newBarePC(t)
	tr.allowRenegotiation = false

	// Gate closed: the adapter asks for permission instead of offering.
	tr.negotiate()
	fs.waitType(t, "is_allow_renegotiation")
	for _, typ := range fs.types() {
		require.NotEqual(t, "offer", typ, "no offer while the gate is closed")
	}

	tr.handleAllowRenegotiation()
	fs.waitType(t, "offer")

	tr.mu.Lock()
	require.False(t, tr.allowRenegotiation, "offering closes the gate again")
	tr.mu.Unlock()
}

func TestSendWithoutChannelFails(t *testing.T) {
	tr := newTestSFU(t)
	require.Error(t, tr.send("offer", sdpData{Type: "offer", SDP: "v=0"}))
}

func TestDisconnectSafeWhenNeverConnected(t *testing.T) {
	tr := newTestSFU(t)
	tr.Disconnect()
	tr.Disconnect()
	require.Empty(t, tr.Participants())
}
