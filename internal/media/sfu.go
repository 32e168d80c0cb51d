package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// SFUOptions tune the raw negotiation adapter.
type SFUOptions struct {
	// VideoCodec is the preferred receive codec: vp8, vp9 or h264.
	VideoCodec string
	// AudioRED prefers the redundancy codec over plain Opus.
	AudioRED bool
	// Simulcast publishes camera video in the three-layer layout.
	Simulcast bool
	// MaxBitrate is the top layer bitrate in bits per second.
	MaxBitrate uint64
	// MaxFramerate caps every published layer.
	MaxFramerate float64
	// TelemetryInterval is the bandwidth sampling period; 0 means 3s.
	TelemetryInterval time.Duration
	// Dialer overrides the control-channel dialer, mainly for tests.
	Dialer *websocket.Dialer
}

// sfuMessage is the control-channel frame, both directions.
type sfuMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sfuOutbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type joinRoomData struct {
	RoomID   string `json:"roomID"`
	RoomName string `json:"roomName"`
	Token    string `json:"token,omitempty"`
	Identity string `json:"identity,omitempty"`
}

type sdpData struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type candidateData struct {
	Candidate     string `json:"candidate"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	SDPMid        string `json:"sdpMid"`
}

type availableTrack struct {
	ClientID string `json:"client_id"`
	TrackID  string `json:"track_id"`
	Name     string `json:"name,omitempty"`
}

type subscribeTrack struct {
	ClientID string `json:"client_id"`
	TrackID  string `json:"track_id"`
}

// SFUTransport is the raw media adapter: it keeps one peer connection per
// call and negotiates directly with the selective forwarding unit over a
// websocket control channel.
type SFUTransport struct {
	log   *logrus.Entry
	local *LocalMedia
	opts  SFUOptions

	mu sync.Mutex
	cb Callbacks

	ws      *websocket.Conn
	writeMu sync.Mutex

	pc            *webrtc.PeerConnection
	micSender     *webrtc.RTPSender
	cameraSender  *webrtc.RTPSender
	screenSender  *webrtc.RTPSender
	remoteDescSet bool
	// Candidates that arrived before the remote description; applied on flush.
	pendingCandidates []webrtc.ICECandidateInit

	// Renegotiation is gated: after answering an offer the adapter may not
	// renegotiate until the backend explicitly allows it.
	allowRenegotiation bool
	negotiationPending bool

	clientID  string
	connected bool
	remotes   map[string]*remoteState
	monitor   *BandwidthMonitor
}

// NewSFUTransport creates the raw adapter over the given capture layer.
func NewSFUTransport(local *LocalMedia, opts SFUOptions) *SFUTransport {
	if opts.TelemetryInterval <= 0 {
		opts.TelemetryInterval = 3 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &SFUTransport{
		log:     logrus.WithField("component", "media.sfu"),
		local:   local,
		opts:    opts,
		remotes: make(map[string]*remoteState),
	}
}

func (t *SFUTransport) SetCallbacks(cb Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
}

func (t *SFUTransport) callbacks() Callbacks {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cb
}

// Connect dials the control channel, builds the peer connection and joins
// the media room. A live session is torn down first.
func (t *SFUTransport) Connect(ctx context.Context, creds Credentials) error {
	t.mu.Lock()
	if t.ws != nil || t.pc != nil {
		t.mu.Unlock()
		t.Disconnect()
		t.mu.Lock()
	}
	t.remotes = make(map[string]*remoteState)
	t.remoteDescSet = false
	t.pendingCandidates = nil
	t.allowRenegotiation = true
	t.negotiationPending = false
	t.connected = false
	t.mu.Unlock()

	pc, err := t.buildPeerConnection()
	if err != nil {
		return err
	}

	ws, _, err := t.opts.Dialer.DialContext(ctx, creds.URL, nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("dial media control channel: %w", err)
	}

	t.mu.Lock()
	t.pc = pc
	t.ws = ws
	t.monitor = NewBandwidthMonitor(pc, t.opts.TelemetryInterval, t.reportBandwidth)
	t.mu.Unlock()

	if err := t.send("join_room", joinRoomData{
		RoomID:   creds.RoomName,
		RoomName: creds.RoomName,
		Token:    creds.Token,
		Identity: creds.Identity,
	}); err != nil {
		t.Disconnect()
		return err
	}

	go t.readLoop(ws)

	// First offer goes out immediately; later renegotiations wait for the gate.
	t.negotiate()
	return nil
}

func (t *SFUTransport) buildPeerConnection() (*webrtc.PeerConnection, error) {
	me := &webrtc.MediaEngine{}

	// Registration order defines the SDP preference order, so the codec
	// tables are ordered before registering.
	for _, c := range OrderAudioCodecs(defaultAudioCodecs(), t.opts.AudioRED) {
		if err := me.RegisterCodec(c, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("register audio codec %s: %w", c.MimeType, err)
		}
	}
	for _, c := range OrderVideoCodecs(defaultVideoCodecs(), t.opts.VideoCodec) {
		if err := me.RegisterCodec(c, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("register video codec %s: %w", c.MimeType, err)
		}
	}
	t.local.Populate(me)

	reg := &interceptor.Registry{}
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	reg.Add(responder)
	if err := webrtc.RegisterDefaultInterceptors(me, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(reg),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		BundlePolicy: webrtc.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	// Receive-only transceivers so the first offer always carries m-lines.
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("add video transceiver: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			t.log.Debug("ICE gathering complete")
			return
		}
		init := c.ToJSON()
		if isLoopback(init.Candidate) {
			return
		}
		data := candidateData{Candidate: init.Candidate}
		if init.SDPMid != nil {
			data.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			data.SDPMLineIndex = *init.SDPMLineIndex
		}
		if err := t.send("candidate", data); err != nil {
			t.log.WithError(err).Warn("candidate send failed")
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		t.log.WithFields(logrus.Fields{
			"kind":   track.Kind().String(),
			"codec":  track.Codec().MimeType,
			"stream": track.StreamID(),
		}).Info("remote track")
		t.addRemoteTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.WithField("state", state.String()).Info("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateConnected:
			t.handleConnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			t.handlePeerClosed(state.String())
		}
	})

	pc.OnNegotiationNeeded(func() {
		t.negotiate()
	})

	return pc, nil
}

func (t *SFUTransport) handleConnected() {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = true
	monitor := t.monitor
	t.mu.Unlock()

	if monitor != nil {
		monitor.Start()
	}
	if fn := t.callbacks().OnConnected; fn != nil {
		fn()
	}
}

func (t *SFUTransport) handlePeerClosed(reason string) {
	t.mu.Lock()
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()
	if wasConnected {
		if fn := t.callbacks().OnDisconnected; fn != nil {
			fn("media connection " + reason)
		}
	}
}

func (t *SFUTransport) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.mu.Lock()
			current := t.ws == ws
			wasConnected := t.connected
			t.connected = false
			t.mu.Unlock()
			if current && wasConnected {
				if fn := t.callbacks().OnDisconnected; fn != nil {
					fn("media control channel closed")
				}
			}
			return
		}

		var msg sfuMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.WithError(err).Warn("dropping malformed control frame")
			continue
		}
		t.dispatch(msg)
	}
}

func (t *SFUTransport) dispatch(msg sfuMessage) {
	switch msg.Type {
	case "client_id":
		var id string
		if err := json.Unmarshal(msg.Data, &id); err == nil {
			t.mu.Lock()
			t.clientID = id
			t.mu.Unlock()
		}

	case "offer":
		t.handleOffer(msg.Data)

	case "answer":
		t.handleAnswer(msg.Data)

	case "candidate":
		t.handleCandidate(msg.Data)

	case "tracks_available":
		t.handleTracksAvailable(msg.Data)

	case "tracks_added":
		t.log.WithField("data", string(msg.Data)).Debug("tracks added")

	case "network_condition":
		t.log.WithField("condition", string(msg.Data)).Info("network condition")

	case "allow_renegotiation":
		t.handleAllowRenegotiation()

	case "error":
		var errMsg string
		_ = json.Unmarshal(msg.Data, &errMsg)
		if fn := t.callbacks().OnError; fn != nil {
			fn(fmt.Errorf("media backend: %s", errMsg))
		}

	default:
		t.log.WithField("type", msg.Type).Debug("ignoring unknown control message")
	}
}

// handleOffer answers a remote offer. Answering closes the renegotiation
// gate until the backend opens it again, which prevents offer glare.
func (t *SFUTransport) handleOffer(data json.RawMessage) {
	var offer sdpData
	if err := json.Unmarshal(data, &offer); err != nil {
		t.log.WithError(err).Warn("bad offer payload")
		return
	}

	t.mu.Lock()
	pc := t.pc
	t.allowRenegotiation = false
	t.mu.Unlock()
	if pc == nil {
		return
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		t.reportError(fmt.Errorf("set remote offer: %w", err))
		return
	}
	t.flushCandidates(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		t.reportError(fmt.Errorf("create answer: %w", err))
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		t.reportError(fmt.Errorf("set local answer: %w", err))
		return
	}
	if err := t.send("answer", sdpData{Type: "answer", SDP: answer.SDP}); err != nil {
		t.reportError(err)
	}
}

func (t *SFUTransport) handleAnswer(data json.RawMessage) {
	var answer sdpData
	if err := json.Unmarshal(data, &answer); err != nil {
		t.log.WithError(err).Warn("bad answer payload")
		return
	}

	t.mu.Lock()
	pc := t.pc
	t.mu.Unlock()
	if pc == nil {
		return
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	}); err != nil {
		t.reportError(fmt.Errorf("set remote answer: %w", err))
		return
	}
	t.flushCandidates(pc)
}

// handleCandidate applies a trickled candidate, queueing it when no remote
// description exists yet.
func (t *SFUTransport) handleCandidate(data json.RawMessage) {
	var cand candidateData
	if err := json.Unmarshal(data, &cand); err != nil {
		t.log.WithError(err).Warn("bad candidate payload")
		return
	}

	mid := cand.SDPMid
	idx := cand.SDPMLineIndex
	init := webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}

	t.mu.Lock()
	pc := t.pc
	if pc == nil {
		t.mu.Unlock()
		return
	}
	if !t.remoteDescSet {
		t.pendingCandidates = append(t.pendingCandidates, init)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	if err := pc.AddICECandidate(init); err != nil {
		t.log.WithError(err).Warn("add ice candidate failed")
	}
}

// flushCandidates marks the remote description as set and applies every
// queued candidate.
func (t *SFUTransport) flushCandidates(pc *webrtc.PeerConnection) {
	t.mu.Lock()
	t.remoteDescSet = true
	pending := t.pendingCandidates
	t.pendingCandidates = nil
	t.mu.Unlock()

	for _, init := range pending {
		if err := pc.AddICECandidate(init); err != nil {
			t.log.WithError(err).Warn("add queued ice candidate failed")
		}
	}
}

// handleTracksAvailable subscribes to every announced track.
func (t *SFUTransport) handleTracksAvailable(data json.RawMessage) {
	tracks := map[string]availableTrack{}
	if err := json.Unmarshal(data, &tracks); err != nil {
		t.log.WithError(err).Warn("bad tracks_available payload")
		return
	}

	subs := make([]subscribeTrack, 0, len(tracks))
	for _, tr := range tracks {
		subs = append(subs, subscribeTrack{ClientID: tr.ClientID, TrackID: tr.TrackID})
	}
	if len(subs) == 0 {
		return
	}
	if err := t.send("subscribe_tracks", subs); err != nil {
		t.log.WithError(err).Warn("subscribe_tracks send failed")
	}
}

func (t *SFUTransport) handleAllowRenegotiation() {
	t.mu.Lock()
	t.allowRenegotiation = true
	pending := t.negotiationPending
	t.negotiationPending = false
	t.mu.Unlock()
	if pending {
		t.negotiate()
	}
}

// negotiate sends a fresh offer when the gate is open; otherwise it asks the
// backend for permission and retries once allowed.
func (t *SFUTransport) negotiate() {
	t.mu.Lock()
	pc := t.pc
	if pc == nil {
		t.mu.Unlock()
		return
	}
	if !t.allowRenegotiation {
		t.negotiationPending = true
		t.mu.Unlock()
		if err := t.send("is_allow_renegotiation", nil); err != nil {
			t.log.WithError(err).Warn("renegotiation query failed")
		}
		return
	}
	t.allowRenegotiation = false
	t.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.reportError(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.reportError(fmt.Errorf("set local offer: %w", err))
		return
	}
	if err := t.send("offer", sdpData{Type: "offer", SDP: offer.SDP}); err != nil {
		t.reportError(err)
	}
}

func (t *SFUTransport) reportBandwidth(report BandwidthReport) {
	if report.AvailableOutgoing > 0 {
		if err := t.send("update_bandwidth", uint64(report.AvailableOutgoing)); err != nil {
			t.log.WithError(err).Debug("bandwidth report send failed")
		}
	}
	t.log.WithFields(logrus.Fields{
		"limitation": report.Limitation,
		"available":  report.AvailableOutgoing,
	}).Debug("bandwidth")
}

func (t *SFUTransport) reportError(err error) {
	t.log.WithError(err).Warn("negotiation error")
	if fn := t.callbacks().OnError; fn != nil {
		fn(err)
	}
}

func (t *SFUTransport) send(msgType string, data any) error {
	t.mu.Lock()
	ws := t.ws
	t.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("send %s: control channel not open", msgType)
	}

	payload, err := json.Marshal(sfuOutbound{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// Disconnect stops telemetry, releases local tracks and closes both the peer
// connection and the control channel. Safe when never connected.
func (t *SFUTransport) Disconnect() {
	t.mu.Lock()
	monitor := t.monitor
	ws := t.ws
	pc := t.pc
	t.monitor = nil
	t.ws = nil
	t.pc = nil
	t.micSender = nil
	t.cameraSender = nil
	t.screenSender = nil
	t.connected = false
	t.remoteDescSet = false
	t.pendingCandidates = nil
	t.remotes = make(map[string]*remoteState)
	t.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	t.local.Close()
	if ws != nil {
		_ = ws.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
}

func (t *SFUTransport) EnableMic() error {
	t.mu.Lock()
	pc := t.pc
	already := t.micSender != nil
	t.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableMic()
	if err != nil {
		return err
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		t.local.DisableMic()
		return fmt.Errorf("add microphone track: %w", err)
	}
	t.mu.Lock()
	t.micSender = sender
	t.mu.Unlock()
	return nil
}

func (t *SFUTransport) DisableMic() error {
	t.mu.Lock()
	pc := t.pc
	sender := t.micSender
	t.micSender = nil
	t.mu.Unlock()

	if pc != nil && sender != nil {
		if err := pc.RemoveTrack(sender); err != nil {
			t.log.WithError(err).Warn("remove microphone track failed")
		}
	}
	t.local.DisableMic()
	return nil
}

func (t *SFUTransport) EnableCamera() error {
	t.mu.Lock()
	pc := t.pc
	already := t.cameraSender != nil
	t.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableCamera()
	if err != nil {
		return err
	}

	var sender *webrtc.RTPSender
	if t.opts.Simulcast {
		layers := SimulcastLayers(t.opts.MaxBitrate, t.opts.MaxFramerate)
		trans, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction:     webrtc.RTPTransceiverDirectionSendonly,
			SendEncodings: EncodingParameters(layers),
		})
		if err != nil {
			t.local.DisableCamera()
			return fmt.Errorf("add simulcast camera track: %w", err)
		}
		sender = trans.Sender()
	} else {
		sender, err = pc.AddTrack(track)
		if err != nil {
			t.local.DisableCamera()
			return fmt.Errorf("add camera track: %w", err)
		}
	}

	t.mu.Lock()
	t.cameraSender = sender
	t.mu.Unlock()
	return nil
}

func (t *SFUTransport) DisableCamera() error {
	t.mu.Lock()
	pc := t.pc
	sender := t.cameraSender
	t.cameraSender = nil
	t.mu.Unlock()

	if pc != nil && sender != nil {
		if err := pc.RemoveTrack(sender); err != nil {
			t.log.WithError(err).Warn("remove camera track failed")
		}
	}
	t.local.DisableCamera()
	return nil
}

func (t *SFUTransport) StartScreenShare() error {
	t.mu.Lock()
	pc := t.pc
	already := t.screenSender != nil
	t.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableScreen()
	if err != nil {
		return err
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		t.local.DisableScreen()
		return fmt.Errorf("add screen track: %w", err)
	}
	t.mu.Lock()
	t.screenSender = sender
	t.mu.Unlock()
	return nil
}

func (t *SFUTransport) StopScreenShare() error {
	t.mu.Lock()
	pc := t.pc
	sender := t.screenSender
	t.screenSender = nil
	t.mu.Unlock()

	if pc != nil && sender != nil {
		if err := pc.RemoveTrack(sender); err != nil {
			t.log.WithError(err).Warn("remove screen track failed")
		}
	}
	t.local.DisableScreen()
	return nil
}

// Participants returns the remote roster keyed by stream id.
func (t *SFUTransport) Participants() []ParticipantInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	infos := make([]ParticipantInfo, 0, len(t.remotes))
	for _, r := range t.remotes {
		infos = append(infos, ParticipantInfo{
			Identity:   r.identity,
			Name:       r.name,
			AudioTrack: r.audioTrack,
			VideoTrack: r.videoTrack,
			Muted:      r.muted,
			CameraOff:  r.cameraOff,
		})
	}
	return infos
}

func (t *SFUTransport) addRemoteTrack(track *webrtc.TrackRemote) {
	id := track.StreamID()
	t.mu.Lock()
	r, ok := t.remotes[id]
	if !ok {
		r = &remoteState{identity: id, muted: true, cameraOff: true}
		t.remotes[id] = r
	}
	switch track.Kind() {
	case webrtc.RTPCodecTypeAudio:
		r.audioTrack = track
		r.muted = false
	case webrtc.RTPCodecTypeVideo:
		r.videoTrack = track
		r.cameraOff = false
	}
	fn := t.cb.OnParticipantsChanged
	infos := make([]ParticipantInfo, 0, len(t.remotes))
	for _, rs := range t.remotes {
		infos = append(infos, ParticipantInfo{
			Identity:   rs.identity,
			Name:       rs.name,
			AudioTrack: rs.audioTrack,
			VideoTrack: rs.videoTrack,
			Muted:      rs.muted,
			CameraOff:  rs.cameraOff,
		})
	}
	t.mu.Unlock()
	if fn != nil {
		fn(infos)
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}

// defaultAudioCodecs is the receive-side audio codec table before
// preference ordering.
func defaultAudioCodecs() []webrtc.RTPCodecParameters {
	return []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeOpus,
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "minptime=10;useinbandfec=1",
			},
			PayloadType: 111,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    "audio/red",
				ClockRate:   48000,
				Channels:    2,
				SDPFmtpLine: "111/111",
			},
			PayloadType: 63,
		},
	}
}

// defaultVideoCodecs is the receive-side video codec table before
// preference ordering.
func defaultVideoCodecs() []webrtc.RTPCodecParameters {
	return []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypeVP8,
				ClockRate: 90000,
			},
			PayloadType: 96,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeVP9,
				ClockRate:   90000,
				SDPFmtpLine: "profile-id=0",
			},
			PayloadType: 98,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
			PayloadType: 102,
		},
	}
}
