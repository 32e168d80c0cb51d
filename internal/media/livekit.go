package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// remoteState is the adapter's record of one remote participant, built from
// the SDK callbacks as tracks arrive and mute states change.
type remoteState struct {
	identity   string
	name       string
	audioTrack *webrtc.TrackRemote
	videoTrack *webrtc.TrackRemote
	muted      bool
	cameraOff  bool
}

// LiveKitTransport is the managed media adapter: the session service handles
// negotiation, the adapter publishes local tracks and mirrors the remote
// roster.
type LiveKitTransport struct {
	log   *logrus.Entry
	local *LocalMedia

	mu        sync.Mutex
	cb        Callbacks
	room      *lksdk.Room
	micPub    *lksdk.LocalTrackPublication
	cameraPub *lksdk.LocalTrackPublication
	screenPub *lksdk.LocalTrackPublication
	remotes   map[string]*remoteState
}

// NewLiveKitTransport creates the managed adapter over the given capture layer.
func NewLiveKitTransport(local *LocalMedia) *LiveKitTransport {
	return &LiveKitTransport{
		log:     logrus.WithField("component", "media.livekit"),
		local:   local,
		remotes: make(map[string]*remoteState),
	}
}

func (t *LiveKitTransport) SetCallbacks(cb Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cb = cb
}

func (t *LiveKitTransport) callbacks() Callbacks {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cb
}

// Connect joins the media session. A live session is torn down first, so a
// connect while connected becomes disconnect-then-reconnect.
func (t *LiveKitTransport) Connect(ctx context.Context, creds Credentials) error {
	t.mu.Lock()
	if t.room != nil {
		t.mu.Unlock()
		t.Disconnect()
		t.mu.Lock()
	}
	t.remotes = make(map[string]*remoteState)
	t.mu.Unlock()

	cb := lksdk.NewRoomCallback()
	cb.OnDisconnected = func() {
		t.log.Info("session disconnected")
		if fn := t.callbacks().OnDisconnected; fn != nil {
			fn("media session disconnected")
		}
	}
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		t.upsertRemote(rp.Identity(), rp.Name(), nil)
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		t.mu.Lock()
		delete(t.remotes, rp.Identity())
		t.mu.Unlock()
		t.notifyRoster()
	}
	cb.ParticipantCallback.OnTrackSubscribed = func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		t.upsertRemote(rp.Identity(), rp.Name(), track)
	}
	cb.ParticipantCallback.OnTrackUnsubscribed = func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		t.dropRemoteTrack(rp.Identity(), track)
	}
	cb.ParticipantCallback.OnTrackMuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		t.setRemoteMuted(p.Identity(), pub, true)
	}
	cb.ParticipantCallback.OnTrackUnmuted = func(pub lksdk.TrackPublication, p lksdk.Participant) {
		t.setRemoteMuted(p.Identity(), pub, false)
	}

	t.log.WithFields(logrus.Fields{"room": creds.RoomName, "identity": creds.Identity}).Info("connecting")
	room, err := lksdk.ConnectToRoomWithToken(creds.URL, creds.Token, cb, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return fmt.Errorf("connect media session: %w", err)
	}

	t.mu.Lock()
	t.room = room
	t.mu.Unlock()

	// Seed the roster with participants already in the room.
	for _, rp := range room.GetRemoteParticipants() {
		t.upsertRemote(rp.Identity(), rp.Name(), nil)
	}

	if fn := t.callbacks().OnConnected; fn != nil {
		fn()
	}
	return nil
}

// Disconnect stops and releases every local track, then tears down the
// session. Safe when never connected.
func (t *LiveKitTransport) Disconnect() {
	t.mu.Lock()
	room := t.room
	t.room = nil
	t.micPub = nil
	t.cameraPub = nil
	t.screenPub = nil
	t.remotes = make(map[string]*remoteState)
	t.mu.Unlock()

	t.local.Close()
	if room != nil {
		room.Disconnect()
		t.log.Info("disconnected")
	}
}

func (t *LiveKitTransport) EnableMic() error {
	t.mu.Lock()
	room := t.room
	already := t.micPub != nil
	t.mu.Unlock()
	if room == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableMic()
	if err != nil {
		return err
	}
	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "microphone",
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		t.local.DisableMic()
		return fmt.Errorf("publish microphone: %w", err)
	}
	t.mu.Lock()
	t.micPub = pub
	t.mu.Unlock()
	return nil
}

func (t *LiveKitTransport) DisableMic() error {
	t.mu.Lock()
	room := t.room
	pub := t.micPub
	t.micPub = nil
	t.mu.Unlock()

	if room != nil && pub != nil {
		if err := room.LocalParticipant.UnpublishTrack(pub.SID()); err != nil {
			t.log.WithError(err).Warn("unpublish microphone failed")
		}
	}
	t.local.DisableMic()
	return nil
}

func (t *LiveKitTransport) EnableCamera() error {
	t.mu.Lock()
	room := t.room
	already := t.cameraPub != nil
	t.mu.Unlock()
	if room == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableCamera()
	if err != nil {
		return err
	}
	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "camera",
		Source: livekit.TrackSource_CAMERA,
	})
	if err != nil {
		t.local.DisableCamera()
		return fmt.Errorf("publish camera: %w", err)
	}
	t.mu.Lock()
	t.cameraPub = pub
	t.mu.Unlock()
	return nil
}

func (t *LiveKitTransport) DisableCamera() error {
	t.mu.Lock()
	room := t.room
	pub := t.cameraPub
	t.cameraPub = nil
	t.mu.Unlock()

	if room != nil && pub != nil {
		if err := room.LocalParticipant.UnpublishTrack(pub.SID()); err != nil {
			t.log.WithError(err).Warn("unpublish camera failed")
		}
	}
	t.local.DisableCamera()
	return nil
}

func (t *LiveKitTransport) StartScreenShare() error {
	t.mu.Lock()
	room := t.room
	already := t.screenPub != nil
	t.mu.Unlock()
	if room == nil {
		return fmt.Errorf("not connected")
	}
	if already {
		return nil
	}

	track, err := t.local.EnableScreen()
	if err != nil {
		return err
	}
	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   "screen",
		Source: livekit.TrackSource_SCREEN_SHARE,
	})
	if err != nil {
		t.local.DisableScreen()
		return fmt.Errorf("publish screen: %w", err)
	}
	t.mu.Lock()
	t.screenPub = pub
	t.mu.Unlock()
	return nil
}

func (t *LiveKitTransport) StopScreenShare() error {
	t.mu.Lock()
	room := t.room
	pub := t.screenPub
	t.screenPub = nil
	t.mu.Unlock()

	if room != nil && pub != nil {
		if err := room.LocalParticipant.UnpublishTrack(pub.SID()); err != nil {
			t.log.WithError(err).Warn("unpublish screen failed")
		}
	}
	t.local.DisableScreen()
	return nil
}

// Participants returns the remote roster recomputed from the adapter's state.
func (t *LiveKitTransport) Participants() []ParticipantInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rosterLocked()
}

func (t *LiveKitTransport) rosterLocked() []ParticipantInfo {
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

func (t *LiveKitTransport) upsertRemote(identity, name string, track *webrtc.TrackRemote) {
	t.mu.Lock()
	r, ok := t.remotes[identity]
	if !ok {
		// Tracks are unknown until they arrive, report devices as off.
		r = &remoteState{identity: identity, muted: true, cameraOff: true}
		t.remotes[identity] = r
	}
	if name != "" {
		r.name = name
	}
	if track != nil {
		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			r.audioTrack = track
			r.muted = false
		case webrtc.RTPCodecTypeVideo:
			r.videoTrack = track
			r.cameraOff = false
		}
	}
	t.mu.Unlock()
	t.notifyRoster()
}

func (t *LiveKitTransport) dropRemoteTrack(identity string, track *webrtc.TrackRemote) {
	t.mu.Lock()
	if r, ok := t.remotes[identity]; ok {
		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			r.audioTrack = nil
			r.muted = true
		case webrtc.RTPCodecTypeVideo:
			r.videoTrack = nil
			r.cameraOff = true
		}
	}
	t.mu.Unlock()
	t.notifyRoster()
}

func (t *LiveKitTransport) setRemoteMuted(identity string, pub lksdk.TrackPublication, muted bool) {
	t.mu.Lock()
	if r, ok := t.remotes[identity]; ok {
		switch pub.Kind() {
		case lksdk.TrackKindAudio:
			r.muted = muted
		case lksdk.TrackKindVideo:
			r.cameraOff = muted
		}
	}
	t.mu.Unlock()
	t.notifyRoster()
}

func (t *LiveKitTransport) notifyRoster() {
	t.mu.Lock()
	fn := t.cb.OnParticipantsChanged
	roster := t.rosterLocked()
	t.mu.Unlock()
	if fn != nil {
		fn(roster)
	}
}
