// Package media contains the transport adapters that move audio and video
// for a call: a managed adapter on top of an SFU service SDK and a raw
// adapter that drives the peer connection directly.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Credentials are the per-call media-session join parameters handed out by
// the backend.
type Credentials struct {
	URL      string
	Token    string
	RoomName string
	Identity string
}

// ParticipantInfo is a remote member of the media session as the adapter
// sees it. Track handles are nil until the corresponding track arrives.
type ParticipantInfo struct {
	Identity   string
	Name       string
	AudioTrack *webrtc.TrackRemote
	VideoTrack *webrtc.TrackRemote
	Muted      bool
	CameraOff  bool
}

// Callbacks are the adapter's notifications to its owner. All callbacks may
// fire from adapter goroutines; the owner serializes.
type Callbacks struct {
	// OnConnected fires once the media session is established.
	OnConnected func()
	// OnDisconnected fires when the session drops, with a human-readable reason.
	OnDisconnected func(reason string)
	// OnParticipantsChanged delivers the full remote roster after any change.
	OnParticipantsChanged func(participants []ParticipantInfo)
	// OnError reports a non-fatal adapter failure.
	OnError func(err error)
}

// Transport is the contract both adapters satisfy. Connect establishes the
// session; the Enable/Disable pairs manage local capture per device kind.
// Implementations tolerate repeated calls in any state.
type Transport interface {
	SetCallbacks(cb Callbacks)

	Connect(ctx context.Context, creds Credentials) error
	Disconnect()

	EnableMic() error
	DisableMic() error
	EnableCamera() error
	DisableCamera() error
	StartScreenShare() error
	StopScreenShare() error

	// Participants returns the current remote roster snapshot.
	Participants() []ParticipantInfo
}
