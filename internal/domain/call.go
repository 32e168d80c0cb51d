package domain

import (
	"regexp"
	"strconv"
	"time"
)

// CallStatus is the lifecycle position of the single call.
type CallStatus string

const (
	CallIdle       CallStatus = "idle"
	CallOutgoing   CallStatus = "outgoing"
	CallIncoming   CallStatus = "incoming"
	CallConnecting CallStatus = "connecting"
	CallActive     CallStatus = "active"
	CallEnded      CallStatus = "ended"
)

// CallType distinguishes 1-on-1 calls from room calls.
type CallType string

const (
	CallDirect CallType = "direct"
	CallRoom   CallType = "room"
)

// RemoteUser identifies the other party of a direct call.
type RemoteUser struct {
	ID       int64
	Username string
}

// Participant is one member of the call roster, keyed by user id.
type Participant struct {
	UserID      int64
	Username    string
	IsLocal     bool
	IsMuted     bool
	IsCameraOff bool
}

// CallState is the single authoritative call record owned by the orchestrator.
// At most one call with status outside {idle, ended} exists per session.
type CallState struct {
	Status         CallStatus
	CallID         string
	Type           CallType
	RemoteUser     *RemoteUser
	RoomID         int64
	RoomName       string
	Participants   []Participant
	LocalMuted     bool
	LocalCameraOff bool
	ScreenSharing  bool
	StartTime      time.Time
	Error          string
}

// NewCallState returns the idle state a fresh session starts from.
// Media starts muted until the adapter reports connected.
func NewCallState() CallState {
	return CallState{
		Status:         CallIdle,
		LocalMuted:     true,
		LocalCameraOff: true,
	}
}

// CallRecord is the backend's view of a call as returned by the REST API.
type CallRecord struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Mode            string `json:"mode,omitempty"`
	InitiatorUserID int64  `json:"initiator_user_id"`
	RoomID          int64  `json:"room_id,omitempty"`
	Status          string `json:"status"`
	ExternalRoomID  string `json:"external_room_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	EndedAt         string `json:"ended_at,omitempty"`
}

// JoinInfo carries the media-session join credentials, both as the
// call.join-info event payload and as the REST join response.
type JoinInfo struct {
	CallID   string `json:"call_id,omitempty"`
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

var identitySuffix = regexp.MustCompile(`(\d+)$`)

// UserIDFromIdentity extracts the numeric user id from a media-session
// identity of the form "user-<id>". Returns 0 when no id is present.
func UserIDFromIdentity(identity string) int64 {
	m := identitySuffix.FindString(identity)
	if m == "" {
		return 0
	}
	id, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
