package domain

import "fmt"

// ProtocolVersion is sent in the hello frame and checked by the server.
const ProtocolVersion = 1

// Inbound (client→server) message types.
const (
	TypeHello      = "hello"
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypeMsg        = "msg"
	TypeCallInvite = "call.invite"
	TypeCallAccept = "call.accept"
	TypeCallReject = "call.reject"
	TypeCallJoin   = "call.join"
	TypeCallLeave  = "call.leave"
	TypeCallEnd    = "call.end"
)

// Outbound (server→client) event names.
const (
	EventMessage               = "message"
	EventUserJoined            = "user_joined"
	EventUserLeft              = "user_left"
	EventHistory               = "history"
	EventCallIncoming          = "call.incoming"
	EventCallRinging           = "call.ringing"
	EventCallAccepted          = "call.accepted"
	EventCallRejected          = "call.rejected"
	EventCallJoinInfo          = "call.join-info"
	EventCallParticipantJoined = "call.participant-joined"
	EventCallParticipantLeft   = "call.participant-left"
	EventCallEnded             = "call.ended"
)

// ProtocolError is an explicit error frame from the backend.
type ProtocolError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %s: %s", e.Code, e.Msg)
}

// HelloData authenticates the channel right after the transport opens.
type HelloData struct {
	Protocol int    `json:"protocol"`
	Token    string `json:"token,omitempty"`
	User     string `json:"user,omitempty"`
}

// JoinData subscribes to (or leaves) a chat room.
type JoinData struct {
	Room string `json:"room"`
}

// MsgData delivers a chat message to a room.
type MsgData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// CallInviteData initiates a call over the channel.
type CallInviteData struct {
	CallType CallType `json:"call_type"`
	ToUserID int64    `json:"to_user_id,omitempty"`
	RoomID   int64    `json:"room_id,omitempty"`
}

// CallActionData is the shared payload of accept/reject/join/leave/end.
type CallActionData struct {
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// ChatMessage is a single chat message, live or from history.
type ChatMessage struct {
	ID   int64  `json:"id"`
	Room string `json:"room"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// RoomPresence announces a user joining or leaving a chat room.
type RoomPresence struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// RoomHistory is the backlog delivered after joining a room.
type RoomHistory struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// CallIncomingEvent announces a call to its callee(s).
type CallIncomingEvent struct {
	CallID       string   `json:"call_id"`
	CallType     CallType `json:"call_type"`
	FromUserID   int64    `json:"from_user_id"`
	FromUsername string   `json:"from_username"`
	RoomID       int64    `json:"room_id,omitempty"`
	RoomName     string   `json:"room_name,omitempty"`
	CreatedAt    int64    `json:"created_at"`
}

// CallRingingEvent tells the initiator who is being rung.
type CallRingingEvent struct {
	CallID     string `json:"call_id"`
	ToUserID   int64  `json:"to_user_id"`
	ToUsername string `json:"to_username"`
}

// CallAcceptedEvent confirms the call was picked up.
type CallAcceptedEvent struct {
	CallID             string `json:"call_id"`
	AcceptedByUserID   int64  `json:"accepted_by_user_id"`
	AcceptedByUsername string `json:"accepted_by_username"`
}

// CallRejectedEvent reports a declined call.
type CallRejectedEvent struct {
	CallID           string `json:"call_id"`
	RejectedByUserID int64  `json:"rejected_by_user_id"`
	Reason           string `json:"reason,omitempty"`
}

// CallParticipantEvent reports roster churn for an ongoing call.
type CallParticipantEvent struct {
	CallID   string `json:"call_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// CallEndedEvent terminates the call for everyone still in it.
type CallEndedEvent struct {
	CallID        string `json:"call_id"`
	EndedByUserID int64  `json:"ended_by_user_id"`
	Reason        string `json:"reason,omitempty"`
}
