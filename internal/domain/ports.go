package domain

import (
	"context"
	"encoding/json"
)

// Signaler is the orchestrator's view of the signaling channel: event
// subscription plus the call-control sends whose failures must surface.
type Signaler interface {
	// On registers fn for a named server event and returns a cancel func.
	// Multiple independent listeners per event may coexist.
	On(event string, fn func(data json.RawMessage)) (cancel func())

	// OnProtocolError registers fn for error frames from the backend.
	OnProtocolError(fn func(perr ProtocolError)) (cancel func())

	AcceptCall(callID string) error
	RejectCall(callID, reason string) error
}

// CallAPI is the REST collaborator that creates, joins and ends calls.
// Each method is a single request/response with the bearer credential.
type CallAPI interface {
	CreateDirectCall(ctx context.Context, toUserID int64) (*CallRecord, error)
	CreateRoomCall(ctx context.Context, roomID int64) (*CallRecord, error)
	JoinCall(ctx context.Context, callID string) (*JoinInfo, error)
	EndCall(ctx context.Context, callID string) error
}

// Identity is the local user as established by the bearer credential.
type Identity struct {
	UserID   int64
	Username string
}
