// Package call owns the single authoritative call state. The orchestrator
// consumes signaling events and user intents, drives the media transport, and
// publishes every state transition to its observers.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wirechat/client/internal/domain"
	"wirechat/client/internal/media"
)

type observer struct {
	id int
	fn func(domain.CallState)
}

// Orchestrator is the process-wide call owner. At most one call with status
// outside {idle, ended} exists at a time; a second call intent is rejected at
// the API boundary, never queued.
type Orchestrator struct {
	log       *logrus.Entry
	sig       domain.Signaler
	api       domain.CallAPI
	transport media.Transport
	self      domain.Identity

	mu    sync.Mutex
	state domain.CallState
	// epoch increments whenever the current call changes. Every async
	// continuation captures the epoch it was started under and drops its
	// result if a newer call superseded it.
	epoch   uint64
	cancels []func()

	nextObsID int
	observers []observer
}

// NewOrchestrator wires the orchestrator to its collaborators. Call Start to
// begin consuming events.
func NewOrchestrator(sig domain.Signaler, api domain.CallAPI, transport media.Transport, self domain.Identity) *Orchestrator {
	return &Orchestrator{
		log:       logrus.WithField("component", "call"),
		sig:       sig,
		api:       api,
		transport: transport,
		self:      self,
		state:     domain.NewCallState(),
	}
}

// Start subscribes to the call events on the signaling channel and installs
// the transport callbacks.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	o.cancels = append(o.cancels,
		o.sig.On(domain.EventCallIncoming, o.handleIncoming),
		o.sig.On(domain.EventCallRinging, o.handleRinging),
		o.sig.On(domain.EventCallAccepted, o.handleAccepted),
		o.sig.On(domain.EventCallRejected, o.handleRejected),
		o.sig.On(domain.EventCallJoinInfo, o.handleJoinInfo),
		o.sig.On(domain.EventCallParticipantJoined, o.handleParticipantJoined),
		o.sig.On(domain.EventCallParticipantLeft, o.handleParticipantLeft),
		o.sig.On(domain.EventCallEnded, o.handleEnded),
		o.sig.OnProtocolError(o.handleProtocolError),
	)
	o.mu.Unlock()

	o.transport.SetCallbacks(media.Callbacks{
		OnConnected:           o.handleTransportConnected,
		OnDisconnected:        o.handleTransportDisconnected,
		OnParticipantsChanged: o.handleTransportRoster,
		OnError:               o.handleTransportError,
	})
}

// Stop cancels the event subscriptions and tears down any live call.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancels := o.cancels
	o.cancels = nil
	o.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	o.ResetCall()
}

// State returns a snapshot of the current call state.
func (o *Orchestrator) State() domain.CallState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// OnStateChange registers an observer for every state transition. The
// returned func cancels the registration.
func (o *Orchestrator) OnStateChange(fn func(domain.CallState)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextObsID++
	id := o.nextObsID
	o.observers = append(o.observers, observer{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, obs := range o.observers {
			if obs.id == id {
				o.observers = append(o.observers[:i:i], o.observers[i+1:]...)
				return
			}
		}
	}
}

func (o *Orchestrator) snapshotLocked() domain.CallState {
	st := o.state
	st.Participants = append([]domain.Participant(nil), o.state.Participants...)
	return st
}

// publishLocked snapshots the state and the observer list under the lock and
// returns a func the caller runs after unlocking.
func (o *Orchestrator) publishLocked() func() {
	st := o.snapshotLocked()
	obs := make([]observer, len(o.observers))
	copy(obs, o.observers)
	return func() {
		for _, ob := range obs {
			ob.fn(st)
		}
	}
}

// InitiateCall starts an outgoing call. For direct calls target is the callee
// user id; for room calls it is the room id. Rejected unless the current
// status is idle or ended.
func (o *Orchestrator) InitiateCall(ctx context.Context, callType domain.CallType, target int64) error {
	o.mu.Lock()
	if o.state.Status != domain.CallIdle && o.state.Status != domain.CallEnded {
		status := o.state.Status
		o.mu.Unlock()
		return fmt.Errorf("call already in progress (status %s)", status)
	}
	o.epoch++
	epoch := o.epoch
	o.state = domain.NewCallState()
	o.state.Status = domain.CallOutgoing
	o.state.Type = callType
	if callType == domain.CallDirect {
		o.state.RemoteUser = &domain.RemoteUser{ID: target}
	} else {
		o.state.RoomID = target
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()

	go o.setupOutgoing(ctx, epoch, callType, target)
	return nil
}

// setupOutgoing runs the create → join-credentials → adapter-connect sequence
// off the caller's goroutine. Any step failing resets to idle.
func (o *Orchestrator) setupOutgoing(ctx context.Context, epoch uint64, callType domain.CallType, target int64) {
	var rec *domain.CallRecord
	var err error
	if callType == domain.CallDirect {
		rec, err = o.api.CreateDirectCall(ctx, target)
	} else {
		rec, err = o.api.CreateRoomCall(ctx, target)
	}
	if err != nil {
		o.failSetup(epoch, err)
		return
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.state.CallID = rec.ID
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()

	info, err := o.api.JoinCall(ctx, rec.ID)
	if err != nil {
		o.failSetup(epoch, err)
		return
	}
	o.connectTransport(ctx, epoch, info)
}

func (o *Orchestrator) connectTransport(ctx context.Context, epoch uint64, info *domain.JoinInfo) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	o.state.RoomName = info.RoomName
	o.mu.Unlock()

	creds := media.Credentials{
		URL:      info.URL,
		Token:    info.Token,
		RoomName: info.RoomName,
		Identity: info.Identity,
	}
	if err := o.transport.Connect(ctx, creds); err != nil {
		o.failSetup(epoch, fmt.Errorf("media connect: %w", err))
	}
}

// failSetup aborts an in-progress call setup, unless a newer call already
// superseded it, and resets to idle with the failure surfaced.
func (o *Orchestrator) failSetup(epoch uint64, err error) {
	o.log.WithError(err).Warn("call setup failed")
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return
	}
	msg := err.Error()
	o.state = domain.NewCallState()
	o.state.Error = msg
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

// AcceptCall accepts the incoming call. The status stays incoming until the
// backend confirms with call.accepted; the adapter connect is triggered by
// the join-info event, not here.
func (o *Orchestrator) AcceptCall() error {
	o.mu.Lock()
	if o.state.Status != domain.CallIncoming || o.state.CallID == "" {
		status := o.state.Status
		o.mu.Unlock()
		return fmt.Errorf("no incoming call to accept (status %s)", status)
	}
	callID := o.state.CallID
	o.mu.Unlock()

	if err := o.sig.AcceptCall(callID); err != nil {
		o.surfaceError(fmt.Errorf("accept call: %w", err))
		return err
	}
	return nil
}

// RejectCall declines the incoming call and ends it locally.
func (o *Orchestrator) RejectCall(reason string) error {
	o.mu.Lock()
	if o.state.Status != domain.CallIncoming || o.state.CallID == "" {
		status := o.state.Status
		o.mu.Unlock()
		return fmt.Errorf("no incoming call to reject (status %s)", status)
	}
	callID := o.state.CallID
	o.mu.Unlock()

	err := o.sig.RejectCall(callID, reason)
	if err != nil {
		o.surfaceError(fmt.Errorf("reject call: %w", err))
	}

	o.mu.Lock()
	if o.state.CallID == callID && o.state.Status == domain.CallIncoming {
		o.epoch++
		o.state.Status = domain.CallEnded
		o.state.Participants = nil
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
	return err
}

// EndCall hangs up. Idempotent and safe from any state: the adapter is
// disconnected first, then the backend is informed best-effort, then the
// state moves to ended, so a backend failure never prevents local cleanup.
func (o *Orchestrator) EndCall(ctx context.Context) {
	o.mu.Lock()
	if o.state.Status == domain.CallIdle || o.state.Status == domain.CallEnded {
		o.mu.Unlock()
		return
	}
	o.epoch++
	callID := o.state.CallID
	o.mu.Unlock()

	o.transport.Disconnect()

	if callID != "" {
		if err := o.api.EndCall(ctx, callID); err != nil {
			o.log.WithError(err).WithField("call_id", callID).Warn("backend end-call failed")
		}
	}

	o.mu.Lock()
	o.state.Status = domain.CallEnded
	o.state.Participants = nil
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

// ResetCall force-clears the call state back to idle regardless of the
// current status. Used for local recovery.
func (o *Orchestrator) ResetCall() {
	o.mu.Lock()
	o.epoch++
	o.state = domain.NewCallState()
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

// ToggleMic flips the local mute state. The flag only changes after the
// adapter confirms; a device failure leaves the state untouched.
func (o *Orchestrator) ToggleMic() error {
	o.mu.Lock()
	muted := o.state.LocalMuted
	o.mu.Unlock()

	var err error
	if muted {
		err = o.transport.EnableMic()
	} else {
		err = o.transport.DisableMic()
	}
	if err != nil {
		o.surfaceError(fmt.Errorf("microphone: %w", err))
		return err
	}

	o.mu.Lock()
	o.state.LocalMuted = !muted
	o.updateLocalParticipantLocked()
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
	return nil
}

// ToggleCamera flips the local camera state, confirmed by the adapter.
func (o *Orchestrator) ToggleCamera() error {
	o.mu.Lock()
	off := o.state.LocalCameraOff
	o.mu.Unlock()

	var err error
	if off {
		err = o.transport.EnableCamera()
	} else {
		err = o.transport.DisableCamera()
	}
	if err != nil {
		o.surfaceError(fmt.Errorf("camera: %w", err))
		return err
	}

	o.mu.Lock()
	o.state.LocalCameraOff = !off
	o.updateLocalParticipantLocked()
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
	return nil
}

// ToggleScreenShare flips screen sharing, confirmed by the adapter.
func (o *Orchestrator) ToggleScreenShare() error {
	o.mu.Lock()
	sharing := o.state.ScreenSharing
	o.mu.Unlock()

	var err error
	if sharing {
		err = o.transport.StopScreenShare()
	} else {
		err = o.transport.StartScreenShare()
	}
	if err != nil {
		o.surfaceError(fmt.Errorf("screen share: %w", err))
		return err
	}

	o.mu.Lock()
	o.state.ScreenSharing = !sharing
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
	return nil
}

func (o *Orchestrator) surfaceError(err error) {
	o.log.WithError(err).Warn("call error")
	o.mu.Lock()
	o.state.Error = err.Error()
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleIncoming(data json.RawMessage) {
	var ev domain.CallIncomingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad call.incoming payload")
		return
	}

	o.mu.Lock()
	if o.state.Status != domain.CallIdle && o.state.Status != domain.CallEnded {
		o.log.WithFields(logrus.Fields{"call_id": ev.CallID, "status": o.state.Status}).
			Info("ignoring incoming call while busy")
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.state = domain.NewCallState()
	o.state.Status = domain.CallIncoming
	o.state.CallID = ev.CallID
	o.state.Type = ev.CallType
	o.state.RemoteUser = &domain.RemoteUser{ID: ev.FromUserID, Username: ev.FromUsername}
	o.state.RoomID = ev.RoomID
	o.state.RoomName = ev.RoomName
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleRinging(data json.RawMessage) {
	var ev domain.CallRingingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad call.ringing payload")
		return
	}

	o.mu.Lock()
	if o.state.Status != domain.CallOutgoing || o.state.CallID != ev.CallID {
		o.mu.Unlock()
		return
	}
	if o.state.RemoteUser != nil && o.state.RemoteUser.ID == ev.ToUserID {
		o.state.RemoteUser.Username = ev.ToUsername
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleAccepted(data json.RawMessage) {
	var ev domain.CallAcceptedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad call.accepted payload")
		return
	}

	o.mu.Lock()
	if o.state.CallID != ev.CallID {
		o.mu.Unlock()
		return
	}
	if o.state.Status == domain.CallOutgoing || o.state.Status == domain.CallIncoming {
		o.state.Status = domain.CallConnecting
		o.state.Error = ""
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleRejected(data json.RawMessage) {
	var ev domain.CallRejectedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad call.rejected payload")
		return
	}

	o.mu.Lock()
	if o.state.CallID != ev.CallID ||
		(o.state.Status != domain.CallOutgoing && o.state.Status != domain.CallIncoming) {
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.state.Status = domain.CallEnded
	o.state.Participants = nil
	if ev.Reason != "" {
		o.state.Error = "call rejected: " + ev.Reason
	} else {
		o.state.Error = "call rejected"
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleJoinInfo(data json.RawMessage) {
	var info domain.JoinInfo
	if err := json.Unmarshal(data, &info); err != nil {
		o.log.WithError(err).Warn("bad call.join-info payload")
		return
	}

	o.mu.Lock()
	if info.CallID != "" && o.state.CallID != info.CallID {
		o.mu.Unlock()
		return
	}
	if o.state.Status != domain.CallIncoming && o.state.Status != domain.CallConnecting {
		o.mu.Unlock()
		return
	}
	// The backend may deliver join-info before call.accepted; tolerate both orders.
	o.state.Status = domain.CallConnecting
	epoch := o.epoch
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()

	go o.connectTransport(context.Background(), epoch, &info)
}

func (o *Orchestrator) handleParticipantJoined(data json.RawMessage) {
	var ev domain.CallParticipantEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad participant-joined payload")
		return
	}

	o.mu.Lock()
	if o.state.CallID != ev.CallID || !o.callLiveLocked() {
		o.mu.Unlock()
		return
	}
	o.upsertParticipantLocked(domain.Participant{
		UserID:      ev.UserID,
		Username:    ev.Username,
		IsLocal:     ev.UserID == o.self.UserID,
		IsMuted:     true,
		IsCameraOff: true,
	})
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleParticipantLeft(data json.RawMessage) {
	var ev domain.CallParticipantEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad participant-left payload")
		return
	}

	o.mu.Lock()
	if o.state.CallID != ev.CallID || !o.callLiveLocked() {
		o.mu.Unlock()
		return
	}
	for i, p := range o.state.Participants {
		if p.UserID == ev.UserID {
			o.state.Participants = append(o.state.Participants[:i:i], o.state.Participants[i+1:]...)
			break
		}
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleEnded(data json.RawMessage) {
	var ev domain.CallEndedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.WithError(err).Warn("bad call.ended payload")
		return
	}

	o.mu.Lock()
	if o.state.CallID != ev.CallID || !o.callLiveLocked() {
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.mu.Unlock()

	o.transport.Disconnect()

	o.mu.Lock()
	o.state.Status = domain.CallEnded
	o.state.Participants = nil
	if ev.Reason != "" {
		o.state.Error = ev.Reason
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

// handleProtocolError resets a live call to a safe state when the backend
// reports an explicit error. A call still being set up collapses to ended;
// an established call keeps running with the error surfaced.
func (o *Orchestrator) handleProtocolError(perr domain.ProtocolError) {
	o.mu.Lock()
	switch o.state.Status {
	case domain.CallOutgoing, domain.CallIncoming, domain.CallConnecting:
	case domain.CallActive:
		o.state.Error = perr.Error()
		notify := o.publishLocked()
		o.mu.Unlock()
		notify()
		return
	default:
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.mu.Unlock()

	o.transport.Disconnect()

	o.mu.Lock()
	o.state.Status = domain.CallEnded
	o.state.Participants = nil
	o.state.Error = perr.Error()
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleTransportConnected() {
	o.mu.Lock()
	switch o.state.Status {
	case domain.CallOutgoing, domain.CallIncoming, domain.CallConnecting:
	default:
		o.mu.Unlock()
		return
	}
	o.state.Status = domain.CallActive
	o.state.StartTime = time.Now()
	o.state.Error = ""
	o.state.LocalMuted = false
	o.state.LocalCameraOff = false
	o.upsertParticipantLocked(domain.Participant{
		UserID:   o.self.UserID,
		Username: o.self.Username,
		IsLocal:  true,
	})
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()

	// Device failures are independent: a dead camera must not mute the mic.
	if err := o.transport.EnableMic(); err != nil {
		o.log.WithError(err).Warn("microphone enable failed")
		o.mu.Lock()
		o.state.LocalMuted = true
		o.state.Error = fmt.Sprintf("microphone: %v", err)
		o.updateLocalParticipantLocked()
		notify := o.publishLocked()
		o.mu.Unlock()
		notify()
	}
	if err := o.transport.EnableCamera(); err != nil {
		o.log.WithError(err).Warn("camera enable failed")
		o.mu.Lock()
		o.state.LocalCameraOff = true
		o.state.Error = fmt.Sprintf("camera: %v", err)
		o.updateLocalParticipantLocked()
		notify := o.publishLocked()
		o.mu.Unlock()
		notify()
	}
}

func (o *Orchestrator) handleTransportDisconnected(reason string) {
	o.mu.Lock()
	if o.state.Status != domain.CallConnecting && o.state.Status != domain.CallActive {
		o.mu.Unlock()
		return
	}
	o.epoch++
	o.state.Status = domain.CallEnded
	o.state.Participants = nil
	if reason != "" {
		o.state.Error = reason
	}
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

// handleTransportRoster replaces the participant set wholesale from the
// adapter's authoritative list. The local entry is preserved; incremental
// signaling-derived patches never override this.
func (o *Orchestrator) handleTransportRoster(infos []media.ParticipantInfo) {
	o.mu.Lock()
	if !o.callLiveLocked() {
		o.mu.Unlock()
		return
	}
	roster := []domain.Participant{{
		UserID:      o.self.UserID,
		Username:    o.self.Username,
		IsLocal:     true,
		IsMuted:     o.state.LocalMuted,
		IsCameraOff: o.state.LocalCameraOff,
	}}
	for _, info := range infos {
		uid := domain.UserIDFromIdentity(info.Identity)
		if uid == 0 || uid == o.self.UserID {
			continue
		}
		name := info.Name
		if name == "" {
			name = info.Identity
		}
		roster = append(roster, domain.Participant{
			UserID:      uid,
			Username:    name,
			IsMuted:     info.Muted,
			IsCameraOff: info.CameraOff,
		})
	}
	o.state.Participants = roster
	notify := o.publishLocked()
	o.mu.Unlock()
	notify()
}

func (o *Orchestrator) handleTransportError(err error) {
	o.surfaceError(fmt.Errorf("media: %w", err))
}

func (o *Orchestrator) callLiveLocked() bool {
	switch o.state.Status {
	case domain.CallIdle, domain.CallEnded:
		return false
	}
	return true
}

// upsertParticipantLocked adds p or updates the existing entry for the same
// user id, so duplicate joined events are no-ops and rejoins refresh the name.
func (o *Orchestrator) upsertParticipantLocked(p domain.Participant) {
	for i, existing := range o.state.Participants {
		if existing.UserID == p.UserID {
			if p.Username != "" {
				o.state.Participants[i].Username = p.Username
			}
			return
		}
	}
	o.state.Participants = append(o.state.Participants, p)
}

func (o *Orchestrator) updateLocalParticipantLocked() {
	for i, p := range o.state.Participants {
		if p.IsLocal {
			o.state.Participants[i].IsMuted = o.state.LocalMuted
			o.state.Participants[i].IsCameraOff = o.state.LocalCameraOff
			return
		}
	}
}
