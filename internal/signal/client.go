// Package signal implements the persistent signaling channel: connect,
// authenticate, reconnect with backoff, typed event dispatch, and joined-room
// tracking that survives transient disconnects.
package signal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wirechat/client/internal/domain"
)

// State is the channel lifecycle position.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
)

// envelope is the generic server→client wire message.
type envelope struct {
	Type  string                `json:"type"`
	Event string                `json:"event,omitempty"`
	Data  json.RawMessage       `json:"data,omitempty"`
	Error *domain.ProtocolError `json:"error,omitempty"`
}

// outbound is the client→server frame shape.
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Options configures a Client. URL, Token and Username are required.
type Options struct {
	URL      string
	Token    string
	Username string

	// MaxReconnectAttempts caps the backoff sequence; 0 means the default (5).
	MaxReconnectAttempts int
	// ReconnectDelay is the backoff base; 0 means the default (1s).
	ReconnectDelay time.Duration
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
}

type subscriber[T any] struct {
	id int
	fn T
}

// Client manages the WebSocket connection to the wirechat server.
type Client struct {
	opts Options
	log  *logrus.Entry

	mu               sync.Mutex
	conn             *websocket.Conn
	state            State
	reconnectAttempt int
	reconnectTimer   *time.Timer
	intentional      bool
	joinedRooms      map[string]struct{}

	nextSubID    int
	eventSubs    map[string][]subscriber[func(json.RawMessage)]
	stateSubs    []subscriber[func(State)]
	errorSubs    []subscriber[func(domain.ProtocolError)]
	reconnecting []subscriber[func(attempt int)]

	stateQueue    []State
	stateDraining bool
}

// NewClient creates a signaling client. Call Connect to open the channel.
func NewClient(opts Options) *Client {
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		opts:        opts,
		log:         logrus.WithField("component", "signal"),
		state:       StateDisconnected,
		joinedRooms: make(map[string]struct{}),
		eventSubs:   make(map[string][]subscriber[func(json.RawMessage)]),
	}
}

// State returns the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// JoinedRooms returns a snapshot of the rooms the client intends to be in.
func (c *Client) JoinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.joinedRooms))
	for r := range c.joinedRooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Connect opens the channel. No-op while connecting or connected. An explicit
// Connect resets the reconnect attempt counter, so it is also the way out of
// the error state after the backoff cap was exceeded.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectAttempt = 0
	c.intentional = false
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.dial()
}

// Disconnect closes the channel intentionally: pending reconnects are
// cancelled, room membership tracking is cleared for the next session, and the
// transport is closed with a normal close code so no reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.intentional = true
	c.joinedRooms = make(map[string]struct{})
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (c *Client) dial() {
	conn, _, err := c.opts.Dialer.Dial(c.opts.URL, nil)
	if err != nil {
		c.log.WithError(err).Warn("dial failed")
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.intentional {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.reconnectAttempt = 0

	// Hello first, then the connected notification, then room replay.
	hello := domain.HelloData{
		Protocol: domain.ProtocolVersion,
		Token:    c.opts.Token,
		User:     c.opts.Username,
	}
	if err := c.writeLocked(domain.TypeHello, hello); err != nil {
		c.conn = nil
		c.mu.Unlock()
		c.log.WithError(err).Warn("hello write failed")
		_ = conn.Close()
		c.scheduleReconnect()
		return
	}
	c.setStateLocked(StateConnected)
	for room := range c.joinedRooms {
		if err := c.writeLocked(domain.TypeJoin, domain.JoinData{Room: room}); err != nil {
			c.log.WithError(err).WithField("room", room).Warn("room replay failed")
		}
	}
	c.mu.Unlock()

	go c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.log.WithField("frame", string(data)).Debug("<<<")

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithError(err).Warn("dropping malformed frame")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) handleClose(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection (or an intentional Disconnect) already took over.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	intentional := c.intentional
	c.mu.Unlock()
	_ = conn.Close()

	if intentional || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		return
	}

	c.log.WithError(err).Warn("connection lost")
	c.scheduleReconnect()
}

// BackoffDelay returns the exponential reconnect delay for the given attempt
// (attempt starts at 1): base × 2^(attempt−1).
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	if c.reconnectAttempt >= c.opts.MaxReconnectAttempts {
		c.setStateLocked(StateError)
		c.mu.Unlock()
		c.notifyError(domain.ProtocolError{Code: "reconnect_failed", Msg: "max reconnection attempts reached"})
		return
	}
	c.reconnectAttempt++
	attempt := c.reconnectAttempt
	c.setStateLocked(StateReconnecting)
	delay := BackoffDelay(c.opts.ReconnectDelay, attempt)
	c.reconnectTimer = time.AfterFunc(delay, c.redial)
	subs := make([]subscriber[func(int)], len(c.reconnecting))
	copy(subs, c.reconnecting)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Info("reconnecting")
	for _, s := range subs {
		s.fn(attempt)
	}
}

// redial runs when the backoff timer fires. An explicit Connect or Disconnect
// in the meantime already moved the state off reconnecting, in which case the
// fire is stale and must not open a second connection.
func (c *Client) redial() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.dial()
}

// Send serializes {type, data} onto the channel. When the transport is not
// open the frame is dropped and an error returned; nothing is ever queued.
func (c *Client) Send(msgType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		c.log.WithField("type", msgType).Warn("dropping send, channel not open")
		return fmt.Errorf("send %s: channel %s", msgType, c.state)
	}
	return c.writeLocked(msgType, data)
}

func (c *Client) writeLocked(msgType string, data any) error {
	payload, err := json.Marshal(outbound{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	c.log.WithField("frame", string(payload)).Debug(">>>")
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// JoinRoom records the join intent (so it survives disconnects) and transmits
// it when the channel is open.
func (c *Client) JoinRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joinedRooms[room] = struct{}{}
	if c.state == StateConnected && c.conn != nil {
		if err := c.writeLocked(domain.TypeJoin, domain.JoinData{Room: room}); err != nil {
			c.log.WithError(err).WithField("room", room).Warn("join send failed")
		}
	}
}

// LeaveRoom removes the room from the intent set and transmits the leave
// when the channel is open.
func (c *Client) LeaveRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joinedRooms, room)
	if c.state == StateConnected && c.conn != nil {
		if err := c.writeLocked(domain.TypeLeave, domain.JoinData{Room: room}); err != nil {
			c.log.WithError(err).WithField("room", room).Warn("leave send failed")
		}
	}
}

// SendChat delivers a chat message. Chat drops while disconnected are
// acceptable; the error is informational.
func (c *Client) SendChat(room, text string) error {
	return c.Send(domain.TypeMsg, domain.MsgData{Room: room, Text: text})
}

// InviteDirectCall starts a 1-on-1 call over the channel.
func (c *Client) InviteDirectCall(toUserID int64) error {
	return c.Send(domain.TypeCallInvite, domain.CallInviteData{CallType: domain.CallDirect, ToUserID: toUserID})
}

// InviteRoomCall starts a room call over the channel.
func (c *Client) InviteRoomCall(roomID int64) error {
	return c.Send(domain.TypeCallInvite, domain.CallInviteData{CallType: domain.CallRoom, RoomID: roomID})
}

// AcceptCall accepts an incoming call.
func (c *Client) AcceptCall(callID string) error {
	return c.Send(domain.TypeCallAccept, domain.CallActionData{CallID: callID})
}

// RejectCall declines an incoming call.
func (c *Client) RejectCall(callID, reason string) error {
	return c.Send(domain.TypeCallReject, domain.CallActionData{CallID: callID, Reason: reason})
}

// JoinCall joins or rejoins an active call.
func (c *Client) JoinCall(callID string) error {
	return c.Send(domain.TypeCallJoin, domain.CallActionData{CallID: callID})
}

// LeaveCall leaves an active call.
func (c *Client) LeaveCall(callID, reason string) error {
	return c.Send(domain.TypeCallLeave, domain.CallActionData{CallID: callID, Reason: reason})
}

// EndCall ends the call for all participants.
func (c *Client) EndCall(callID string) error {
	return c.Send(domain.TypeCallEnd, domain.CallActionData{CallID: callID})
}

// On registers a handler for a named server event. Handlers run on the read
// loop goroutine. The returned func cancels the subscription.
func (c *Client) On(event string, fn func(json.RawMessage)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.eventSubs[event] = append(c.eventSubs[event], subscriber[func(json.RawMessage)]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.eventSubs[event]
		for i, s := range subs {
			if s.id == id {
				c.eventSubs[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// OnStateChange registers a handler for channel state transitions.
func (c *Client) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.stateSubs = append(c.stateSubs, subscriber[func(State)]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.stateSubs {
			if s.id == id {
				c.stateSubs = append(c.stateSubs[:i:i], c.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// OnProtocolError registers a handler for error frames from the backend.
func (c *Client) OnProtocolError(fn func(domain.ProtocolError)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.errorSubs = append(c.errorSubs, subscriber[func(domain.ProtocolError)]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.errorSubs {
			if s.id == id {
				c.errorSubs = append(c.errorSubs[:i:i], c.errorSubs[i+1:]...)
				return
			}
		}
	}
}

// OnReconnecting registers a handler fired with the attempt number each time
// a reconnect is scheduled.
func (c *Client) OnReconnecting(fn func(attempt int)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.reconnecting = append(c.reconnecting, subscriber[func(int)]{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.reconnecting {
			if s.id == id {
				c.reconnecting = append(c.reconnecting[:i:i], c.reconnecting[i+1:]...)
				return
			}
		}
	}
}

// setStateLocked updates the state and queues subscriber notification.
// Callers hold mu; a single draining goroutine delivers queued transitions in
// order, and off the lock so a subscriber can call back into the client.
func (c *Client) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	c.stateQueue = append(c.stateQueue, next)
	if c.stateDraining {
		return
	}
	c.stateDraining = true
	go c.drainStateQueue()
}

func (c *Client) drainStateQueue() {
	for {
		c.mu.Lock()
		if len(c.stateQueue) == 0 {
			c.stateDraining = false
			c.mu.Unlock()
			return
		}
		next := c.stateQueue[0]
		c.stateQueue = c.stateQueue[1:]
		subs := make([]subscriber[func(State)], len(c.stateSubs))
		copy(subs, c.stateSubs)
		c.mu.Unlock()

		for _, s := range subs {
			s.fn(next)
		}
	}
}

func (c *Client) notifyError(perr domain.ProtocolError) {
	c.mu.Lock()
	subs := make([]subscriber[func(domain.ProtocolError)], len(c.errorSubs))
	copy(subs, c.errorSubs)
	c.mu.Unlock()
	for _, s := range subs {
		s.fn(perr)
	}
}

func (c *Client) dispatch(msg envelope) {
	switch msg.Type {
	case "error":
		if msg.Error == nil {
			c.log.Warn("error frame without error body")
			return
		}
		c.log.WithFields(logrus.Fields{"code": msg.Error.Code, "msg": msg.Error.Msg}).Warn("server error")
		c.notifyError(*msg.Error)

	case "event":
		c.mu.Lock()
		subs := make([]subscriber[func(json.RawMessage)], len(c.eventSubs[msg.Event]))
		copy(subs, c.eventSubs[msg.Event])
		c.mu.Unlock()
		if len(subs) == 0 {
			// Unknown or unhandled events are ignored for forward compatibility.
			c.log.WithField("event", msg.Event).Debug("no subscriber for event")
			return
		}
		for _, s := range subs {
			s.fn(msg.Data)
		}

	default:
		c.log.WithField("type", msg.Type).Debug("ignoring unknown frame type")
	}
}
