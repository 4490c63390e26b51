package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the lifecycle state of the push channel.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnectWait
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnectWait:
		return "reconnect_wait"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Timer is a cancelable scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler abstracts time.AfterFunc so the backoff protocol is testable
// without wall-clock delays.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// wsConn is the slice of *websocket.Conn the connection uses; tests
// substitute fakes.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens the underlying duplex socket.
type DialFunc func(rawURL string) (wsConn, error)

func defaultDial(rawURL string) (wsConn, error) {
	ws, resp, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return ws, nil
}

// backoffDelay computes min(initial × 2^attempt, max) without overflow.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// Connection owns the push-channel lifecycle: connect, heartbeat, clean and
// unclean closes, and reconnection with exponential backoff. One Connection
// exists per session; it is an explicit object passed to whoever needs it,
// never a package singleton.
//
// At most one reconnect timer is live at any moment. Failures never
// propagate as panics; they surface through the state and LastError.
type Connection struct {
	cfg        Config
	dispatcher *Dispatcher
	scheduler  Scheduler
	dial       DialFunc
	metrics    *Collector

	mu            sync.Mutex
	state         ConnState
	attempt       int // consecutive unclean closes since the last open
	lastErr       string
	correlationID string
	sock          *socket
	retryTimer    Timer
	generation    int // invalidates pumps and timers of torn-down sockets
	lastRecv      time.Time
}

// NewConnection wires a connection to its dispatcher. A nil scheduler means
// real timers.
func NewConnection(cfg Config, d *Dispatcher, scheduler Scheduler, metrics *Collector) *Connection {
	if scheduler == nil {
		scheduler = wallClock{}
	}
	c := &Connection{
		cfg:        cfg,
		dispatcher: d,
		scheduler:  scheduler,
		dial:       defaultDial,
		metrics:    metrics,
		state:      StateDisconnected,
	}
	if d != nil {
		d.bind(c)
	}
	return c
}

// stateChange is a transition queued for emission after the lock drops, so
// listener callbacks can safely read connection state.
type stateChange struct {
	state ConnState
	err   string
}

func (c *Connection) setStateLocked(s ConnState, errMsg string) stateChange {
	c.state = s
	c.lastErr = errMsg
	c.metrics.stateChanged(s)
	return stateChange{state: s, err: errMsg}
}

func (c *Connection) emit(changes ...stateChange) {
	for _, ch := range changes {
		Log.Infof("connection %s%s", ch.state, suffixErr(ch.err))
		if c.dispatcher != nil {
			c.dispatcher.HandleStateChange(ch.state, ch.err)
		}
	}
}

func suffixErr(msg string) string {
	if msg == "" {
		return ""
	}
	return ": " + msg
}

// Connect opens the push channel. It is a no-op while already connecting or
// open. Calling it after the connection entered failed resets the attempt
// counter and retries.
func (c *Connection) Connect() {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen:
		c.mu.Unlock()
		return
	case StateFailed:
		c.attempt = 0
	}
	c.stopRetryTimerLocked()
	c.generation++
	gen := c.generation
	ch := c.setStateLocked(StateConnecting, "")
	c.mu.Unlock()

	c.emit(ch)
	go c.runDial(gen)
}

// Disconnect tears the channel down deliberately: the pending reconnect
// timer (if any) is canceled and the state becomes disconnected
// unconditionally.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.generation++
	c.stopRetryTimerLocked()
	sock := c.sock
	c.sock = nil
	c.attempt = 0
	var changes []stateChange
	if sock != nil {
		changes = append(changes, c.setStateLocked(StateClosing, ""))
	}
	changes = append(changes, c.setStateLocked(StateDisconnected, ""))
	c.mu.Unlock()

	if sock != nil {
		sock.sendClose()
		sock.close()
	}
	c.emit(changes...)
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the observable error string carried by the state; empty
// while healthy.
func (c *Connection) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// CorrelationID is the connection identity captured from the server's
// connection_established frame.
func (c *Connection) CorrelationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correlationID
}

func (c *Connection) noteCorrelationID(id string) {
	c.mu.Lock()
	c.correlationID = id
	c.mu.Unlock()
}

// SendEnvelope marshals and queues an outbound frame. It fails when the
// channel is not open; the queue drops on overflow rather than blocking.
func (c *Connection) SendEnvelope(frameType string, data any) error {
	c.mu.Lock()
	sock := c.sock
	st := c.state
	c.mu.Unlock()
	if st != StateOpen || sock == nil {
		return fmt.Errorf("send %s: connection is %s", frameType, st)
	}

	raw := json.RawMessage(`{}`)
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s frame: %w", frameType, err)
		}
		raw = b
	}
	b, err := json.Marshal(Envelope{
		Type:      frameType,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", frameType, err)
	}
	sock.enqueue(b)
	return nil
}

// MarkRead acknowledges a notification to the server.
func (c *Connection) MarkRead(notificationID string) error {
	return c.SendEnvelope(FrameMarkRead, map[string]string{"id": notificationID})
}

// socketURL parameterizes the configured endpoint with the user identity
// and bearer credential.
func (c *Connection) socketURL() string {
	u, err := url.Parse(c.cfg.SocketURL)
	if err != nil {
		return c.cfg.SocketURL
	}
	q := u.Query()
	q.Set("user", c.cfg.UserID)
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Connection) runDial(gen int) {
	ws, err := c.dial(c.socketURL())

	c.mu.Lock()
	if gen != c.generation || c.state != StateConnecting {
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
		return
	}
	if err != nil {
		ch := c.scheduleRetryLocked(err.Error())
		c.mu.Unlock()
		c.emit(ch)
		return
	}

	sock := newSocket(ws, c.cfg.WriteTimeout)
	c.sock = sock
	c.attempt = 0
	c.lastRecv = time.Now()
	ch := c.setStateLocked(StateOpen, "")
	c.mu.Unlock()

	c.emit(ch)
	go sock.writePump(c.cfg.IdlePingInterval, c.maybePing)
	go c.readPump(sock, gen)
}

func (c *Connection) readPump(sock *socket, gen int) {
	sock.ws.SetReadLimit(1 << 20) // 1MB
	_ = sock.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	for {
		_, payload, err := sock.ws.ReadMessage()
		if err != nil {
			c.onSocketClosed(gen, err)
			return
		}
		_ = sock.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		c.mu.Lock()
		c.lastRecv = time.Now()
		c.mu.Unlock()
		if c.dispatcher != nil {
			c.dispatcher.HandleFrame(payload)
		}
	}
}

// onSocketClosed handles the end of a read pump: a clean close (code 1000)
// lands in disconnected, anything else enters the backoff protocol.
func (c *Connection) onSocketClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.generation {
		// Deliberate teardown already handled this socket.
		c.mu.Unlock()
		return
	}
	if c.sock != nil {
		c.sock.close()
		c.sock = nil
	}

	var changes []stateChange
	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
		c.attempt = 0
		changes = append(changes, c.setStateLocked(StateDisconnected, ""))
	} else {
		changes = append(changes, c.scheduleRetryLocked(closeReason(err)))
	}
	c.mu.Unlock()
	c.emit(changes...)
}

// scheduleRetryLocked advances the backoff protocol after an unclean close
// or failed dial. Once the attempt ceiling is hit the state becomes failed
// and automatic retries stop; only a manual Connect resumes.
func (c *Connection) scheduleRetryLocked(reason string) stateChange {
	c.attempt++
	if c.attempt >= c.cfg.MaxReconnectAttempts {
		return c.setStateLocked(StateFailed, reason)
	}
	delay := backoffDelay(c.cfg.InitialBackoff, c.cfg.MaxBackoff, c.attempt-1)
	gen := c.generation
	c.metrics.reconnectScheduled()
	c.retryTimer = c.scheduler.AfterFunc(delay, func() { c.retryDial(gen) })
	return c.setStateLocked(StateReconnectWait, reason)
}

func (c *Connection) retryDial(gen int) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateReconnectWait {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	ch := c.setStateLocked(StateConnecting, c.lastErr)
	c.mu.Unlock()

	c.emit(ch)
	c.runDial(gen)
}

func (c *Connection) stopRetryTimerLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// maybePing runs on the write pump's ticker and emits a ping only when the
// channel has been idle past the configured threshold.
func (c *Connection) maybePing() {
	c.mu.Lock()
	idle := c.state == StateOpen && time.Since(c.lastRecv) >= c.cfg.IdlePingInterval
	c.mu.Unlock()
	if idle {
		_ = c.SendEnvelope(FramePing, nil)
	}
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Sprintf("unclean close: code %d %s", ce.Code, ce.Text)
	}
	return err.Error()
}

// socket pairs a live websocket with its outbound queue. The queue is
// drained by a dedicated write pump, mirroring the enqueue-or-drop
// discipline used for real-time traffic.
type socket struct {
	ws           wsConn
	send         chan []byte
	writeTimeout time.Duration
	once         sync.Once
}

func newSocket(ws wsConn, writeTimeout time.Duration) *socket {
	return &socket{
		ws:           ws,
		send:         make(chan []byte, 64),
		writeTimeout: writeTimeout,
	}
}

// enqueue queues a frame without blocking; when the queue is full the frame
// is dropped so a slow socket never stalls callers.
func (s *socket) enqueue(b []byte) {
	select {
	case s.send <- b:
	default:
	}
}

// sendClose writes the clean-close control frame (code 1000).
func (s *socket) sendClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// close ends the write pump; the pump closes the underlying socket on exit.
func (s *socket) close() {
	s.once.Do(func() { close(s.send) })
}

// writePump drains the outbound queue onto the socket and drives the idle
// heartbeat tick.
func (s *socket) writePump(tick time.Duration, onTick func()) {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	defer s.ws.Close()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			onTick()
		}
	}
}
