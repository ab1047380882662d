// Package client implements the collaboration client pipeline: the relay
// connection, event dispatch, and outbound event construction.
package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/pkg/logger"
	"github.com/syncroom/collab-platform/pkg/metrics"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Stats are monotonic connection counters, reset only on reconnect where
// noted.
type Stats struct {
	MessagesReceived  int64
	MessagesSent      int64
	LastConnectedAt   time.Time
	ReconnectAttempts int
}

// Observer receives connection lifecycle callbacks. Callbacks are invoked
// synchronously, in registration order.
type Observer interface {
	OnOpen()
	OnMessage(raw []byte)
	OnClose(err error)
	OnError(err error)
}

// ConnConfig configures a Conn. Self, when set, is stamped into heartbeat
// pings so peers count them as activity for this user.
type ConnConfig struct {
	URL               string
	Self              event.User
	HeartbeatInterval time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
}

// Conn owns the single websocket connection to the relay. It is constructed
// explicitly and passed by reference to consumers; there is no package-level
// instance.
type Conn struct {
	cfg ConnConfig
	log *logger.Logger

	mu        sync.Mutex
	state     State
	ws        *websocket.Conn
	observers []Observer
	stats     Stats
	bo        *backoff.ExponentialBackOff
	retry     *time.Timer
	done      chan struct{} // closed when the current transport ends
	closed    bool          // set by Disconnect, the only terminal transition
}

// NewConn creates a connection manager. Zero-valued durations get defaults.
func NewConn(cfg ConnConfig, log *logger.Logger) *Conn {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 25 * time.Second
	}
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = 500 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 15 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.ReconnectInitial
	bo.MaxInterval = cfg.ReconnectMax
	bo.Multiplier = 1.5
	bo.MaxElapsedTime = 0 // retry until Disconnect
	bo.Reset()

	return &Conn{
		cfg:   cfg,
		log:   log,
		state: StateDisconnected,
		bo:    bo,
	}
}

// Register adds an observer. Observers are notified in registration order.
func (c *Conn) Register(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Unregister removes a previously registered observer.
func (c *Conn) Unregister(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.observers {
		if cur == o {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Connect opens the transport. It is a no-op while already connecting or
// connected, and after Disconnect.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.closed || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.state = StateConnecting
	url := c.cfg.URL
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		c.log.Warn("dial failed", "url", url, "error", err)
		c.notify(func(o Observer) { o.OnError(err) })
		c.scheduleReconnect(err)
		return
	}

	c.mu.Lock()
	if c.closed {
		// Disconnect raced the dial.
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.state = StateConnected
	c.ws = ws
	c.stats.ReconnectAttempts = 0
	c.stats.LastConnectedAt = time.Now()
	c.bo.Reset()
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	c.log.Info("connected", "url", url)
	c.notify(func(o Observer) { o.OnOpen() })

	go c.readLoop(ws, done)
	go c.heartbeat(done)
}

// Send serializes v to JSON and writes it to the transport. It returns
// false, never panics, when the connection is not up.
func (c *Conn) Send(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("marshal outbound frame", "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.ws == nil {
		metrics.SendFailuresTotal.Inc()
		return false
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn("write failed", "error", err)
		metrics.SendFailuresTotal.Inc()
		return false
	}
	c.stats.MessagesSent++
	return true
}

// Disconnect closes the transport and cancels any pending reconnect. This
// is the only terminal transition.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateDisconnected
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	ws := c.ws
	c.ws = nil
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
		c.done = nil
	}
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	c.notify(func(o Observer) { o.OnClose(nil) })
}

func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.ws != ws
			c.mu.Unlock()
			if !stale {
				c.handleClose(err, done)
			}
			return
		}

		c.mu.Lock()
		c.stats.MessagesReceived++
		c.mu.Unlock()
		c.notify(func(o Observer) { o.OnMessage(data) })
	}
}

// pingFrame is the application-level heartbeat. It carries the local user
// so peers treat the ping as activity and keep the sender in their roster.
type pingFrame struct {
	Type string      `json:"type"`
	User *event.User `json:"user,omitempty"`
}

// heartbeat keeps intermediaries from timing the connection out: a ping
// control frame plus an application-level ping the relay echoes to peers.
func (c *Conn) heartbeat(done chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			ws := c.ws
			if ws != nil {
				ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			c.mu.Unlock()
			frame := pingFrame{Type: "ping"}
			if c.cfg.Self.ID != "" {
				frame.User = &c.cfg.Self
			}
			c.Send(frame)
		case <-done:
			return
		}
	}
}

func (c *Conn) handleClose(err error, done chan struct{}) {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	select {
	case <-done:
	default:
		close(done)
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.mu.Unlock()

	c.log.Warn("connection lost", "error", err)
	c.notify(func(o Observer) { o.OnClose(err) })
	c.scheduleReconnect(err)
}

// scheduleReconnect arms a retry after a capped-exponential delay. Attempts
// are unbounded until Disconnect.
func (c *Conn) scheduleReconnect(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.stats.ReconnectAttempts++
	delay := c.bo.NextBackOff()
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.retry = nil
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateDisconnected // let Connect proceed
		c.mu.Unlock()
		c.Connect()
	})
	attempts := c.stats.ReconnectAttempts
	c.mu.Unlock()

	metrics.ReconnectsTotal.Inc()
	c.log.Info("reconnect scheduled", "attempt", attempts, "delay", delay, "cause", cause)
}

// notify invokes fn for every observer outside the connection lock so
// observers may call back into the Conn.
func (c *Conn) notify(fn func(Observer)) {
	c.mu.Lock()
	obs := make([]Observer, len(c.observers))
	copy(obs, c.observers)
	c.mu.Unlock()

	for _, o := range obs {
		fn(o)
	}
}
