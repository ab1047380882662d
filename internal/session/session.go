// Package session wires the collaboration client pipeline behind one
// explicitly constructed, explicitly torn down owner.
package session

import (
	"time"

	"github.com/syncroom/collab-platform/internal/client"
	"github.com/syncroom/collab-platform/internal/event"
	"github.com/syncroom/collab-platform/internal/graph"
	"github.com/syncroom/collab-platform/internal/presence"
	"github.com/syncroom/collab-platform/internal/reducer"
	"github.com/syncroom/collab-platform/internal/sched"
	"github.com/syncroom/collab-platform/internal/whiteboard"
	"github.com/syncroom/collab-platform/pkg/logger"
)

// Config holds the tunables for one session.
type Config struct {
	RelayURL           string
	Self               event.User
	EventLogCap        int
	HeartbeatInterval  time.Duration
	ReconnectInitial   time.Duration
	ReconnectMax       time.Duration
	PresenceStaleAfter time.Duration
	PresenceSweepEvery time.Duration
	CursorStaleAfter   time.Duration
	CursorThrottle     time.Duration
	GraphWidth         float64
	GraphHeight        float64
}

// Session owns the connection and every reducer. Consumers read state
// through the exported fields' snapshot accessors and send through the
// Send* methods; nothing else mutates the derived structures.
type Session struct {
	cfg  Config
	log  *logger.Logger
	norm *event.Normalizer

	Conn       *client.Conn
	Dispatcher *client.Dispatcher
	Outbound   *client.Outbound
	Presence   *presence.Tracker
	Chat       *reducer.Chat
	Cursors    *reducer.Cursors
	Board      *whiteboard.Board
	Graph      *graph.Graph

	tasks *sched.Scheduler
}

// New builds a session. Nothing connects until Start.
func New(cfg Config, log *logger.Logger) *Session {
	if cfg.GraphWidth <= 0 {
		cfg.GraphWidth = 800
	}
	if cfg.GraphHeight <= 0 {
		cfg.GraphHeight = 600
	}

	conn := client.NewConn(client.ConnConfig{
		URL:               cfg.RelayURL,
		Self:              cfg.Self,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectInitial:  cfg.ReconnectInitial,
		ReconnectMax:      cfg.ReconnectMax,
	}, log)

	s := &Session{
		cfg:        cfg,
		log:        log,
		norm:       event.NewNormalizer(),
		Conn:       conn,
		Dispatcher: client.NewDispatcher(cfg.EventLogCap),
		Outbound:   client.NewOutbound(conn, cfg.Self, cfg.CursorThrottle),
		Presence:   presence.NewTracker(cfg.PresenceStaleAfter, log),
		Chat:       reducer.NewChat(),
		Cursors:    reducer.NewCursors(cfg.Self.ID, cfg.CursorStaleAfter, log),
		Graph:      graph.New(cfg.GraphWidth, cfg.GraphHeight, time.Now().UnixNano()),
		tasks:      sched.New(),
	}
	s.Board = whiteboard.New(cfg.Self, s.Outbound, log)

	// Presence first: every attributed event refreshes liveness before
	// the feature reducers run.
	s.Dispatcher.Subscribe(s.Presence)
	s.Dispatcher.Subscribe(s.Chat)
	s.Dispatcher.Subscribe(s.Board)
	s.Dispatcher.Subscribe(s.Cursors)

	conn.Register(s)
	return s
}

// Start connects to the relay and begins the periodic sweeps.
func (s *Session) Start() {
	sweepEvery := s.cfg.PresenceSweepEvery
	if sweepEvery <= 0 {
		sweepEvery = 2 * time.Second
	}
	s.tasks.Every(sweepEvery, func(now time.Time) {
		s.Presence.Sweep(now)
		s.Cursors.Sweep(now)
	})
	s.tasks.Every(time.Second, func(time.Time) {
		s.Graph.Rebuild(s.Presence.Roster(), s.Dispatcher.Log())
	})

	s.Conn.Connect()
}

// Close tears the session down: all periodic work, then the connection.
func (s *Session) Close() {
	s.Outbound.Leave()
	s.tasks.Close()
	s.Conn.Unregister(s)
	s.Conn.Disconnect()
}

// OnOpen announces the local user. Part of the client.Observer interface.
func (s *Session) OnOpen() {
	if ev, ok := s.Outbound.Join(); ok {
		s.Dispatcher.Dispatch(ev)
	}
}

// OnMessage normalizes and dispatches one inbound frame.
func (s *Session) OnMessage(raw []byte) {
	s.Dispatcher.Dispatch(s.norm.Normalize(raw))
}

// OnClose logs the transition; reconnection is the Conn's business.
func (s *Session) OnClose(err error) {
	if err != nil {
		s.log.Warn("session connection closed", "error", err)
	}
}

// OnError surfaces transport errors as log entries only; nothing in the
// pipeline is allowed to be fatal.
func (s *Session) OnError(err error) {
	s.log.Warn("session connection error", "error", err)
}

// SendChat sends a chat message and folds it into local state immediately;
// the relay echo deduplicates by event id.
func (s *Session) SendChat(text string) bool {
	ev, ok := s.Outbound.Chat(text)
	if ok {
		s.Dispatcher.Dispatch(ev)
	}
	return ok
}

// SendCursor sends a throttled cursor position.
func (s *Session) SendCursor(x, y float64) bool {
	_, ok := s.Outbound.Cursor(x, y)
	return ok
}

// SendUserAction sends a user action and folds it into local state.
func (s *Session) SendUserAction(action, target, details string) bool {
	ev, ok := s.Outbound.UserAction(action, target, details)
	if ok {
		s.Dispatcher.Dispatch(ev)
	}
	return ok
}

// SendActivity sends an activity entry and folds it into local state.
func (s *Session) SendActivity(activityType, target, message string) bool {
	ev, ok := s.Outbound.Activity(activityType, target, message)
	if ok {
		s.Dispatcher.Dispatch(ev)
	}
	return ok
}

// Timeline projects the current event log into display items.
func (s *Session) Timeline() []reducer.TimelineItem {
	return reducer.Timeline(s.Dispatcher.Log(), reducer.DefaultTimelineMax)
}
