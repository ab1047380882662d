// Package main runs a headless collaboration agent: it joins a relay,
// folds the event stream like a real client, and generates light traffic.
// Useful for demos and for soaking a relay deployment.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syncroom/collab-platform/internal/config"
	"github.com/syncroom/collab-platform/internal/identity"
	"github.com/syncroom/collab-platform/internal/session"
	"github.com/syncroom/collab-platform/pkg/logger"
)

func main() {
	cfg := config.Load()

	name := flag.String("name", "agent", "display name announced to the room")
	relayURL := flag.String("relay", cfg.RelayURL, "relay websocket URL")
	chatEvery := flag.Duration("chat-every", 15*time.Second, "interval between generated chat messages (0 disables)")
	cursor := flag.Bool("cursor", true, "generate cursor movement")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	store, err := identity.Open(cfg.IdentityPath)
	if err != nil {
		log.Error("failed to open identity store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	self, err := store.Load(*name)
	if err != nil {
		log.Error("failed to load identity", "error", err)
		os.Exit(1)
	}
	if *name != "" && *name != self.Name {
		store.SetName(*name)
		self.Name = *name
	}

	log.Info("starting agent", "user_id", self.ID, "name", self.Name, "relay", *relayURL)

	sess := session.New(session.Config{
		RelayURL:           *relayURL,
		Self:               self,
		EventLogCap:        cfg.EventLogCap,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		ReconnectInitial:   cfg.ReconnectInitial,
		ReconnectMax:       cfg.ReconnectMax,
		PresenceStaleAfter: cfg.PresenceStaleAfter,
		PresenceSweepEvery: cfg.PresenceSweepEvery,
		CursorStaleAfter:   cfg.CursorStaleAfter,
		CursorThrottle:     cfg.CursorThrottle,
	}, log)
	sess.Start()
	defer sess.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	chatTick := time.NewTicker(pollInterval(*chatEvery))
	defer chatTick.Stop()
	cursorTick := time.NewTicker(200 * time.Millisecond)
	defer cursorTick.Stop()
	reportTick := time.NewTicker(10 * time.Second)
	defer reportTick.Stop()

	x, y := 400.0, 300.0
	for {
		select {
		case <-chatTick.C:
			if *chatEvery > 0 {
				sess.SendChat(fmt.Sprintf("%s checking in at %s", self.Name, time.Now().Format(time.Kitchen)))
			}
		case <-cursorTick.C:
			if *cursor {
				x += rand.Float64()*40 - 20
				y += rand.Float64()*40 - 20
				x, y = clamp(x, 0, 800), clamp(y, 0, 600)
				sess.SendCursor(x, y)
			}
		case <-reportTick.C:
			stats := sess.Conn.Stats()
			log.Info("agent status",
				"state", sess.Conn.State(),
				"received", stats.MessagesReceived,
				"sent", stats.MessagesSent,
				"collaborators", len(sess.Presence.Roster()),
				"chat_messages", len(sess.Chat.Messages()),
			)
		case <-stop:
			log.Info("agent shutting down")
			return
		}
	}
}

// pollInterval guards ticker creation against a zero interval.
func pollInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
