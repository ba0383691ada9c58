// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package statusd is an optional HTTP+WebSocket server that broadcasts a
// live feed of manager tick events to connected operators. It only ever
// reads the immutable TickEvent slice the manager publishes after each
// tick; it never calls back into the repository engine, so the manager
// remains the sole writer of engine state (SPEC_FULL.md §5).
package statusd

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hkoerber/snapbackupd/internal/logging"
	"github.com/hkoerber/snapbackupd/internal/manager"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Operator-facing local tool; no cross-origin browser access to guard.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Event is the JSON shape broadcast to every connected client after a tick.
type Event struct {
	Time         time.Time     `json:"time"`
	Repositories []RepoSummary `json:"repositories"`
}

// RepoSummary is one repository's slice of an Event.
type RepoSummary struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Server broadcasts tick events over WebSocket and answers a plain JSON
// snapshot over HTTP GET via writeJSON.
type Server struct {
	logger logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    Event
}

// New returns a Server with no connected clients yet.
func New(logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard
	}
	return &Server{logger: logger, clients: make(map[*websocket.Conn]struct{})}
}

// Handler builds the mux: GET /status for the last broadcast event as
// plain JSON, GET /ws to upgrade and join the live feed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ev := s.last
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("statusd: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain and discard inbound messages only to detect disconnects; this
	// feed is output-only.
	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Publish turns a manager tick into an Event and broadcasts it to every
// connected client, dropping (and removing) any connection whose write
// fails. Bind this as manager.Manager.Publish.
func (s *Server) Publish(events []manager.TickEvent) {
	ev := Event{Time: time.Now()}
	for _, te := range events {
		rs := RepoSummary{Name: te.Repository, Duration: te.Duration.String()}
		if te.Err != nil {
			rs.Error = te.Err.Error()
		}
		ev.Repositories = append(ev.Repositories, rs)
	}

	s.mu.Lock()
	s.last = ev
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(ev); err != nil {
			s.removeClient(c)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
