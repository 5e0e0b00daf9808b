// Package eventstream runs a loopback WebSocket server broadcasting session
// lifecycle events to any local subscriber. The UI rendering layer is an
// external collaborator; this package gives a host something concrete to
// subscribe to without specifying how frames get drawn.
package eventstream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one session lifecycle notification.
type Event struct {
	Type      string    `json:"type"` // "connected", "disconnected"
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
}

// Server accepts WebSocket subscribers and broadcasts Events to all of
// them. With no subscribers connected, Broadcast is a no-op.
type Server struct {
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan Event
}

// New builds a Server. Call Handler to get an http.Handler to mount, and
// ListenAndServe for a minimal standalone listener.
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*subscriber]struct{}),
	}
}

// Handler upgrades incoming HTTP requests to WebSocket subscriptions.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("eventstream upgrade failed", "error", err)
			return
		}
		s.serve(conn)
	})
}

// ListenAndServe starts a standalone HTTP server mounting Handler at /events
// on addr. It blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", s.Handler())
	s.log.Info("eventstream listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) serve(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, out: make(chan Event, 32)}

	s.mu.Lock()
	s.clients[sub] = struct{}{}
	s.mu.Unlock()

	defer conn.Close()

	go func() {
		// Drain client-originated frames only to notice disconnects;
		// this feed is one-directional (server -> subscriber).
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(sub)
				return
			}
		}
	}()

	for evt := range sub.out {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(sub)
			return
		}
	}
}

// drop removes sub from the broadcast set and then closes its queue. The
// removal happens under the same lock Broadcast holds while sending, so once
// drop returns no broadcast can reach the closed channel. Safe to call from
// both the reader and writer paths; only the call that actually removes the
// subscriber closes the channel.
func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	_, present := s.clients[sub]
	delete(s.clients, sub)
	s.mu.Unlock()
	if present {
		close(sub.out)
	}
}

// Broadcast sends evt to every currently connected subscriber, dropping it
// for any subscriber whose outbound queue is full rather than blocking.
func (s *Server) Broadcast(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.clients {
		select {
		case sub.out <- evt:
		default:
			s.log.Warn("eventstream subscriber queue full, dropping event", "type", evt.Type, "session_id", evt.SessionID)
		}
	}
}

// NotifyFunc adapts Broadcast to registry.EventFunc's signature.
func (s *Server) NotifyFunc() func(event, sessionID string) {
	return func(event, sessionID string) {
		s.Broadcast(Event{Type: event, SessionID: sessionID, Time: time.Now()})
	}
}
