// Package registry implements the process-wide, concurrency-safe mapping
// from session identifier to live session that the embedding facade drives.
package registry

import (
	"log/slog"
	"sync"

	"github.com/shadowmesh/harmonydesk/pkg/session"
)

// Info is a point-in-time, detached snapshot of a session: safe to hold,
// never extends the session's lifetime.
type Info struct {
	ID           string
	Connected    bool
	ScreenWidth  uint32
	ScreenHeight uint32
}

// Connector performs the phase 1-6 connection sequence and hands back a
// live session. pkg/connect satisfies this; registry depends on the
// interface rather than the concrete orchestrator so tests can substitute a
// fake one without opening real sockets.
type Connector interface {
	Connect(sessionID, secret string) (*session.Session, error)
}

// EventFunc is notified of session lifecycle transitions. Registry calls it
// synchronously but never lets a slow or panicking subscriber block session
// bookkeeping for long; pkg/eventstream's Broadcast is safe to pass here
// directly since it never blocks.
type EventFunc func(event, sessionID string)

// pipeline is the per-session video-pipeline handle the registry tracks
// alongside the session itself, so that stopping video delivery can happen
// as an explicit first step of teardown, independent of closing the socket.
type pipeline struct {
	sess *session.Session
}

func (p *pipeline) stop() {
	p.sess.ClearFrames()
}

// Registry is a concurrent sessionID -> Session map, with a parallel map of
// video-pipeline handles, guarded by one mutex. The mutex is held only for
// map bookkeeping; all network I/O happens with it released.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*session.Session
	pipelines map[string]*pipeline

	connector Connector
	log       *slog.Logger
	onEvent   EventFunc
}

// New builds an empty Registry. connector performs the actual connect
// sequence for ids not already present.
func New(connector Connector, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions:  make(map[string]*session.Session),
		pipelines: make(map[string]*pipeline),
		connector: connector,
		log:       log,
	}
}

// SetEventFunc installs a lifecycle event callback. Passing nil disables
// notification.
func (r *Registry) SetEventFunc(f EventFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvent = f
}

func (r *Registry) notify(event, id string) {
	r.mu.Lock()
	f := r.onEvent
	r.mu.Unlock()
	if f != nil {
		f(event, id)
	}
}

// Connect returns the existing session's info if id is already present,
// performing no network I/O. Otherwise it runs the full connect sequence
// and inserts the result on success; a failure leaves no trace in the
// registry.
func (r *Registry) Connect(id, secret string) (Info, error) {
	r.mu.Lock()
	if sess, ok := r.sessions[id]; ok {
		info := infoFor(id, sess)
		r.mu.Unlock()
		return info, nil
	}
	r.mu.Unlock()

	sess, err := r.connector.Connect(id, secret)
	if err != nil {
		r.log.Warn("registry connect failed", "session_id", id, "error", err)
		return Info{}, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		// Lost a race with a concurrent Connect(id, ...): keep the
		// winner, discard the session we just built.
		info := infoFor(id, existing)
		r.mu.Unlock()
		sess.Close()
		return info, nil
	}
	r.sessions[id] = sess
	r.pipelines[id] = &pipeline{sess: sess}
	r.mu.Unlock()

	r.log.Info("registry connect succeeded", "session_id", id)
	r.notify("connected", id)
	return infoFor(id, sess), nil
}

// Disconnect stops id's video pipeline and then its session, in that order,
// and removes both from the registry. A missing id is a no-op.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	pl, hasPipeline := r.pipelines[id]
	sess, hasSession := r.sessions[id]
	delete(r.pipelines, id)
	delete(r.sessions, id)
	r.mu.Unlock()

	if hasPipeline {
		pl.stop()
	}
	if hasSession {
		sess.Close()
		r.log.Info("registry disconnect complete", "session_id", id)
		r.notify("disconnected", id)
	}
}

// DisconnectAll snapshots the current ids and disconnects each, so that a
// connect racing this call either completes before the snapshot (and gets
// torn down) or after (and is left running, to be torn down on the next
// DisconnectAll).
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Disconnect(id)
	}
}

// SendKeyEvent forwards to id's session if present; it is a no-op otherwise.
func (r *Registry) SendKeyEvent(id string, key uint32, pressed bool) {
	if sess, ok := r.get(id); ok {
		if err := sess.SendKeyEvent(key, pressed); err != nil {
			r.log.Warn("send key event failed", "session_id", id, "error", err)
		}
	}
}

// SendMouseMove forwards to id's session if present; it is a no-op
// otherwise.
func (r *Registry) SendMouseMove(id string, x, y int32) {
	if sess, ok := r.get(id); ok {
		if err := sess.SendMouseMove(x, y); err != nil {
			r.log.Warn("send mouse move failed", "session_id", id, "error", err)
		}
	}
}

// SendMouseClick forwards to id's session if present; it is a no-op
// otherwise.
func (r *Registry) SendMouseClick(id string, button uint32, pressed bool) {
	if sess, ok := r.get(id); ok {
		if err := sess.SendMouseClick(button, pressed); err != nil {
			r.log.Warn("send mouse click failed", "session_id", id, "error", err)
		}
	}
}

// List returns a snapshot of every live session's info.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.sessions))
	for id, sess := range r.sessions {
		out = append(out, infoFor(id, sess))
	}
	return out
}

// Count reports how many sessions are currently live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// First returns the id and session that come first in map iteration order,
// matching the embedding layer's "first live session" input-routing
// simplification. Go map iteration order is unspecified and intentionally
// not stabilized here: a caller relying on which session is "first" is
// relying on that simplification, not on a guarantee this package makes.
func (r *Registry) First() (string, *session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		return id, sess, true
	}
	return "", nil, false
}

func (r *Registry) get(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func infoFor(id string, sess *session.Session) Info {
	w, h := sess.RemoteScreenSize()
	return Info{
		ID:           id,
		Connected:    sess.State() == session.StateActive,
		ScreenWidth:  w,
		ScreenHeight: h,
	}
}
