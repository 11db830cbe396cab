package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connection is a read-only snapshot of a registry entry.
type Connection struct {
	ID          core.SessionID
	Identity    domain.Identity
	RoomID      domain.RoomID
	PairingID   domain.RoomID
	Session     core.MemberSession
	ConnectedAt time.Time
}

func (c Connection) Display() domain.Display {
	if c.Session == nil {
		return domain.AnonymousDisplay()
	}
	return c.Session.Display()
}

type sessionEntry struct {
	Connection
	Cancel context.CancelFunc
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Register creates an anonymous entry with no room.
func (r *Registry) Register(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &sessionEntry{
		Connection: Connection{
			ID:          sid,
			Identity:    domain.Anonymous(),
			Session:     sess,
			ConnectedAt: time.Now(),
		},
		Cancel: cancel,
	}
	r.sessions[sid] = e
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("registered connection")
	return e.Connection
}

func (r *Registry) AttachPrincipal(sid core.SessionID, id domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Identity = id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Bool("anonymous", id.IsAnonymous()).Msg("attached principal")
	return true
}

func (r *Registry) UpdateDisplay(sid core.SessionID, d domain.Display) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Session == nil {
		return false
	}
	e.Session = e.Session.UpdateDisplay(d)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", d.Name).Msg("updated display")
	return true
}

func (r *Registry) Get(sid core.SessionID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return Connection{}, false
	}
	return e.Connection, true
}

func (r *Registry) Has(sid core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sid]
	return ok
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Session == nil || e.Session.Signal() == nil {
		return nil, false
	}
	return e.Session.Signal(), true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) PairingOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.PairingID == "" {
		return "", false
	}
	return e.PairingID, true
}

// SetRoom records the one generic room of sid; "" clears it.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.RoomID = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

// SetPairing records the active call pairing of sid; "" clears it.
func (r *Registry) SetPairing(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.PairingID = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("pairing", string(room)).Msg("updated pairing")
	return true
}

func (r *Registry) Remove(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed connection")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) SessionIDs() []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0, len(r.sessions))
	for sid := range r.sessions {
		out = append(out, sid)
	}
	return out
}

// Cancel stops the connection's pumps; the read pump then runs the disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// CancelAll is used on shutdown.
func (r *Registry) CancelAll() {
	for _, sid := range r.SessionIDs() {
		r.Cancel(sid)
	}
}
