// Package orch is the single owner of cross-store mutations: every public
// operation runs under one mutex so the registry, rooms, pairings and
// queues always change together.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultRecordTimeout = 5 * time.Second

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Pairings *app.PairingStore
	Queues   *app.Matchmaker
	Relay    *app.Relay
	Reaper   *app.Reaper
	Recorder core.MatchRecorder

	// RoomCapacity caps generic rooms; 0 means unlimited.
	RoomCapacity  int
	RecordTimeout time.Duration
	NewID         func() string
	Now           func() time.Time

	mu       sync.Mutex
	inflight sync.WaitGroup
}

type Options struct {
	Clock         app.Clock
	Grace         time.Duration
	Policy        app.MatchPolicy
	Recorder      core.MatchRecorder
	RoomCapacity  int
	RecordTimeout time.Duration
}

func New(opts Options) *Orchestrator {
	reg := app.NewRegistry()
	return &Orchestrator{
		Registry:      reg,
		Rooms:         app.NewRoomManager(),
		Pairings:      app.NewPairingStore(),
		Queues:        app.NewMatchmaker(opts.Policy),
		Relay:         app.NewRelay(reg),
		Reaper:        app.NewReaper(opts.Clock, opts.Grace),
		Recorder:      opts.Recorder,
		RoomCapacity:  opts.RoomCapacity,
		RecordTimeout: opts.RecordTimeout,
	}
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect registers a fresh connection with an already resolved identity.
func (o *Orchestrator) Connect(sid core.SessionID, sess core.MemberSession, id domain.Identity, cancel context.CancelFunc) app.Connection {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Registry.Register(sid, sess, cancel)
	o.Registry.AttachPrincipal(sid, id)
	c, _ := o.Registry.Get(sid)
	metrics.Connections.Set(float64(o.Registry.Len()))
	o.Relay.SendTo(sid, app.EventConnected, app.WhoOf(c))
	return c
}

// Disconnect runs the teardown path. Every step tolerates absent state and
// the registry entry goes last so earlier broadcasts can still use it.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.Registry.Get(sid); !ok {
		return
	}
	o.Queues.Remove(sid)
	if roomID, ok := o.Registry.RoomOf(sid); ok {
		o.leaveLocked(sid, roomID)
	}
	if pid, ok := o.Registry.PairingOf(sid); ok {
		if p, ok := o.Pairings.Get(pid); ok {
			o.teardownPairingLocked(p, sid, app.EventCallEndedByDisconnect)
		}
	}
	o.Registry.Remove(sid)
	metrics.Connections.Set(float64(o.Registry.Len()))
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

func (o *Orchestrator) WhoAmI(sid core.SessionID) (app.Who, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.Registry.Get(sid)
	if !ok {
		return app.Who{}, core.ErrNotConnected
	}
	return app.WhoOf(c), nil
}

// Rename updates the display snapshot and the room member snapshot, if any.
func (o *Orchestrator) Rename(sid core.SessionID, name string) (app.Who, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.Registry.Get(sid)
	if !ok {
		return app.Who{}, core.ErrNotConnected
	}
	d := c.Display()
	if err := d.SetName(name); err != nil {
		return app.Who{}, err
	}
	o.Registry.UpdateDisplay(sid, d)
	if room, ok := o.roomOfLocked(sid); ok {
		if m, ok := room.Member(sid); ok {
			m.Name = d.Name
			room.UpdateMember(sid, m)
			o.Relay.BroadcastRoom(room, app.EventMemberUpdated, m, sid)
		}
	}
	c, _ = o.Registry.Get(sid)
	return app.WhoOf(c), nil
}

type Stats struct {
	Connections int                     `json:"connections"`
	Rooms       int                     `json:"rooms"`
	Pairings    int                     `json:"pairings"`
	Waiting     map[domain.Category]int `json:"waiting"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Stats{
		Connections: o.Registry.Len(),
		Rooms:       len(o.Rooms.List()),
		Pairings:    o.Pairings.Len(),
		Waiting:     make(map[domain.Category]int, len(domain.Categories)),
	}
	for _, c := range domain.Categories {
		s.Waiting[c] = o.Queues.Depth(c)
	}
	return s
}

// Shutdown stops timers, cancels every connection and waits for pending
// match records.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.Reaper.StopAll()
	o.Registry.CancelAll()
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Str("module", "orch").Msg("shutdown: pending match records abandoned")
	}
}

// Wait blocks until detached match records finish.
func (o *Orchestrator) Wait() { o.inflight.Wait() }

func (o *Orchestrator) roomOfLocked(sid core.SessionID) (core.RoomService, bool) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, false
	}
	return o.Rooms.GetRoom(roomID)
}
