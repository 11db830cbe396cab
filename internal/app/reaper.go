package app

import (
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultRoomGrace is how long an empty room survives.
const DefaultRoomGrace = 60 * time.Second

type Timer interface {
	Stop() bool
}

// Clock schedules deferred work. The real clock is time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func RealClock() Clock { return realClock{} }

type pendingReap struct {
	timer Timer
	gen   uint64
}

// Reaper owns at most one deletion timer per room.
// Arming always cancels the previous timer for that room.
type Reaper struct {
	mu     sync.Mutex
	clock  Clock
	grace  time.Duration
	seq    uint64
	timers map[domain.RoomID]pendingReap
}

func NewReaper(clock Clock, grace time.Duration) *Reaper {
	if clock == nil {
		clock = RealClock()
	}
	if grace <= 0 {
		grace = DefaultRoomGrace
	}
	return &Reaper{
		clock:  clock,
		grace:  grace,
		timers: make(map[domain.RoomID]pendingReap),
	}
}

func (r *Reaper) Grace() time.Duration { return r.grace }

// Arm schedules fire(id, gen) after the grace period. fire must call Claim
// with gen before acting, so a timer that lost a race with Cancel is inert.
func (r *Reaper) Arm(id domain.RoomID, fire func(id domain.RoomID, gen uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[id]; ok {
		old.timer.Stop()
	}
	r.seq++
	gen := r.seq
	t := r.clock.AfterFunc(r.grace, func() { fire(id, gen) })
	r.timers[id] = pendingReap{timer: t, gen: gen}
	log.Info().Str("module", "app.reaper").Str("room", string(id)).Dur("grace", r.grace).Msg("deletion timer armed")
}

func (r *Reaper) Cancel(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.timers[id]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(r.timers, id)
	log.Info().Str("module", "app.reaper").Str("room", string(id)).Msg("deletion timer canceled")
	return true
}

// Claim reports whether gen is the live timer for id and forgets it.
func (r *Reaper) Claim(id domain.RoomID, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.timers[id]
	if !ok || p.gen != gen {
		return false
	}
	delete(r.timers, id)
	return true
}

func (r *Reaper) Pending(id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[id]
	return ok
}

func (r *Reaper) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.timers {
		p.timer.Stop()
		delete(r.timers, id)
	}
}
