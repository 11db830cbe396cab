package app

import (
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Ticket is a waiting queue entry.
type Ticket struct {
	SID        core.SessionID
	Attrs      *domain.Attributes
	EnqueuedAt time.Time
}

// Matchmaker holds one FIFO queue per category.
// A session is in at most one queue.
type Matchmaker struct {
	mu     sync.Mutex
	queues map[domain.Category][]Ticket
	policy MatchPolicy
}

func NewMatchmaker(policy MatchPolicy) *Matchmaker {
	if policy == nil {
		policy = PreferencePolicy{}
	}
	m := &Matchmaker{
		queues: make(map[domain.Category][]Ticket, len(domain.Categories)),
		policy: policy,
	}
	for _, c := range domain.Categories {
		m.queues[c] = nil
	}
	return m
}

// Match removes and returns the first waiting ticket the policy accepts
// for req. Tickets whose session is no longer alive are purged on the way.
func (m *Matchmaker) Match(cat domain.Category, req Ticket, alive func(core.SessionID) bool) (Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[cat]
	kept := q[:0:0]
	var (
		found Ticket
		ok    bool
	)
	for i, t := range q {
		if alive != nil && !alive(t.SID) {
			log.Debug().Str("module", "app.matchmaker").Str("sid", string(t.SID)).Msg("purged stale ticket")
			continue
		}
		if t.SID != req.SID && m.policy.Accept(req, t) {
			found, ok = t, true
			kept = append(kept, q[i+1:]...)
			break
		}
		kept = append(kept, t)
	}
	m.queues[cat] = kept
	m.observe(cat)
	return found, ok
}

// Enqueue appends to the tail. Callers remove sid from every queue first.
func (m *Matchmaker) Enqueue(cat domain.Category, t Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[cat] = append(m.queues[cat], t)
	m.observe(cat)
	log.Info().Str("module", "app.matchmaker").Str("sid", string(t.SID)).Str("category", string(cat)).Int("depth", len(m.queues[cat])).Msg("enqueued")
}

// Remove drops sid from every queue and returns the categories it was in.
func (m *Matchmaker) Remove(sid core.SessionID) []domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Category
	for cat, q := range m.queues {
		for i, t := range q {
			if t.SID != sid {
				continue
			}
			m.queues[cat] = append(q[:i:i], q[i+1:]...)
			out = append(out, cat)
			m.observe(cat)
			break
		}
	}
	if len(out) > 0 {
		log.Info().Str("module", "app.matchmaker").Str("sid", string(sid)).Msg("removed from queues")
	}
	return out
}

// Waiting reports the category sid is queued in.
func (m *Matchmaker) Waiting(sid core.SessionID) (domain.Category, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for cat, q := range m.queues {
		for _, t := range q {
			if t.SID == sid {
				return cat, true
			}
		}
	}
	return "", false
}

func (m *Matchmaker) Depth(cat domain.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[cat])
}

// Queued returns the queue contents head first.
func (m *Matchmaker) Queued(cat domain.Category) []core.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.SessionID, 0, len(m.queues[cat]))
	for _, t := range m.queues[cat] {
		out = append(out, t.SID)
	}
	return out
}

func (m *Matchmaker) observe(cat domain.Category) {
	metrics.QueueDepth.WithLabelValues(string(cat)).Set(float64(len(m.queues[cat])))
}
