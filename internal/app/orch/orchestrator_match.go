package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/rs/zerolog/log"
)

const maxIDAttempts = 8

var errIDExhausted = errors.New("orch: no free room id")

// FindPartner leaves any queue and any active pairing, then either pairs
// sid with the first compatible waiter or queues it.
func (o *Orchestrator) FindPartner(sid core.SessionID, cat domain.Category, attrs *domain.Attributes) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, ok := o.Registry.Get(sid)
	if !ok {
		return core.ErrNotConnected
	}
	o.Queues.Remove(sid)
	if pid, ok := o.Registry.PairingOf(sid); ok {
		if p, ok := o.Pairings.Get(pid); ok {
			o.teardownPairingLocked(p, sid, app.EventCallEnded)
		} else {
			o.Registry.SetPairing(sid, "")
		}
	}

	req := app.Ticket{SID: sid, Attrs: attrs, EnqueuedAt: o.now()}
	partner, found := o.Queues.Match(cat, req, o.Registry.Has)
	if !found {
		o.Queues.Enqueue(cat, req)
		o.Relay.SendTo(sid, app.EventSearching, app.Searching{Category: cat})
		return nil
	}

	other, ok := o.Registry.Get(partner.SID)
	if !ok {
		o.Queues.Enqueue(cat, req)
		o.Relay.SendTo(sid, app.EventSearching, app.Searching{Category: cat})
		return nil
	}
	var p app.Pairing
	id, err := o.newPairingIDLocked()
	if err == nil {
		p = app.Pairing{
			ID:           id,
			Category:     cat,
			Participants: [2]core.SessionID{partner.SID, sid},
			CreatedAt:    o.now(),
		}
		err = o.Pairings.Create(p)
	}
	if err != nil {
		// Both go back to the tail.
		o.Queues.Enqueue(cat, partner)
		o.Queues.Enqueue(cat, req)
		return err
	}
	o.Registry.SetPairing(partner.SID, id)
	o.Registry.SetPairing(sid, id)
	metrics.Pairings.Set(float64(o.Pairings.Len()))
	metrics.Matches.WithLabelValues(string(cat)).Inc()

	o.Relay.SendTo(partner.SID, app.EventPartnerFound, app.PartnerFound{RoomID: id, Category: cat, PartnerID: sid, Partner: c.Display()})
	o.Relay.SendTo(sid, app.EventPartnerFound, app.PartnerFound{RoomID: id, Category: cat, PartnerID: partner.SID, Partner: other.Display()})

	o.recordMatch(other.Identity, c.Identity, p)
	return nil
}

// CancelSearch removes sid from every queue. Not waiting is not an error.
func (o *Orchestrator) CancelSearch(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Queues.Remove(sid)
}

// newPairingIDLocked draws ids until one is free among rooms and pairings.
func (o *Orchestrator) newPairingIDLocked() (domain.RoomID, error) {
	for range maxIDAttempts {
		id := domain.RoomID(o.newID())
		if id == "" {
			continue
		}
		if _, taken := o.Rooms.GetRoom(id); taken {
			continue
		}
		if _, taken := o.Pairings.Get(id); taken {
			continue
		}
		return id, nil
	}
	return "", errIDExhausted
}

// recordMatch persists the match off the lock. Failure never affects the
// pairing.
func (o *Orchestrator) recordMatch(a, b domain.Identity, p app.Pairing) {
	if o.Recorder == nil {
		return
	}
	timeout := o.RecordTimeout
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	rec := o.Recorder
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := rec.RecordMatch(ctx, a, b, p.CreatedAt); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(p.ID)).Msg("record match failed")
		}
	}()
}
