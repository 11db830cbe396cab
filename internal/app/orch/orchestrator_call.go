package orch

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/rs/zerolog/log"
)

// JoinCall tells the other participant that sid is ready for the offer.
func (o *Orchestrator) JoinCall(sid core.SessionID, id domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	other, err := o.peerLocked(sid, id)
	if err != nil {
		return err
	}
	o.Relay.SendTo(other, app.EventPeerJoinedCall, app.PeerJoinedCall{RoomID: id, PeerID: sid})
	return nil
}

// Forward relays an offer, answer or ICE candidate payload verbatim to the
// other participant.
func (o *Orchestrator) Forward(sid core.SessionID, id domain.RoomID, event string, payload json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	other, err := o.peerLocked(sid, id)
	if err != nil {
		return err
	}
	if !o.Relay.SendTo(other, event, payload) {
		log.Debug().Str("module", "orch").Str("room", string(id)).Str("event", event).Msg("peer unreachable")
	}
	return nil
}

// EndCall tears the pairing down. An unknown pairing is a no-op, so the
// second of two racing hang-ups is harmless.
func (o *Orchestrator) EndCall(sid core.SessionID, id domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.Pairings.Get(id)
	if !ok {
		return nil
	}
	if !p.Has(sid) {
		return core.ErrNotMember
	}
	o.teardownPairingLocked(p, sid, app.EventCallEnded)
	return nil
}

func (o *Orchestrator) peerLocked(sid core.SessionID, id domain.RoomID) (core.SessionID, error) {
	p, ok := o.Pairings.Get(id)
	if !ok {
		return "", core.ErrNotFound
	}
	other, ok := p.Other(sid)
	if !ok {
		return "", core.ErrNotMember
	}
	return other, nil
}

// teardownPairingLocked deletes p, clears both registry entries and sends
// event to the side that did not initiate.
func (o *Orchestrator) teardownPairingLocked(p app.Pairing, initiator core.SessionID, event string) {
	if _, ok := o.Pairings.Delete(p.ID); !ok {
		return
	}
	for _, sid := range p.Participants {
		if cur, ok := o.Registry.PairingOf(sid); ok && cur == p.ID {
			o.Registry.SetPairing(sid, "")
		}
	}
	metrics.Pairings.Set(float64(o.Pairings.Len()))
	if other, ok := p.Other(initiator); ok {
		o.Relay.SendTo(other, event, app.RoomRef{RoomID: p.ID})
	}
	log.Info().Str("module", "orch").Str("room", string(p.ID)).Str("by", string(initiator)).Str("reason", event).Msg("pairing ended")
}
