package app

import (
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/rs/zerolog/log"
)

// PublishResult reports delivery stats to the caller.
type PublishResult struct {
	SendTo  int
	Dropped []core.SessionID
}

// Relay delivers encoded events to connections looked up in the registry.
// A connection that is gone is skipped silently. Delivery is a non-blocking
// enqueue; the transport's write pump does the network I/O.
type Relay struct {
	reg *Registry
}

func NewRelay(reg *Registry) *Relay {
	return &Relay{reg: reg}
}

// SendTo reports whether the frame was enqueued.
func (r *Relay) SendTo(sid core.SessionID, event string, payload any) bool {
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("encode")
		return false
	}
	return r.sendFrame(sid, frame)
}

func (r *Relay) BroadcastRoom(room core.RoomService, event string, payload any, exclude core.SessionID) PublishResult {
	return r.Deliver(room.SessionIDs(), exclude, event, payload)
}

func (r *Relay) BroadcastAll(event string, payload any) PublishResult {
	return r.Deliver(r.reg.SessionIDs(), "", event, payload)
}

// Deliver encodes once and fans out to sids, skipping exclude.
func (r *Relay) Deliver(sids []core.SessionID, exclude core.SessionID, event string, payload any) PublishResult {
	res := PublishResult{}
	frame, err := Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("encode")
		return res
	}
	for _, sid := range sids {
		if sid == exclude {
			continue
		}
		if !r.sendFrame(sid, frame) {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.relay").Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Relay) sendFrame(sid core.SessionID, frame core.Frame) bool {
	sig, ok := r.reg.Signal(sid)
	if !ok {
		metrics.DroppedFrames.Inc()
		return false
	}
	if err := sig.TrySend(frame); err != nil {
		metrics.DroppedFrames.Inc()
		log.Debug().Err(err).Str("module", "app.relay").Str("sid", string(sid)).Msg("frame dropped")
		return false
	}
	return true
}
