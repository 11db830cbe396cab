package orch

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/dkeye/Pairup/internal/metrics"
	"github.com/rs/zerolog/log"
)

// CreateRoom is the explicit creation path: a taken id, whether held by a
// room or a pairing, is ErrDuplicateRoom. An empty id gets a generated one.
// The new room is empty, so its deletion timer starts right away.
func (o *Orchestrator) CreateRoom(raw string, meta domain.RoomMeta) (core.RoomInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if raw == "" {
		raw = o.newID()
	}
	id, err := domain.ParseRoomID(raw)
	if err != nil {
		return core.RoomInfo{}, err
	}
	if _, taken := o.Pairings.Get(id); taken {
		return core.RoomInfo{}, core.ErrDuplicateRoom
	}
	def := domain.DefaultRoomMeta()
	if meta.Topic == "" {
		meta.Topic = def.Topic
	}
	if meta.Language == "" {
		meta.Language = def.Language
	}
	if meta.Level == "" {
		meta.Level = def.Level
	}
	room, err := o.Rooms.CreateExplicit(id, meta)
	if err != nil {
		return core.RoomInfo{}, err
	}
	o.Reaper.Arm(id, o.reap)
	o.observeRooms()
	info := room.Info()
	o.Relay.BroadcastAll(app.EventRoomCreated, info)
	return info, nil
}

// ListRooms never fails; no rooms is an empty list.
func (o *Orchestrator) ListRooms() []core.RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Rooms.List()
}

func (o *Orchestrator) RoomDetails(id domain.RoomID) (app.RoomState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return app.RoomState{}, core.ErrNotFound
	}
	return app.RoomState{Room: room.Info(), Members: room.MembersSnapshot()}, nil
}

// JoinRoom lazily creates the room, moves sid out of any previous room and
// adds it. The joiner gets room_state, everyone else member_joined.
// user overrides the connection's display snapshot when set.
func (o *Orchestrator) JoinRoom(sid core.SessionID, id domain.RoomID, user *domain.Display) (app.RoomState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, ok := o.Registry.Get(sid)
	if !ok {
		return app.RoomState{}, core.ErrNotConnected
	}
	if _, taken := o.Pairings.Get(id); taken {
		return app.RoomState{}, core.ErrNotMember
	}
	if existing, ok := o.Rooms.GetRoom(id); ok && o.RoomCapacity > 0 &&
		!existing.Has(sid) && existing.MemberCount() >= o.RoomCapacity {
		return app.RoomState{}, core.ErrRoomFull
	}

	if c.RoomID != "" && c.RoomID != id {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(c.RoomID)).Msg("moving to another room")
		o.leaveLocked(sid, c.RoomID)
	}

	room, created := o.Rooms.JoinOrCreate(id)
	if created {
		o.observeRooms()
		o.Relay.BroadcastAll(app.EventRoomCreated, room.Info())
	}
	o.Reaper.Cancel(id)

	d := c.Display()
	if user != nil && user.Name != "" {
		d = *user
	}
	member := domain.NewMember(string(sid), d)
	prev, rejoin := room.Member(sid)
	if rejoin {
		member.Status = prev.Status
	}
	room.AddMember(sid, member)
	o.Registry.SetRoom(sid, id)

	state := app.RoomState{Room: room.Info(), Members: room.MembersSnapshot()}
	o.Relay.SendTo(sid, app.EventRoomState, state)
	if !rejoin || c.RoomID != id {
		o.Relay.BroadcastRoom(room, app.EventMemberJoined, member, sid)
	}
	return state, nil
}

// LeaveRoom is a no-op when the room is gone or sid is not a member.
func (o *Orchestrator) LeaveRoom(sid core.SessionID, id domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.leaveLocked(sid, id)
}

func (o *Orchestrator) leaveLocked(sid core.SessionID, id domain.RoomID) {
	if cur, ok := o.Registry.RoomOf(sid); ok && cur == id {
		o.Registry.SetRoom(sid, "")
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return
	}
	remaining, removed := room.RemoveMember(sid)
	if !removed {
		return
	}
	o.Relay.BroadcastRoom(room, app.EventMemberLeft, app.MemberRef{ID: sid, RoomID: id}, "")
	if remaining == 0 {
		o.Reaper.Arm(id, o.reap)
	}
}

// reap runs on the deletion timer. It re-checks that the room still
// exists and is still empty before deleting.
func (o *Orchestrator) reap(id domain.RoomID, gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Reaper.Claim(id, gen) {
		return
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok || room.MemberCount() != 0 {
		return
	}
	o.Rooms.StopRoom(id)
	o.observeRooms()
	metrics.RoomsReaped.Inc()
	log.Info().Str("module", "orch").Str("room", string(id)).Msg("empty room reaped")
	o.Relay.BroadcastAll(app.EventRoomDeleted, app.RoomRef{RoomID: id})
}

// DeleteRoom evicts every member and removes the room immediately.
func (o *Orchestrator) DeleteRoom(id domain.RoomID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return false
	}
	for _, sid := range room.SessionIDs() {
		room.RemoveMember(sid)
		if cur, ok := o.Registry.RoomOf(sid); ok && cur == id {
			o.Registry.SetRoom(sid, "")
		}
	}
	o.Reaper.Cancel(id)
	o.Rooms.StopRoom(id)
	o.observeRooms()
	o.Relay.BroadcastAll(app.EventRoomDeleted, app.RoomRef{RoomID: id})
	return true
}

// SendMessage delivers to every member including the sender. The id may
// also name a pairing the sender belongs to.
func (o *Orchestrator) SendMessage(sid core.SessionID, id domain.RoomID, message json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	c, ok := o.Registry.Get(sid)
	if !ok {
		return core.ErrNotConnected
	}
	msg := app.ChatMessage{RoomID: id, Message: message, TS: o.now().UnixMilli()}

	if room, ok := o.Rooms.GetRoom(id); ok {
		m, ok := room.Member(sid)
		if !ok {
			return core.ErrNotMember
		}
		msg.From = m
		o.Relay.BroadcastRoom(room, app.EventMessage, msg, "")
		return nil
	}
	if p, ok := o.Pairings.Get(id); ok && p.Has(sid) {
		msg.From = domain.NewMember(string(sid), c.Display())
		o.Relay.Deliver(p.Participants[:], "", app.EventMessage, msg)
		return nil
	}
	return core.ErrNotMember
}

// UpdateStatus merges status into the member snapshot and broadcasts it.
// Non-members are ignored.
func (o *Orchestrator) UpdateStatus(sid core.SessionID, id domain.RoomID, status map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return
	}
	m, ok := room.Member(sid)
	if !ok {
		return
	}
	room.UpdateMember(sid, m.WithStatus(status))
	o.Relay.BroadcastRoom(room, app.EventStatusChange, app.StatusChange{ID: sid, RoomID: id, Status: status}, "")
}

func (o *Orchestrator) Speaking(sid core.SessionID, id domain.RoomID, speaking bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.GetRoom(id)
	if !ok || !room.Has(sid) {
		return
	}
	o.Relay.BroadcastRoom(room, app.EventSpeaking, app.Speaking{ID: sid, RoomID: id, Speaking: speaking}, "")
}

func (o *Orchestrator) observeRooms() {
	metrics.Rooms.Set(float64(len(o.Rooms.List())))
}
