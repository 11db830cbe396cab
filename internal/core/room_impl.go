package core

import (
	"sync"

	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[SessionID]domain.Member
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]domain.Member),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) Member(sid SessionID) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.bySID[sid]
	return m, ok
}

// AddMember inserts or replaces the member and returns the new count.
func (r *roomImpl) AddMember(sid SessionID, m domain.Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = string(sid)
	r.bySID[sid] = m
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member added")
	return len(r.bySID)
}

func (r *roomImpl) UpdateMember(sid SessionID, m domain.Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return false
	}
	m.ID = string(sid)
	r.bySID[sid] = m
	return true
}

// RemoveMember reports the remaining count and whether sid was a member.
func (r *roomImpl) RemoveMember(sid SessionID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return len(r.bySID), false
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member removed")
	return len(r.bySID), true
}

func (r *roomImpl) MembersSnapshot() []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Member, 0, len(r.bySID))
	for _, m := range r.bySID {
		out = append(out, m)
	}
	return out
}

func (r *roomImpl) SessionIDs() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionID, 0, len(r.bySID))
	for sid := range r.bySID {
		out = append(out, sid)
	}
	return out
}

func (r *roomImpl) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{
		ID:          r.room.ID,
		Topic:       r.room.Meta.Topic,
		Language:    r.room.Meta.Language,
		Level:       r.room.Meta.Level,
		Private:     r.room.Meta.Private,
		MemberCount: len(r.bySID),
		CreatedAt:   r.room.CreatedAt,
	}
}
