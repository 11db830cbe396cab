package app

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

// CreateExplicit never overwrites: a taken id is ErrDuplicateRoom.
func (f *RoomManagerImpl) CreateExplicit(id domain.RoomID, meta domain.RoomMeta) (core.RoomService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; ok {
		return nil, fmt.Errorf("create room %q: %w", id, core.ErrDuplicateRoom)
	}
	room := core.NewRoomService(&domain.Room{ID: id, Meta: meta, CreatedAt: time.Now()})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("topic", meta.Topic).Msg("room created")
	return room, nil
}

// JoinOrCreate returns the room, lazily creating it with default metadata.
// The bool reports whether it was created by this call.
func (f *RoomManagerImpl) JoinOrCreate(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room, false
	}
	room = core.NewRoomService(&domain.Room{ID: id, Meta: domain.DefaultRoomMeta(), CreatedAt: time.Now()})
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created on join")
	return room, true
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

// List is ordered by creation time.
func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r.Info())
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; !ok {
		return false
	}
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room stopped")
	return true
}

func (f *RoomManagerImpl) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}
