package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

// Pairing is a two-member room produced by matchmaking.
// It is torn down as a whole, never drained.
type Pairing struct {
	ID           domain.RoomID
	Category     domain.Category
	Participants [2]core.SessionID
	CreatedAt    time.Time
}

func (p Pairing) Has(sid core.SessionID) bool {
	return p.Participants[0] == sid || p.Participants[1] == sid
}

// Other returns the participant that is not sid.
func (p Pairing) Other(sid core.SessionID) (core.SessionID, bool) {
	switch sid {
	case p.Participants[0]:
		return p.Participants[1], true
	case p.Participants[1]:
		return p.Participants[0], true
	}
	return "", false
}

type PairingStore struct {
	mu   sync.RWMutex
	byID map[domain.RoomID]Pairing
}

func NewPairingStore() *PairingStore {
	return &PairingStore{byID: make(map[domain.RoomID]Pairing)}
}

func (s *PairingStore) Create(p Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return fmt.Errorf("create pairing %q: %w", p.ID, core.ErrDuplicateRoom)
	}
	s.byID[p.ID] = p
	log.Info().Str("module", "app.pairings").Str("room", string(p.ID)).Str("category", string(p.Category)).
		Str("a", string(p.Participants[0])).Str("b", string(p.Participants[1])).Msg("pairing created")
	return nil
}

func (s *PairingStore) Get(id domain.RoomID) (Pairing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

func (s *PairingStore) Delete(id domain.RoomID) (Pairing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return Pairing{}, false
	}
	delete(s.byID, id)
	log.Info().Str("module", "app.pairings").Str("room", string(id)).Msg("pairing deleted")
	return p, true
}

func (s *PairingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
