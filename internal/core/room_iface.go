package core

import (
	"time"

	"github.com/dkeye/Pairup/internal/domain"
)

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []domain.Member
	SessionIDs() []SessionID
	Has(sid SessionID) bool
	Member(sid SessionID) (domain.Member, bool)
	Info() RoomInfo

	AddMember(sid SessionID, m domain.Member) int
	UpdateMember(sid SessionID, m domain.Member) bool
	RemoveMember(sid SessionID) (int, bool)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Topic       string        `json:"topic"`
	Language    string        `json:"language"`
	Level       string        `json:"level"`
	Private     bool          `json:"private"`
	MemberCount int           `json:"members"`
	CreatedAt   time.Time     `json:"created_at"`
}

type RoomManager interface {
	CreateExplicit(id domain.RoomID, meta domain.RoomMeta) (RoomService, error)
	JoinOrCreate(id domain.RoomID) (RoomService, bool)
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID) bool
}
