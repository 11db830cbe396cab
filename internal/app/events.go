package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

// Outbound event names.
const (
	EventConnected             = "connected"
	EventRoomCreated           = "room_created"
	EventRoomsList             = "rooms_list"
	EventRoomState             = "room_state"
	EventRoomDetails           = "room_details"
	EventMemberJoined          = "member_joined"
	EventMemberLeft            = "member_left"
	EventMemberUpdated         = "member_updated"
	EventRoomDeleted           = "room_deleted"
	EventMessage               = "message"
	EventStatusChange          = "status_change"
	EventSpeaking              = "speaking"
	EventSearching             = "searching"
	EventPartnerFound          = "partner_found"
	EventPeerJoinedCall        = "peer_joined_call"
	EventCallEnded             = "call_ended"
	EventCallEndedByDisconnect = "call_ended_by_disconnect"
	EventWhoAmI                = "whoami"
	EventPong                  = "pong"
	EventLeft                  = "left"
	EventError                 = "error"
)

// Envelope is the single wire shape in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(event string, payload any) (core.Frame, error) {
	env := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{event, payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

type RoomState struct {
	Room    core.RoomInfo   `json:"room"`
	Members []domain.Member `json:"members"`
}

type RoomRef struct {
	RoomID domain.RoomID `json:"room_id"`
}

type MemberRef struct {
	ID     core.SessionID `json:"id"`
	RoomID domain.RoomID  `json:"room_id"`
}

type ChatMessage struct {
	RoomID  domain.RoomID   `json:"room_id"`
	From    domain.Member   `json:"from"`
	Message json.RawMessage `json:"message"`
	TS      int64           `json:"ts"`
}

type StatusChange struct {
	ID     core.SessionID `json:"id"`
	RoomID domain.RoomID  `json:"room_id"`
	Status map[string]any `json:"status"`
}

type Speaking struct {
	ID       core.SessionID `json:"id"`
	RoomID   domain.RoomID  `json:"room_id"`
	Speaking bool           `json:"speaking"`
}

type Searching struct {
	Category domain.Category `json:"category"`
}

// PartnerFound carries the other side's display info only.
type PartnerFound struct {
	RoomID    domain.RoomID   `json:"room_id"`
	Category  domain.Category `json:"category"`
	PartnerID core.SessionID  `json:"partner_id"`
	Partner   domain.Display  `json:"partner"`
}

type PeerJoinedCall struct {
	RoomID domain.RoomID  `json:"room_id"`
	PeerID core.SessionID `json:"peer_id"`
}

type Who struct {
	ID        core.SessionID `json:"id"`
	Name      string         `json:"name"`
	Avatar    string         `json:"avatar,omitempty"`
	Anonymous bool           `json:"anonymous"`
	Room      domain.RoomID  `json:"room,omitempty"`
	Pairing   domain.RoomID  `json:"pairing,omitempty"`
	Since     time.Time      `json:"since"`
}

func WhoOf(c Connection) Who {
	d := c.Display()
	return Who{
		ID:        c.ID,
		Name:      d.Name,
		Avatar:    d.Avatar,
		Anonymous: c.Identity.IsAnonymous(),
		Room:      c.RoomID,
		Pairing:   c.PairingID,
		Since:     c.ConnectedAt,
	}
}
