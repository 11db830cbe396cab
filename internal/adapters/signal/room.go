package signal

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

type createRoomPayload struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Level    string `json:"level"`
	Private  bool   `json:"private"`
}

type roomPayload struct {
	RoomID string `json:"room_id"`
}

type joinPayload struct {
	RoomID string          `json:"room_id"`
	User   *domain.Display `json:"user,omitempty"`
}

type messagePayload struct {
	RoomID  string          `json:"room_id"`
	Message json.RawMessage `json:"message"`
}

type statusPayload struct {
	RoomID string         `json:"room_id"`
	Status map[string]any `json:"status"`
}

type speakingPayload struct {
	RoomID   string `json:"room_id"`
	Speaking bool   `json:"speaking"`
}

type RoomsList struct {
	Rooms []core.RoomInfo `json:"rooms"`
}

// createRoom answers through the lobby-wide room_created broadcast.
func (ctl *SignalWSController) handleCreateRoom(conn *WsSignalConn, data json.RawMessage) {
	var p createRoomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	meta := domain.RoomMeta{Topic: p.Topic, Language: p.Language, Level: p.Level, Private: p.Private}
	info, err := ctl.Orch.CreateRoom(p.ID, meta)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("room", string(info.ID)).Msg("create room")
}

func (ctl *SignalWSController) handleListRooms(conn *WsSignalConn) {
	ctl.sendEvent(conn, app.EventRoomsList, RoomsList{Rooms: ctl.Orch.ListRooms()})
}

func (ctl *SignalWSController) handleJoin(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p joinPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	id, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	if p.User != nil && p.User.Name != "" {
		if err := domain.ValidateUsername(p.User.Name); err != nil {
			ctl.sendErr(conn, err)
			return
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(id)).Msg("join")
	if _, err := ctl.Orch.JoinRoom(sid, id, p.User); err != nil {
		ctl.sendErr(conn, err)
	}
}

// handleLeave leaves the named room, or the current one when none is
// given. The connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	id := domain.RoomID(p.RoomID)
	if id == "" {
		cur, ok := ctl.Orch.Registry.RoomOf(sid)
		if !ok {
			ctl.sendEvent(conn, app.EventLeft, app.RoomRef{})
			return
		}
		id = cur
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(id)).Msg("leave")
	ctl.Orch.LeaveRoom(sid, id)
	ctl.sendEvent(conn, app.EventLeft, app.RoomRef{RoomID: id})
}

func (ctl *SignalWSController) handleSendMessage(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p messagePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.SendMessage(sid, domain.RoomID(p.RoomID), p.Message); err != nil {
		ctl.sendErr(conn, err)
	}
}

func (ctl *SignalWSController) handleRoomDetails(conn *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	st, err := ctl.Orch.RoomDetails(domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.sendEvent(conn, app.EventRoomDetails, st)
}

func (ctl *SignalWSController) handleStatusChange(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p statusPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Orch.UpdateStatus(sid, domain.RoomID(p.RoomID), p.Status)
}

func (ctl *SignalWSController) handleSpeaking(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p speakingPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	ctl.Orch.Speaking(sid, domain.RoomID(p.RoomID), p.Speaking)
}
