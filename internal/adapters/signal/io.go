package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Inbound message types.
const (
	msgCreateRoom   = "create_room"
	msgListRooms    = "list_rooms"
	msgJoinRoom     = "join_room"
	msgLeaveRoom    = "leave_room"
	msgSendMessage  = "send_message"
	msgRoomDetails  = "room_details"
	msgStatusChange = "status_change"
	msgSpeaking     = "speaking"
	msgFindPartner  = "find_partner"
	msgCancelSearch = "cancel_search"
	msgJoinCall     = "join_call"
	msgOffer        = "offer"
	msgAnswer       = "answer"
	msgICECandidate = "ice_candidate"
	msgEndCall      = "end_call"
	msgRename       = "rename"
	msgWhoAmI       = "whoami"
	msgPing         = "ping"
)

// Error codes carried by error frames.
const (
	codeBadPayload      = "bad_payload"
	codeUnknownType     = "unknown_type"
	codeRateLimited     = "rate_limited"
	codeDuplicateRoom   = "duplicate_room"
	codeRoomFull        = "room_full"
	codeNotFound        = "not_found"
	codeNotMember       = "not_member"
	codeInvalidRoomID   = "invalid_room_id"
	codeUnknownCategory = "unknown_category"
	codeInvalidName     = "invalid_name"
	codeInvalidSDP      = "invalid_sdp"
	codeInvalidICE      = "invalid_candidate"
	codeNotConnected    = "not_connected"
	codeInternal        = "internal"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

// readPump owns the connection lifetime: when it returns the session is
// torn down.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		cancel()
		c.Close()
	}()

	pongWait := ctl.pingPeriod() * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	var env app.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, codeBadPayload, "message must be {type, payload}")
		return
	}
	if env.Type != msgPing && ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		ctl.sendError(c, codeRateLimited, "too many messages")
		return
	}

	switch env.Type {
	case msgCreateRoom:
		ctl.handleCreateRoom(c, env.Payload)
	case msgListRooms:
		ctl.handleListRooms(c)
	case msgJoinRoom:
		ctl.handleJoin(sid, c, env.Payload)
	case msgLeaveRoom:
		ctl.handleLeave(sid, c, env.Payload)
	case msgSendMessage:
		ctl.handleSendMessage(sid, c, env.Payload)
	case msgRoomDetails:
		ctl.handleRoomDetails(c, env.Payload)
	case msgStatusChange:
		ctl.handleStatusChange(sid, c, env.Payload)
	case msgSpeaking:
		ctl.handleSpeaking(sid, c, env.Payload)
	case msgFindPartner:
		ctl.handleFindPartner(sid, c, env.Payload)
	case msgCancelSearch:
		ctl.Orch.CancelSearch(sid)
	case msgJoinCall:
		ctl.handleJoinCall(sid, c, env.Payload)
	case msgOffer, msgAnswer:
		ctl.handleDescription(sid, c, env.Type, env.Payload)
	case msgICECandidate:
		ctl.handleCandidate(sid, c, env.Payload)
	case msgEndCall:
		ctl.handleEndCall(sid, c, env.Payload)
	case msgRename:
		ctl.handleRename(sid, c, env.Payload)
	case msgWhoAmI:
		ctl.handleWhoAmI(sid, c)
	case msgPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, codeUnknownType, env.Type)
	}
}

// decode unmarshals payload into v, replying with bad_payload on failure.
// An absent payload decodes as the zero value.
func (ctl *SignalWSController) decode(c *WsSignalConn, payload json.RawMessage, v any) bool {
	if len(payload) == 0 {
		return true
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad payload")
		ctl.sendError(c, codeBadPayload, err.Error())
		return false
	}
	return true
}

func (ctl *SignalWSController) sendEvent(c *WsSignalConn, event string, payload any) {
	frame, err := app.Encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("sendEvent marshal")
		return
	}
	if err := c.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("event", event).Msg("sendEvent dropped")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code, msg string) {
	ctl.sendEvent(c, app.EventError, ErrorPayload{Code: code, Message: msg})
}

// sendErr maps a domain or core error onto an error frame.
func (ctl *SignalWSController) sendErr(c *WsSignalConn, err error) {
	ctl.sendError(c, errorCode(err), err.Error())
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateRoom):
		return codeDuplicateRoom
	case errors.Is(err, core.ErrRoomFull):
		return codeRoomFull
	case errors.Is(err, core.ErrNotFound):
		return codeNotFound
	case errors.Is(err, core.ErrNotMember):
		return codeNotMember
	case errors.Is(err, core.ErrNotConnected):
		return codeNotConnected
	case errors.Is(err, domain.ErrRoomIDInvalid):
		return codeInvalidRoomID
	case errors.Is(err, domain.ErrUnknownCategory):
		return codeUnknownCategory
	case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong):
		return codeInvalidName
	}
	return codeInternal
}
