package signal

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var errSDPTypeMismatch = errors.New("sdp type does not match message type")

type descriptionPayload struct {
	RoomID string          `json:"room_id"`
	SDP    json.RawMessage `json:"sdp"`
}

type candidatePayload struct {
	RoomID        string          `json:"room_id"`
	Candidate     json.RawMessage `json:"candidate"`
	SDPMid        *string         `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16         `json:"sdpMLineIndex,omitempty"`
}

// Description is what the peer receives for offer and answer.
type Description struct {
	RoomID domain.RoomID             `json:"room_id"`
	From   core.SessionID            `json:"from"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

type Candidate struct {
	RoomID    domain.RoomID           `json:"room_id"`
	From      core.SessionID          `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (ctl *SignalWSController) handleJoinCall(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	if err := ctl.Orch.JoinCall(sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendErr(conn, err)
	}
}

// handleDescription validates an offer or answer and forwards it to the
// other participant. The SDP is parsed but never applied here.
func (ctl *SignalWSController) handleDescription(sid core.SessionID, conn *WsSignalConn, kind string, data json.RawMessage) {
	var p descriptionPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	desc, err := parseDescription(kind, p.SDP)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", kind).Msg("rejected description")
		ctl.sendError(conn, codeInvalidSDP, err.Error())
		return
	}
	roomID := domain.RoomID(p.RoomID)
	out, err := json.Marshal(Description{RoomID: roomID, From: sid, SDP: desc})
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	if err := ctl.Orch.Forward(sid, roomID, kind, out); err != nil {
		ctl.sendErr(conn, err)
	}
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p candidatePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	cand, err := parseCandidate(p)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("rejected candidate")
		ctl.sendError(conn, codeInvalidICE, err.Error())
		return
	}
	roomID := domain.RoomID(p.RoomID)
	out, err := json.Marshal(Candidate{RoomID: roomID, From: sid, Candidate: cand})
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	if err := ctl.Orch.Forward(sid, roomID, msgICECandidate, out); err != nil {
		ctl.sendErr(conn, err)
	}
}

func (ctl *SignalWSController) handleEndCall(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	if p.RoomID == "" {
		cur, ok := ctl.Orch.Registry.PairingOf(sid)
		if !ok {
			return
		}
		p.RoomID = string(cur)
	}
	if err := ctl.Orch.EndCall(sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendErr(conn, err)
	}
}

// parseDescription accepts either a bare SDP string or a full
// {type, sdp} object.
func parseDescription(kind string, raw json.RawMessage) (webrtc.SessionDescription, error) {
	want := webrtc.NewSDPType(kind)
	var desc webrtc.SessionDescription
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		desc = webrtc.SessionDescription{Type: want, SDP: text}
	} else if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, err
	}
	if desc.Type != want {
		return desc, errSDPTypeMismatch
	}
	if _, err := desc.Unmarshal(); err != nil {
		return desc, err
	}
	return desc, nil
}

// parseCandidate accepts the candidate as a string with sibling
// sdpMid/sdpMLineIndex, or as an RTCIceCandidateInit object. An empty
// candidate marks end of candidates and is passed through.
func parseCandidate(p candidatePayload) (webrtc.ICECandidateInit, error) {
	var init webrtc.ICECandidateInit
	var text string
	if err := json.Unmarshal(p.Candidate, &text); err == nil {
		init = webrtc.ICECandidateInit{Candidate: text, SDPMid: p.SDPMid, SDPMLineIndex: p.SDPMLineIndex}
	} else if err := json.Unmarshal(p.Candidate, &init); err != nil {
		return init, err
	}
	if init.Candidate == "" {
		return init, nil
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(init.Candidate, "a="), "candidate:")
	if _, err := ice.UnmarshalCandidate(raw); err != nil {
		return init, err
	}
	return init, nil
}
