package signal

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/app"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/rs/zerolog/log"
)

type renamePayload struct {
	Name string `json:"name"`
}

// handleRename replies with whoami; room mates get member_updated.
func (ctl *SignalWSController) handleRename(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p renamePayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	who, err := ctl.Orch.Rename(sid, p.Name)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", who.Name).Msg("rename")
	ctl.sendEvent(conn, app.EventWhoAmI, who)
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn *WsSignalConn) {
	who, err := ctl.Orch.WhoAmI(sid)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	ctl.sendEvent(conn, app.EventWhoAmI, who)
}
