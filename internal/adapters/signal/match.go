package signal

import (
	"encoding/json"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

type findPartnerPayload struct {
	Category   string             `json:"category"`
	Attributes *domain.Attributes `json:"attributes,omitempty"`
}

func (ctl *SignalWSController) handleFindPartner(sid core.SessionID, conn *WsSignalConn, data json.RawMessage) {
	var p findPartnerPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	cat, err := domain.ParseCategory(p.Category)
	if err != nil {
		ctl.sendErr(conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("category", string(cat)).Msg("find partner")
	if err := ctl.Orch.FindPartner(sid, cat, p.Attributes); err != nil {
		ctl.sendErr(conn, err)
	}
}
