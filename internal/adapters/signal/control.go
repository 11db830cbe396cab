package signal

import "github.com/dkeye/Pairup/internal/app"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendEvent(conn, app.EventPong, nil)
}
