package core

import "github.com/dkeye/Pairup/internal/domain"

// SessionID identifies one live transport connection.
type SessionID string

// MemberSession binds a connection's public face and its transport endpoint.
// This is what the registry stores and the relay fans out to.
type MemberSession interface {
	Display() domain.Display
	Signal() SignalConnection
	UpdateDisplay(domain.Display) MemberSession
}

type memberSession struct {
	display domain.Display
	signal  SignalConnection
}

func NewMemberSession(d domain.Display, signal SignalConnection) MemberSession {
	return &memberSession{display: d.OrAnonymous(), signal: signal}
}

func (m *memberSession) Display() domain.Display  { return m.display }
func (m *memberSession) Signal() SignalConnection { return m.signal }

// UpdateDisplay returns a new session; sessions are shared by snapshot.
func (m *memberSession) UpdateDisplay(d domain.Display) MemberSession {
	return &memberSession{display: d.OrAnonymous(), signal: m.signal}
}
