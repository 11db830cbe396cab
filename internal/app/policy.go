package app

import "github.com/dkeye/Pairup/internal/domain"

// MatchPolicy decides whether a requester may be paired with a waiting ticket.
type MatchPolicy interface {
	Accept(requester, waiting Ticket) bool
}

// PreferencePolicy pairs tickets whose gender/language preferences
// accept each other. Tickets without attributes accept everyone.
type PreferencePolicy struct{}

func (PreferencePolicy) Accept(requester, waiting Ticket) bool {
	return domain.Compatible(requester.Attrs, waiting.Attrs)
}

// AnyPolicy pairs strictly by arrival.
type AnyPolicy struct{}

func (AnyPolicy) Accept(Ticket, Ticket) bool { return true }
