package core

import (
	"context"
	"time"

	"github.com/dkeye/Pairup/internal/domain"
)

//go:generate mockgen -source=collaborators.go -destination=mock/collaborators_mock.go -package=mock

// Authenticator turns a handshake credential into an identity.
// It never fails: anything unverifiable is Anonymous.
type Authenticator interface {
	Resolve(ctx context.Context, credential string) domain.Identity
}

// MatchRecorder persists a pairing. Called fire-and-forget.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, a, b domain.Identity, at time.Time) error
}

// Directory looks up the public face of a principal.
type Directory interface {
	Lookup(ctx context.Context, p domain.Principal) (domain.Display, error)
}
