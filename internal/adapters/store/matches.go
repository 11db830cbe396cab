package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/rs/zerolog/log"
)

// RecordMatch appends one match_logs row. Unauthenticated sides are
// stored as "anonymous".
func (p *Postgres) RecordMatch(ctx context.Context, a, b domain.Identity, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO match_logs (user_a, user_b, matched_at)
		VALUES ($1, $2, $3)
	`, a.RecordID(), b.RecordID(), at.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert match log: %w", core.ErrCollaboratorUnavailable, err)
	}
	log.Debug().Str("module", "store.matches").Str("a", a.RecordID()).Str("b", b.RecordID()).Msg("match recorded")
	return nil
}
