package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Lookup returns the display info for a principal. A missing row is
// core.ErrNotFound; a NULL or empty name falls back to Anonymous.
func (p *Postgres) Lookup(ctx context.Context, pr domain.Principal) (domain.Display, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT COALESCE(name, ''), COALESCE(avatar_url, '')
		FROM users
		WHERE id = $1
	`, string(pr.ID))

	var d domain.Display
	if err := row.Scan(&d.Name, &d.Avatar); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Display{}, fmt.Errorf("user %q: %w", pr.ID, core.ErrNotFound)
		}
		return domain.Display{}, fmt.Errorf("%w: lookup user: %w", core.ErrCollaboratorUnavailable, err)
	}
	return d.OrAnonymous(), nil
}
