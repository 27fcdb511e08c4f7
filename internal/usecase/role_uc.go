package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/metrics"
)

// Compile-time check
var _ RoleUseCase = (*roleUC)(nil)

type RoleUseCase interface {
	// RevokeExpired removes roles whose grant plus grace period ended before now.
	// Auto-renewing grants are never returned by the store. Returns how many were revoked.
	RevokeExpired(ctx context.Context, now time.Time, batch int) (int, error)
}

type roleUC struct {
	grants  repository.RoleGrantRepository
	roles   adapter.RoleAssigner
	timeout time.Duration
	log     *zerolog.Logger
}

func NewRoleUseCase(grants repository.RoleGrantRepository, roles adapter.RoleAssigner, timeout time.Duration, logger *zerolog.Logger) *roleUC {
	l := logger.With().Str("component", "RoleUC").Logger()
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &roleUC{grants: grants, roles: roles, timeout: timeout, log: &l}
}

func (u *roleUC) RevokeExpired(ctx context.Context, now time.Time, batch int) (int, error) {
	due, err := u.grants.ListDue(ctx, repository.NoTX, now, batch)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, g := range due {
		if !g.Due(now) {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, u.timeout)
		err := u.roles.RevokeRole(callCtx, g.ServerID, g.UserID, g.RoleID)
		cancel()
		if err != nil {
			metrics.IncRoleRevocation("error")
			u.log.Warn().Err(err).Str("grant_id", g.ID).Str("role_id", g.RoleID).Msg("revoke role failed; retrying next tick")
			continue
		}
		if err := u.grants.MarkRevoked(ctx, repository.NoTX, g.ID, now); err != nil {
			metrics.IncRoleRevocation("error")
			u.log.Error().Err(err).Str("grant_id", g.ID).Msg("mark grant revoked failed")
			continue
		}
		metrics.IncRoleRevocation("revoked")
		revoked++
	}
	return revoked, nil
}
