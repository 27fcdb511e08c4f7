package model

import (
	"time"

	"github.com/google/uuid"
)

// RoleGrant tracks a time-limited role handed out by a ROLE delivery.
type RoleGrant struct {
	ID          string
	OrderID     string
	ServerID    string
	UserID      string
	RoleID      string
	ExpiresAt   time.Time
	GracePeriod time.Duration
	AutoRenew   bool
	RevokedAt   *time.Time
	CreatedAt   time.Time
}

// NewRoleGrant returns nil for permanent roles (no duration).
func NewRoleGrant(o *Order, policy *RolePolicy, grantedAt time.Time) *RoleGrant {
	if policy == nil || policy.Duration <= 0 {
		return nil
	}
	return &RoleGrant{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		ServerID:    o.ServerID,
		UserID:      o.BuyerID,
		RoleID:      policy.RoleID,
		ExpiresAt:   grantedAt.Add(policy.Duration),
		GracePeriod: policy.GracePeriod,
		AutoRenew:   policy.AutoRenew,
		CreatedAt:   grantedAt,
	}
}

// RevocableAt is the earliest moment the role may be removed.
func (g *RoleGrant) RevocableAt() time.Time { return g.ExpiresAt.Add(g.GracePeriod) }

// Due reports whether the grant should be revoked at now.
func (g *RoleGrant) Due(now time.Time) bool {
	return g.RevokedAt == nil && !g.AutoRenew && !now.Before(g.RevocableAt())
}
