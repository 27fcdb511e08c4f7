package adapter

import (
	"context"
	"time"
)

// RoleAssigner grants and removes guild roles.
type RoleAssigner interface {
	// duration 0 means permanent; expiry itself is enforced by the storefront.
	AssignRole(ctx context.Context, guildID, userID, roleID string, duration time.Duration) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}

// DirectNotifier sends a private message to a chat user.
// Returns domain.ErrDirectMessagesBlocked when the user does not accept messages.
type DirectNotifier interface {
	SendDirect(ctx context.Context, userID, text string) error
}

// EmailNotifier sends a plain text email.
type EmailNotifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// OperatorAlerter pages the storefront operators. Best effort.
type OperatorAlerter interface {
	Alert(ctx context.Context, text string) error
}

// Translator renders buyer-facing texts by key.
type Translator interface {
	T(key string, args ...any) string
}
