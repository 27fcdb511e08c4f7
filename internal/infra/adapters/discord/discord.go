package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/adapter"
)

var (
	_ adapter.RoleAssigner   = (*Client)(nil)
	_ adapter.DirectNotifier = (*Client)(nil)
)

// maxMessageLen is Discord's limit for one message body.
const maxMessageLen = 2000

// session is the subset of *discordgo.Session the storefront uses.
type session interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client grants roles and sends direct messages through the bot account.
type Client struct {
	s   session
	log *zerolog.Logger
}

func NewClient(token string, timeout time.Duration, logger *zerolog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if timeout > 0 {
		s.Client = &http.Client{Timeout: timeout}
	}
	s.ShouldRetryOnRateLimit = true
	s.MaxRestRetries = 2
	return newClient(s, logger), nil
}

func newClient(s session, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "DiscordClient").Logger()
	return &Client{s: s, log: &l}
}

// AssignRole adds roleID to the member. Expiry is tracked by the storefront, not by Discord.
func (c *Client) AssignRole(ctx context.Context, guildID, userID, roleID string, duration time.Duration) error {
	if guildID == "" || userID == "" || roleID == "" {
		return domain.ErrInvalidArgument
	}
	if err := c.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("assign role %s: %w", roleID, mapError(err))
	}
	c.log.Debug().Str("guild_id", guildID).Str("user_id", userID).Str("role_id", roleID).Dur("duration", duration).Msg("role assigned")
	return nil
}

// RevokeRole removes roleID. A member that already left the guild counts as revoked.
func (c *Client) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	err := c.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	if code := errorCode(err); code == discordgo.ErrCodeUnknownMember || code == discordgo.ErrCodeUnknownRole {
		c.log.Info().Str("guild_id", guildID).Str("user_id", userID).Int("code", code).Msg("role already gone")
		return nil
	}
	return fmt.Errorf("revoke role %s: %w", roleID, mapError(err))
}

// SendDirect opens (or reuses) the DM channel with userID and posts text.
func (c *Client) SendDirect(ctx context.Context, userID, text string) error {
	ch, err := c.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	for _, part := range chunk(text, maxMessageLen) {
		if _, err := c.s.ChannelMessageSend(ch.ID, part, discordgo.WithContext(ctx)); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func errorCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code
	}
	return 0
}

func mapError(err error) error {
	switch errorCode(err) {
	case discordgo.ErrCodeCannotSendMessagesToThisUser:
		return fmt.Errorf("%w: %v", domain.ErrDirectMessagesBlocked, err)
	case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case discordgo.ErrCodeMissingPermissions:
		return fmt.Errorf("%w: %v", domain.ErrForbidden, err)
	}
	return err
}

// chunk splits s into pieces of at most n bytes without breaking UTF-8 sequences.
func chunk(s string, n int) []string {
	if len(s) <= n {
		return []string{s}
	}
	var out []string
	for len(s) > n {
		cut := n
		for cut > 0 && !utf8Start(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
