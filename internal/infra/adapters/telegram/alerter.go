package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/infra/metrics"
)

var (
	_ adapter.OperatorAlerter = (*Alerter)(nil)
	_ adapter.OperatorAlerter = (*NoopAlerter)(nil)
)

const maxAlertLen = 4096

// Alerter posts operator alerts to one Telegram chat through a bot.
type Alerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewAlerter(token string, chatID int64, timeout time.Duration, logger *zerolog.Logger) (*Alerter, error) {
	return newAlerter(token, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout}, logger)
}

func newAlerter(token string, chatID int64, endpoint string, client *http.Client, logger *zerolog.Logger) (*Alerter, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	l := logger.With().Str("component", "OperatorAlerter").Logger()
	return &Alerter{bot: bot, chatID: chatID, log: &l}, nil
}

// Alert sends text to the operator chat. tgbotapi has no context support, so ctx
// is only checked before the call.
func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > maxAlertLen {
		text = text[:maxAlertLen-3] + "..."
	}
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		metrics.IncOperatorAlert("error")
		return fmt.Errorf("telegram alert: %w", err)
	}
	metrics.IncOperatorAlert("sent")
	return nil
}

// NoopAlerter logs alerts instead of sending them. Used when no operator chat is configured.
type NoopAlerter struct {
	log *zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	l := logger.With().Str("component", "OperatorAlerter").Logger()
	return &NoopAlerter{log: &l}
}

func (n *NoopAlerter) Alert(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("operator alert (telegram disabled)")
	return nil
}
