package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"discord-storefront/internal/config"
	"discord-storefront/internal/domain"
	"discord-storefront/internal/domain/ports/adapter"
)

var _ adapter.EmailNotifier = (*Notifier)(nil)

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier sends plain text notices over SMTP.
type Notifier struct {
	client sender
	from   string
	log    *zerolog.Logger
}

func NewNotifier(cfg config.EmailConfig, timeout time.Duration, logger *zerolog.Logger) (*Notifier, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(timeout),
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return newNotifier(c, cfg.From, logger), nil
}

func newNotifier(c sender, from string, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "EmailNotifier").Logger()
	return &Notifier{client: c, from: from, log: &l}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return fmt.Errorf("%w: from address: %v", domain.ErrInvalidArgument, err)
	}
	if err := m.To(to); err != nil {
		return fmt.Errorf("%w: recipient: %v", domain.ErrInvalidArgument, err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.log.Debug().Str("subject", subject).Msg("email sent")
	return nil
}
