package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"authcore/internal/config"
)

// Sender delivers security notices over SMTP. Without SMTP settings the
// sender stays disabled so local development works without a mail server.
type Sender struct {
	cfg    config.EmailConfig
	client *mail.Client
}

func NewSender(cfg config.EmailConfig) (*Sender, error) {
	if !cfg.Enabled() {
		return &Sender{cfg: cfg}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Secure {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &Sender{cfg: cfg, client: client}, nil
}

func (s *Sender) Enabled() bool {
	return s.client != nil
}

func (s *Sender) Send(ctx context.Context, to, subject, text, html string) error {
	if s.client == nil {
		return fmt.Errorf("email is not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)

	if text != "" {
		msg.SetBodyString(mail.TypeTextPlain, text)
	}
	if html != "" {
		if text != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, html)
		} else {
			msg.SetBodyString(mail.TypeTextHTML, html)
		}
	}

	return s.client.DialAndSendWithContext(ctx, msg)
}
