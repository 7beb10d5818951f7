package mailer

import (
	"context"
	"fmt"

	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mailer sends plain-text notification emails over SMTP
type Mailer struct {
	config *Config
	logger *logger.Logger
}

// New creates a mailer
func New(cfg *Config, log *logger.Logger) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mailer{config: cfg, logger: log}, nil
}

// Send delivers one message. A new SMTP connection is made per send;
// reminder volume is low enough that pooling is not worth the state.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.config.FromName, m.config.FromAddr); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %s: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.config.SMTPPort),
		mail.WithTimeout(m.config.ConnectTimeout),
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	} else {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthNoAuth))
	}

	client, err := mail.NewClient(m.config.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("email send failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
