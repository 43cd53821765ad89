package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
)

// SMTPSender sends mail through an SMTP relay using gomail.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) (*SMTPSender, error) {
	if cfg.SmtpHost == "" || cfg.SmtpPort == 0 || cfg.SmtpFromAddress == "" {
		return nil, fmt.Errorf("SMTP host, port and from address must be configured")
	}
	return &SMTPSender{
		from:   cfg.SmtpFromAddress,
		dialer: gomail.NewDialer(cfg.SmtpHost, cfg.SmtpPort, cfg.SmtpUsername, cfg.SmtpPassword),
		logger: logger,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients provided for email")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support, so the dial runs aside and the caller
	// stops waiting once ctx is done.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("Email sending cancelled", zap.Strings("to", to), zap.Error(ctx.Err()))
		return fmt.Errorf("email sending cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp error: %w", err)
		}
	}
	s.logger.Info("Email sent via SMTP", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
