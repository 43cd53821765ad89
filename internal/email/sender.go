package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
)

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// NewSender builds the sender described by cfg: SMTP when SMTP_HOST is set,
// a file log when EMAIL_LOG_FILE is set, both when both are, and a logging
// sender otherwise.
func NewSender(cfg *config.Config, logger *zap.Logger) (Sender, error) {
	composite := NewCompositeEmailSender()
	if cfg.SmtpHost != "" {
		smtpSender, err := NewSMTPSender(cfg, logger)
		if err != nil {
			return nil, err
		}
		composite.AddSender(smtpSender)
	}
	if cfg.EmailLogFile != "" {
		fileSender, err := NewFileEmailSender(cfg.EmailLogFile, cfg.SmtpFromAddress, logger)
		if err != nil {
			return nil, err
		}
		composite.AddSender(fileSender)
	}

	switch composite.Len() {
	case 0:
		logger.Info("SMTP host not configured, using logging email sender")
		return NewLoggingSender(cfg.SmtpFromAddress, logger), nil
	case 1:
		return composite.senders[0], nil
	default:
		return composite, nil
	}
}

// LoggingSender only logs the messages it is given.
type LoggingSender struct {
	from   string
	logger *zap.Logger
}

// NewLoggingSender returns a sender that writes messages to logger.
func NewLoggingSender(from string, logger *zap.Logger) *LoggingSender {
	return &LoggingSender{from: from, logger: logger}
}

func (s *LoggingSender) Send(_ context.Context, to []string, subject, body string) error {
	s.logger.Info("Email (logged, not sent)",
		zap.Strings("to", to),
		zap.String("from", s.from),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
