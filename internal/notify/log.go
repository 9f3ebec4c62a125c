package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. Development only.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, msg Email) error {
	s.logger.Info("email (not delivered)", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms (not delivered)", "to", to, "body", body)
	return nil
}
