package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/hugh/evently/pkg/config"
)

// New wires the senders selected by EMAIL_PROVIDER and SMS_PROVIDER.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	email, err := newEmailSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sms, err := newSMSSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("notification senders configured", "email", cfg.Email.Provider, "sms", cfg.SMS.Provider)
	return NewNotifier(email, sms, cfg.App.URL, logger), nil
}

func newEmailSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (EmailSender, error) {
	switch cfg.Email.Provider {
	case "resend":
		if cfg.Email.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required for the resend email provider")
		}
		return NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From), nil
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.Email.From), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func newSMSSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (SMSSender, error) {
	switch cfg.SMS.Provider {
	case "twilio":
		if cfg.SMS.TwilioAccountSID == "" || cfg.SMS.TwilioAuthToken == "" || cfg.SMS.TwilioFrom == "" {
			return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER are required for the twilio sms provider")
		}
		return NewTwilioSender(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.TwilioFrom), nil
	case "sns":
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return NewSNSSender(sns.NewFromConfig(awsCfg)), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}
}
