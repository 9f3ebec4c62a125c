// Package notify delivers verification emails and OTP text messages.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Dispatcher is what the verification flow needs from notifications.
type Dispatcher interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendOTP(ctx context.Context, phone, code string) error
}

// Email is a rendered message ready to hand to a provider.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const verificationSubject = "Verify your Evently email"

// Notifier renders messages and hands them to the configured senders.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	appURL string
	logger *slog.Logger
}

var _ Dispatcher = (*Notifier)(nil)

func NewNotifier(email EmailSender, sms SMSSender, appURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		appURL: strings.TrimRight(appURL, "/"),
		logger: logger,
	}
}

// VerificationLink is the page the user lands on from the email.
func (n *Notifier) VerificationLink(token string) string {
	return n.appURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (n *Notifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := n.VerificationLink(token)
	html, err := renderVerificationEmail(verificationEmailData{Link: link})
	if err != nil {
		return err
	}

	msg := Email{
		To:      email,
		Subject: verificationSubject,
		HTML:    html,
		Text:    "Verify your email address by opening this link: " + link + "\n\nThe link expires in 24 hours.",
	}
	if err := n.email.SendEmail(ctx, msg); err != nil {
		return fmt.Errorf("sending verification email: %w", err)
	}

	n.logger.Info("verification email sent", "email", email)
	return nil
}

// OTPMessage is the SMS body carrying a phone verification code.
func OTPMessage(code string) string {
	return "Your Evently verification code is: " + code + ". Valid for 10 minutes."
}

func (n *Notifier) SendOTP(ctx context.Context, phone, code string) error {
	if err := n.sms.SendSMS(ctx, phone, OTPMessage(code)); err != nil {
		return fmt.Errorf("sending otp: %w", err)
	}

	n.logger.Info("otp sent", "phone", maskPhone(phone))
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
