// Package verification runs the email and phone verification flows and the
// USER to ORGANIZER upgrade.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/notify"
	"github.com/hugh/evently/pkg/config"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

// EmailQueue hands verification email delivery to the background worker.
type EmailQueue interface {
	EnqueueVerificationEmail(ctx context.Context, userID uuid.UUID, email, token string) error
}

type Config struct {
	SignupEmail        string // config.SignupEmailOff, Sync or Async
	DefaultCountryCode string
	Queue              EmailQueue
	SendThrottle       *Throttle // keyed by phone
	VerifyThrottle     *Throttle // keyed by user id
}

type Service struct {
	store    accounts.Store
	issuer   *Issuer
	notifier notify.Dispatcher
	cfg      Config
	logger   *slog.Logger
}

func NewService(store accounts.Store, issuer *Issuer, notifier notify.Dispatcher, cfg Config, logger *slog.Logger) *Service {
	if cfg.SignupEmail == "" {
		cfg.SignupEmail = config.SignupEmailOff
	}
	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = DefaultCountryCode
	}
	return &Service{
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignUp creates a credential user with role USER.
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(input.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Role:         models.RoleUser,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID)

	if s.cfg.SignupEmail != config.SignupEmailOff {
		if updated, err := s.sendSignupEmail(ctx, user); err != nil {
			// Signup stands even when the first email cannot be sent.
			s.logger.Warn("signup verification email failed", "user_id", user.ID, "error", err)
		} else {
			user = updated
		}
	}

	return user, nil
}

func (s *Service) sendSignupEmail(ctx context.Context, user *models.User) (*models.User, error) {
	token, expiry, err := s.issuer.IssueEmailToken()
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Update(ctx, user.ID, accounts.Changes{
		"email_verification_token":  token,
		"email_verification_expiry": expiry,
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.SignupEmail == config.SignupEmailAsync && s.cfg.Queue != nil {
		return updated, s.cfg.Queue.EnqueueVerificationEmail(ctx, user.ID, user.Email, token)
	}
	return updated, s.notifier.SendVerificationEmail(ctx, user.Email, token)
}

// VerifyEmail consumes an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}

	user, err := s.store.FindByEmailVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	now := s.issuer.Now()
	if expired(now, user.EmailVerificationExpiry) {
		return ErrTokenExpired
	}

	_, err = s.store.Update(ctx, user.ID, accounts.Changes{
		"email_verified_at":         now,
		"email_verification_token":  nil,
		"email_verification_expiry": nil,
	})
	if err != nil {
		return err
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a new email token, replacing any earlier one, and
// sends it. The token stays valid when delivery fails.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified() {
		return ErrAlreadyVerified
	}

	token, expiry, err := s.issuer.IssueEmailToken()
	if err != nil {
		return err
	}
	if _, err := s.store.Update(ctx, user.ID, accounts.Changes{
		"email_verification_token":  token,
		"email_verification_expiry": expiry,
	}); err != nil {
		return err
	}

	if err := s.notifier.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// SendPhoneOTP starts the organizer upgrade for the signed-in user and
// returns the normalized phone number the code was sent to.
func (s *Service) SendPhoneOTP(ctx context.Context, email, rawPhone string) (string, error) {
	phone, err := NormalizePhone(rawPhone, s.cfg.DefaultCountryCode)
	if err != nil {
		return "", err
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return "", err
	}
	if user.PhoneVerified {
		return "", ErrAlreadyVerified
	}

	if _, err := s.store.FindVerifiedByPhoneExcluding(ctx, phone, user.Email); err == nil {
		return "", ErrPhoneTaken
	} else if !errors.Is(err, accounts.ErrNotFound) {
		return "", err
	}

	allowed, err := s.cfg.SendThrottle.Allow(ctx, phone)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", ErrTooManyRequests
	}

	code, expiry, err := s.issuer.IssueOTP()
	if err != nil {
		return "", err
	}
	if _, err := s.store.Update(ctx, user.ID, accounts.Changes{
		"phone":            phone,
		"phone_otp":        code,
		"phone_otp_expiry": expiry,
	}); err != nil {
		return "", err
	}

	// A fresh code starts a fresh attempt window.
	if err := s.cfg.VerifyThrottle.Reset(ctx, user.ID.String()); err != nil {
		s.logger.Warn("resetting otp attempt counter", "user_id", user.ID, "error", err)
	}

	if err := s.notifier.SendOTP(ctx, phone, code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return phone, nil
}

// VerifyPhoneOTP checks the submitted code and, on success, marks the phone
// verified and upgrades the user to ORGANIZER in one update.
func (s *Service) VerifyPhoneOTP(ctx context.Context, email, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: otp is required", ErrInvalidInput)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	attemptKey := user.ID.String()
	allowed, err := s.cfg.VerifyThrottle.Allow(ctx, attemptKey)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrTooManyRequests
	}

	if user.PhoneOTP == nil || subtle.ConstantTimeCompare([]byte(*user.PhoneOTP), []byte(code)) != 1 {
		return nil, ErrInvalidOTP
	}
	if expired(s.issuer.Now(), user.PhoneOTPExpiry) {
		return nil, ErrOTPExpired
	}

	updated, err := s.store.Update(ctx, user.ID, accounts.Changes{
		"phone_verified":   true,
		"phone_otp":        nil,
		"phone_otp_expiry": nil,
		// ADMIN keeps its role.
		"role": gorm.Expr("CASE WHEN role = ? THEN role ELSE ? END", models.RoleAdmin, models.RoleOrganizer),
	})
	if err != nil {
		return nil, err
	}

	if err := s.cfg.VerifyThrottle.Reset(ctx, attemptKey); err != nil {
		s.logger.Warn("resetting otp attempt counter", "user_id", user.ID, "error", err)
	}

	s.logger.Info("phone verified", "user_id", user.ID, "role", updated.Role)
	return updated, nil
}

// Status is the verification summary shown by /check-role.
type Status struct {
	Role          models.Role `json:"role"`
	EmailVerified bool        `json:"emailVerified"`
	PhoneVerified bool        `json:"phoneVerified"`
}

func (s *Service) Status(ctx context.Context, email string) (Status, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Role:          user.Role,
		EmailVerified: user.EmailVerified(),
		PhoneVerified: user.PhoneVerified,
	}, nil
}

// PurgeExpired clears token and OTP fields that can no longer be used.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.ClearExpiredVerifications(ctx, s.issuer.Now())
}

// DeliverVerificationEmail sends the email for a queued signup, skipping
// tokens that were replaced or consumed since they were queued.
func (s *Service) DeliverVerificationEmail(ctx context.Context, userID uuid.UUID, token string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if user.EmailVerified() || user.EmailVerificationToken == nil || *user.EmailVerificationToken != token {
		s.logger.Info("skipping stale verification email", "user_id", userID)
		return nil
	}
	if err := s.notifier.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (s *Service) findUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}
