package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/pkg/crypto"
	"golang.org/x/oauth2"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNoPasswordSet      = errors.New("account uses a sign-in provider")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service struct {
	store     accounts.Store
	jwt       *JWTService
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

func NewService(store accounts.Store, jwt *JWTService, encryptor *crypto.Encryptor, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		jwt:       jwt,
		encryptor: encryptor,
		logger:    logger,
	}
}

// AuthenticateCredentials checks an email and password pair.
func (s *Service) AuthenticateCredentials(ctx context.Context, email, password string) (Identity, error) {
	user, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, err
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		return Identity{}, ErrNoPasswordSet
	}

	if !CheckPassword(password, *user.PasswordHash) {
		return Identity{}, ErrInvalidCredentials
	}

	return IdentityFromUser(user), nil
}

// AuthenticateOAuth finds or creates the user behind a provider profile and
// links the provider account, storing the provider tokens encrypted.
func (s *Service) AuthenticateOAuth(ctx context.Context, provider string, profile Profile, token *oauth2.Token) (Identity, error) {
	if profile.Email == "" {
		return Identity{}, ErrProfileIncomplete
	}

	var user *models.User
	account, err := s.store.FindAccount(ctx, provider, profile.ProviderAccountID)
	switch {
	case err == nil:
		user, err = s.store.FindByID(ctx, account.UserID)
		if err != nil {
			return Identity{}, fmt.Errorf("loading linked user: %w", err)
		}
	case errors.Is(err, accounts.ErrNotFound):
		user, err = s.findOrCreateOAuthUser(ctx, profile)
		if err != nil {
			return Identity{}, err
		}
	default:
		return Identity{}, err
	}

	link, err := s.sealAccount(user.ID, provider, profile.ProviderAccountID, token)
	if err != nil {
		return Identity{}, err
	}
	if err := s.store.LinkAccount(ctx, link); err != nil {
		return Identity{}, err
	}

	s.logger.Info("oauth sign-in", "provider", provider, "user_id", user.ID)
	return IdentityFromUser(user), nil
}

func (s *Service) findOrCreateOAuthUser(ctx context.Context, profile Profile) (*models.User, error) {
	user, err := s.store.FindByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, accounts.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		Email: profile.Email,
		Name:  profile.Name,
		Image: profile.Image,
		Role:  models.RoleUser,
	}
	if profile.EmailVerified {
		now := time.Now()
		user.EmailVerifiedAt = &now
	}

	if err := s.store.Create(ctx, user); err != nil {
		// Lost a race with a concurrent first sign-in for the same email.
		if errors.Is(err, accounts.ErrDuplicateEmail) {
			return s.store.FindByEmail(ctx, profile.Email)
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) sealAccount(userID uuid.UUID, provider, providerAccountID string, token *oauth2.Token) (*models.Account, error) {
	account := &models.Account{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
	}
	if token == nil || s.encryptor == nil {
		return account, nil
	}

	var err error
	if account.EncryptedAccessToken, err = s.encryptor.Seal(token.AccessToken); err != nil {
		return nil, fmt.Errorf("sealing access token: %w", err)
	}
	if account.EncryptedRefreshToken, err = s.encryptor.Seal(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("sealing refresh token: %w", err)
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		account.ExpiresAt = &expiry
	}
	return account, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// IssueSession mints a session token for an authenticated identity.
func (s *Service) IssueSession(id Identity) (string, error) {
	return s.jwt.IssueToken(id)
}

// RefreshSession reissues the current session with the user's latest profile.
func (s *Service) RefreshSession(ctx context.Context, current string) (string, Identity, error) {
	claims, err := s.jwt.ValidateToken(current)
	if err != nil {
		return "", Identity{}, err
	}

	user, err := s.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return "", Identity{}, err
	}

	update := IdentityFromUser(user)
	token, err := s.jwt.RefreshToken(current, update)
	if err != nil {
		return "", Identity{}, err
	}
	return token, update, nil
}
