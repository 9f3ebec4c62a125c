package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/database/models"
	"golang.org/x/oauth2"
)

// Authenticator defines the sign-in operations used by the HTTP layer.
type Authenticator interface {
	AuthenticateCredentials(ctx context.Context, email, password string) (Identity, error)
	AuthenticateOAuth(ctx context.Context, provider string, profile Profile, token *oauth2.Token) (Identity, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	IssueSession(id Identity) (string, error)
	RefreshSession(ctx context.Context, current string) (string, Identity, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	IssueToken(id Identity) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	RefreshToken(current string, update Identity) (string, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ Provider      = (*GoogleProvider)(nil)
	_ Provider      = (*FacebookProvider)(nil)
)
