package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/testutil"
	"github.com/hugh/evently/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*auth.Service, *gorm.DB, *crypto.Encryptor) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	svc := auth.NewService(accounts.NewGormStore(db), testutil.CreateTestJWTService(), enc, testutil.Logger())
	return svc, db, enc
}

func TestService_AuthenticateCredentials(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db)
	oauthOnly := testutil.CreateTestUser(t, db, testutil.WithoutPassword())

	t.Run("valid credentials", func(t *testing.T) {
		id, err := svc.AuthenticateCredentials(ctx, user.Email, testutil.TestPassword)
		require.NoError(t, err)
		assert.Equal(t, auth.IdentityFromUser(user), id)
	})

	t.Run("surrounding whitespace in email", func(t *testing.T) {
		_, err := svc.AuthenticateCredentials(ctx, "  "+user.Email+" ", testutil.TestPassword)
		assert.NoError(t, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.AuthenticateCredentials(ctx, "nobody@example.com", testutil.TestPassword)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("oauth-only account", func(t *testing.T) {
		_, err := svc.AuthenticateCredentials(ctx, oauthOnly.Email, testutil.TestPassword)
		assert.ErrorIs(t, err, auth.ErrNoPasswordSet)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.AuthenticateCredentials(ctx, user.Email, "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestService_AuthenticateOAuth(t *testing.T) {
	svc, db, enc := newTestService(t)
	ctx := context.Background()
	profile := auth.Profile{
		ProviderAccountID: "g-1",
		Email:             "new@example.com",
		EmailVerified:     true,
		Name:              "New Person",
		Image:             "https://img/new.png",
	}
	token := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour)}

	t.Run("first sign-in creates user and link", func(t *testing.T) {
		id, err := svc.AuthenticateOAuth(ctx, "google", profile, token)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", id.Email)
		assert.Equal(t, "New Person", id.Name)

		var user models.User
		require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
		assert.Nil(t, user.PasswordHash)
		assert.Equal(t, models.RoleUser, user.Role)
		assert.True(t, user.EmailVerified())

		var account models.Account
		require.NoError(t, db.Where("provider = ? AND provider_account_id = ?", "google", "g-1").First(&account).Error)
		assert.Equal(t, user.ID, account.UserID)
		assert.NotContains(t, string(account.EncryptedAccessToken), "access-1")

		access, err := enc.Open(account.EncryptedAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "access-1", access)
	})

	t.Run("repeat sign-in refreshes stored tokens", func(t *testing.T) {
		next := &oauth2.Token{AccessToken: "access-2"}
		first, err := svc.AuthenticateOAuth(ctx, "google", profile, next)
		require.NoError(t, err)

		var count int64
		db.Model(&models.Account{}).Where("provider = ?", "google").Count(&count)
		assert.Equal(t, int64(1), count)

		var account models.Account
		require.NoError(t, db.Where("provider_account_id = ?", "g-1").First(&account).Error)
		access, err := enc.Open(account.EncryptedAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "access-2", access)

		var user models.User
		require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
		assert.Equal(t, user.ID, first.ID)
	})

	t.Run("links a second provider to an existing email", func(t *testing.T) {
		existing := testutil.CreateTestUser(t, db)
		fb := auth.Profile{ProviderAccountID: "fb-9", Email: existing.Email, Name: "FB Name"}

		id, err := svc.AuthenticateOAuth(ctx, "facebook", fb, nil)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, id.ID)
		assert.Equal(t, existing.Name, id.Name)
	})

	t.Run("profile without email", func(t *testing.T) {
		_, err := svc.AuthenticateOAuth(ctx, "google", auth.Profile{ProviderAccountID: "x"}, token)
		assert.ErrorIs(t, err, auth.ErrProfileIncomplete)
	})
}

func TestService_RefreshSession(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.CreateTestUser(t, db)

	current, err := svc.IssueSession(auth.IdentityFromUser(user))
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("name", "Renamed").Error)

	token, id, err := svc.RefreshSession(ctx, current)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", id.Name)
	assert.NotEmpty(t, token)

	t.Run("deleted user", func(t *testing.T) {
		require.NoError(t, db.Delete(&models.User{}, "id = ?", user.ID).Error)
		_, _, err := svc.RefreshSession(ctx, current)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, _, err := svc.RefreshSession(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
