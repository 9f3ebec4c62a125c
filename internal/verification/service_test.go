package verification_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/testutil"
	"github.com/hugh/evently/internal/verification"
	"github.com/hugh/evently/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeDispatcher struct {
	emails map[string]string // email -> last token
	otps   map[string]string // phone -> last code
	err    error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{emails: map[string]string{}, otps: map[string]string{}}
}

func (f *fakeDispatcher) SendVerificationEmail(_ context.Context, email, token string) error {
	if f.err != nil {
		return f.err
	}
	f.emails[email] = token
	return nil
}

func (f *fakeDispatcher) SendOTP(_ context.Context, phone, code string) error {
	if f.err != nil {
		return f.err
	}
	f.otps[phone] = code
	return nil
}

type fakeQueue struct {
	userIDs []uuid.UUID
	tokens  []string
}

func (q *fakeQueue) EnqueueVerificationEmail(_ context.Context, userID uuid.UUID, _, token string) error {
	q.userIDs = append(q.userIDs, userID)
	q.tokens = append(q.tokens, token)
	return nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	svc      *verification.Service
	db       *gorm.DB
	store    *accounts.GormStore
	notifier *fakeDispatcher
	clock    *clock
}

func newHarness(t *testing.T, cfg verification.Config) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := accounts.NewGormStore(db)
	c := &clock{now: time.Now().UTC().Truncate(time.Millisecond)}
	notifier := newFakeDispatcher()
	svc := verification.NewService(store, verification.NewIssuer(c.Now, nil), notifier, cfg, testutil.Logger())
	return &harness{svc: svc, db: db, store: store, notifier: notifier, clock: c}
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	user, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func TestService_SignUp(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()

	user, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Name, "name defaults to the email local part")
	assert.Equal(t, models.RoleUser, user.Role)
	require.NotNil(t, user.PasswordHash)
	assert.True(t, auth.CheckPassword("secret1", *user.PasswordHash))
	assert.Nil(t, user.EmailVerificationToken, "signup email is off by default")
	assert.Empty(t, h.notifier.emails)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "ada@example.com", Password: "another1"})
		assert.ErrorIs(t, err, verification.ErrEmailTaken)

		var count int64
		h.db.Model(&models.User{}).Where("email = ?", "ada@example.com").Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("invalid input", func(t *testing.T) {
		cases := []verification.SignUpInput{
			{Email: "", Password: "secret1"},
			{Email: "bob@example.com", Password: ""},
			{Email: "bob@example.com", Password: "12345"},
			{Email: "bob@example.com", Password: "ééé"}, // 6 bytes, 3 characters
		}
		for _, in := range cases {
			_, err := h.svc.SignUp(ctx, in)
			assert.ErrorIs(t, err, verification.ErrInvalidInput)
		}
	})

	t.Run("six multi-byte characters", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "zoe@example.com", Password: "éééééé"})
		assert.NoError(t, err)
	})

	t.Run("passphrase longer than 72 bytes", func(t *testing.T) {
		passphrase := strings.Repeat("naïve passphrase ", 6)
		require.Greater(t, len(passphrase), 72)

		user, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "long@example.com", Password: passphrase})
		require.NoError(t, err)
		require.NotNil(t, user.PasswordHash)
		assert.True(t, auth.CheckPassword(passphrase, *user.PasswordHash))
	})
}

func TestService_SignUp_EmailModes(t *testing.T) {
	ctx := context.Background()

	t.Run("sync sends inline", func(t *testing.T) {
		h := newHarness(t, verification.Config{SignupEmail: config.SignupEmailSync})
		user, err := h.svc.SignUp(ctx, verification.SignUpInput{Name: "Bo", Email: "bo@example.com", Password: "secret1"})
		require.NoError(t, err)
		require.NotNil(t, user.EmailVerificationToken)
		assert.Equal(t, *user.EmailVerificationToken, h.notifier.emails["bo@example.com"])
	})

	t.Run("sync delivery failure keeps the account", func(t *testing.T) {
		h := newHarness(t, verification.Config{SignupEmail: config.SignupEmailSync})
		h.notifier.err = errors.New("smtp down")
		_, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "cy@example.com", Password: "secret1"})
		require.NoError(t, err)

		_, err = h.store.FindByEmail(ctx, "cy@example.com")
		assert.NoError(t, err)
	})

	t.Run("async enqueues", func(t *testing.T) {
		q := &fakeQueue{}
		h := newHarness(t, verification.Config{SignupEmail: config.SignupEmailAsync, Queue: q})
		user, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "di@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{user.ID}, q.userIDs)
		assert.Equal(t, *user.EmailVerificationToken, q.tokens[0])
		assert.Empty(t, h.notifier.emails)
	})
}

func TestService_VerifyEmail(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	user := testutil.CreateTestUser(t, h.db)

	require.NoError(t, h.svc.ResendVerification(ctx, user.Email))
	token := h.notifier.emails[user.Email]
	require.Len(t, token, 64)

	require.NoError(t, h.svc.VerifyEmail(ctx, token))

	got := h.reload(t, user.ID)
	require.NotNil(t, got.EmailVerifiedAt)
	assert.True(t, got.EmailVerifiedAt.Equal(h.clock.now))
	assert.Nil(t, got.EmailVerificationToken)
	assert.Nil(t, got.EmailVerificationExpiry)

	t.Run("token cannot be reused", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.VerifyEmail(ctx, token), verification.ErrInvalidToken)
	})

	t.Run("resend after verification", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.ResendVerification(ctx, user.Email), verification.ErrAlreadyVerified)
	})

	t.Run("unknown and empty tokens", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.VerifyEmail(ctx, "deadbeef"), verification.ErrInvalidToken)
		assert.ErrorIs(t, h.svc.VerifyEmail(ctx, " "), verification.ErrInvalidInput)
	})
}

func TestService_VerifyEmail_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, expiry time.Duration) (*harness, *models.User) {
		h := newHarness(t, verification.Config{})
		user := testutil.CreateTestUser(t, h.db)
		_, err := h.store.Update(ctx, user.ID, accounts.Changes{
			"email_verification_token":  "tok-" + user.ID.String(),
			"email_verification_expiry": h.clock.now.Add(expiry),
		})
		require.NoError(t, err)
		return h, user
	}

	t.Run("expired one millisecond ago", func(t *testing.T) {
		h, user := setup(t, -time.Millisecond)
		err := h.svc.VerifyEmail(ctx, "tok-"+user.ID.String())
		assert.ErrorIs(t, err, verification.ErrTokenExpired)
		assert.Nil(t, h.reload(t, user.ID).EmailVerifiedAt)
	})

	t.Run("expiring exactly now", func(t *testing.T) {
		h, user := setup(t, 0)
		assert.ErrorIs(t, h.svc.VerifyEmail(ctx, "tok-"+user.ID.String()), verification.ErrTokenExpired)
	})

	t.Run("one millisecond left", func(t *testing.T) {
		h, user := setup(t, time.Millisecond)
		require.NoError(t, h.svc.VerifyEmail(ctx, "tok-"+user.ID.String()))
		assert.NotNil(t, h.reload(t, user.ID).EmailVerifiedAt)
	})
}

func TestService_ResendVerification(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	user := testutil.CreateTestUser(t, h.db)

	require.NoError(t, h.svc.ResendVerification(ctx, user.Email))
	first := h.notifier.emails[user.Email]
	require.NoError(t, h.svc.ResendVerification(ctx, user.Email))
	second := h.notifier.emails[user.Email]
	require.NotEqual(t, first, second)

	t.Run("earlier token is invalidated", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.VerifyEmail(ctx, first), verification.ErrInvalidToken)
		assert.NoError(t, h.svc.VerifyEmail(ctx, second))
	})

	t.Run("unknown email", func(t *testing.T) {
		assert.ErrorIs(t, h.svc.ResendVerification(ctx, "ghost@example.com"), verification.ErrNotFound)
	})

	t.Run("delivery failure leaves token valid", func(t *testing.T) {
		other := testutil.CreateTestUser(t, h.db)
		h.notifier.err = errors.New("provider down")
		defer func() { h.notifier.err = nil }()

		err := h.svc.ResendVerification(ctx, other.Email)
		assert.ErrorIs(t, err, verification.ErrDeliveryFailed)

		stored := h.reload(t, other.ID).EmailVerificationToken
		require.NotNil(t, stored)
		assert.NoError(t, h.svc.VerifyEmail(ctx, *stored))
	})
}

func TestService_PhoneFlow(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	user := testutil.CreateTestUser(t, h.db)

	phone, err := h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
	require.NoError(t, err)
	assert.Equal(t, "+2348011112222", phone)

	got := h.reload(t, user.ID)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+2348011112222", *got.Phone)
	require.NotNil(t, got.PhoneOTP)
	assert.Regexp(t, `^[0-9]{6}$`, *got.PhoneOTP)
	assert.Equal(t, *got.PhoneOTP, h.notifier.otps["+2348011112222"])
	assert.False(t, got.PhoneVerified)

	t.Run("wrong code keeps role", func(t *testing.T) {
		wrong := "000000"
		if *got.PhoneOTP == wrong {
			wrong = "000001"
		}
		_, err := h.svc.VerifyPhoneOTP(ctx, user.Email, wrong)
		assert.ErrorIs(t, err, verification.ErrInvalidOTP)
		assert.Equal(t, models.RoleUser, h.reload(t, user.ID).Role)
	})

	t.Run("correct code upgrades to organizer", func(t *testing.T) {
		updated, err := h.svc.VerifyPhoneOTP(ctx, user.Email, *got.PhoneOTP)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOrganizer, updated.Role)
		assert.True(t, updated.PhoneVerified)
		assert.Nil(t, updated.PhoneOTP)
		assert.Nil(t, updated.PhoneOTPExpiry)
	})

	t.Run("code cannot be reused", func(t *testing.T) {
		_, err := h.svc.VerifyPhoneOTP(ctx, user.Email, *got.PhoneOTP)
		assert.ErrorIs(t, err, verification.ErrInvalidOTP)
	})

	t.Run("verified number is taken for other accounts", func(t *testing.T) {
		other := testutil.CreateTestUser(t, h.db)
		_, err := h.svc.SendPhoneOTP(ctx, other.Email, "+234 801 111 2222")
		assert.ErrorIs(t, err, verification.ErrPhoneTaken)
	})

	t.Run("already verified", func(t *testing.T) {
		_, err := h.svc.SendPhoneOTP(ctx, user.Email, "08099998888")
		assert.ErrorIs(t, err, verification.ErrAlreadyVerified)
	})
}

func TestService_VerifyPhoneOTP_Edges(t *testing.T) {
	ctx := context.Background()

	t.Run("expired code", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		user := testutil.CreateTestUser(t, h.db)
		_, err := h.store.Update(ctx, user.ID, accounts.Changes{
			"phone":            "+2348011112222",
			"phone_otp":        "123456",
			"phone_otp_expiry": h.clock.now,
		})
		require.NoError(t, err)

		_, err = h.svc.VerifyPhoneOTP(ctx, user.Email, "123456")
		assert.ErrorIs(t, err, verification.ErrOTPExpired)
		assert.False(t, h.reload(t, user.ID).PhoneVerified)
	})

	t.Run("no code issued", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		user := testutil.CreateTestUser(t, h.db)
		_, err := h.svc.VerifyPhoneOTP(ctx, user.Email, "123456")
		assert.ErrorIs(t, err, verification.ErrInvalidOTP)
	})

	t.Run("admin is never downgraded", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		admin := testutil.CreateTestUser(t, h.db, testutil.WithRole(models.RoleAdmin))
		_, err := h.store.Update(ctx, admin.ID, accounts.Changes{
			"phone_otp":        "654321",
			"phone_otp_expiry": h.clock.now.Add(time.Minute),
		})
		require.NoError(t, err)

		updated, err := h.svc.VerifyPhoneOTP(ctx, admin.Email, "654321")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, updated.Role)
		assert.True(t, updated.PhoneVerified)
	})

	t.Run("unknown user and empty code", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		_, err := h.svc.VerifyPhoneOTP(ctx, "ghost@example.com", "123456")
		assert.ErrorIs(t, err, verification.ErrNotFound)
		_, err = h.svc.VerifyPhoneOTP(ctx, "ghost@example.com", "")
		assert.ErrorIs(t, err, verification.ErrInvalidInput)
	})
}

func TestService_SendPhoneOTP_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid phone", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		user := testutil.CreateTestUser(t, h.db)
		_, err := h.svc.SendPhoneOTP(ctx, user.Email, "call me")
		assert.ErrorIs(t, err, verification.ErrInvalidInput)
	})

	t.Run("delivery failure keeps issued code", func(t *testing.T) {
		h := newHarness(t, verification.Config{})
		user := testutil.CreateTestUser(t, h.db)
		h.notifier.err = errors.New("sms down")

		_, err := h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
		assert.ErrorIs(t, err, verification.ErrDeliveryFailed)
		assert.NotNil(t, h.reload(t, user.ID).PhoneOTP)
	})

	t.Run("send throttle", func(t *testing.T) {
		_, client := newRedis(t)
		h := newHarness(t, verification.Config{
			SendThrottle: verification.NewThrottle(client, "otp:send:", 1, time.Hour),
		})
		user := testutil.CreateTestUser(t, h.db)

		_, err := h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
		require.NoError(t, err)
		_, err = h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
		assert.ErrorIs(t, err, verification.ErrTooManyRequests)
	})

	t.Run("verify attempt throttle", func(t *testing.T) {
		_, client := newRedis(t)
		h := newHarness(t, verification.Config{
			VerifyThrottle: verification.NewThrottle(client, "otp:verify:", 2, 10*time.Minute),
		})
		user := testutil.CreateTestUser(t, h.db)
		_, err := h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
		require.NoError(t, err)
		code := h.notifier.otps["+2348011112222"]
		wrong := "000000"
		if code == wrong {
			wrong = "000001"
		}

		for i := 0; i < 2; i++ {
			_, err = h.svc.VerifyPhoneOTP(ctx, user.Email, wrong)
			assert.ErrorIs(t, err, verification.ErrInvalidOTP)
		}
		_, err = h.svc.VerifyPhoneOTP(ctx, user.Email, code)
		assert.ErrorIs(t, err, verification.ErrTooManyRequests)

		// A new code opens a new attempt window.
		_, err = h.svc.SendPhoneOTP(ctx, user.Email, "08011112222")
		require.NoError(t, err)
		updated, err := h.svc.VerifyPhoneOTP(ctx, user.Email, h.notifier.otps["+2348011112222"])
		require.NoError(t, err)
		assert.True(t, updated.PhoneVerified)
	})
}

// Uniqueness is enforced when a code is sent, not when it is verified, so two
// accounts already holding codes for one number can both complete.
func TestService_PhoneUniqueness_CheckedAtSendOnly(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	first := testutil.CreateTestUser(t, h.db)
	second := testutil.CreateTestUser(t, h.db)

	_, err := h.svc.SendPhoneOTP(ctx, first.Email, "08011112222")
	require.NoError(t, err)
	firstCode := h.notifier.otps["+2348011112222"]

	_, err = h.svc.SendPhoneOTP(ctx, second.Email, "08011112222")
	require.NoError(t, err)
	secondCode := h.notifier.otps["+2348011112222"]

	_, err = h.svc.VerifyPhoneOTP(ctx, first.Email, firstCode)
	require.NoError(t, err)
	_, err = h.svc.VerifyPhoneOTP(ctx, second.Email, secondCode)
	require.NoError(t, err)

	assert.True(t, h.reload(t, first.ID).PhoneVerified)
	assert.True(t, h.reload(t, second.ID).PhoneVerified)

	third := testutil.CreateTestUser(t, h.db)
	_, err = h.svc.SendPhoneOTP(ctx, third.Email, "08011112222")
	assert.ErrorIs(t, err, verification.ErrPhoneTaken)
}

func TestService_Status(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	user := testutil.CreateTestUser(t, h.db, testutil.WithRole(models.RoleOrganizer), testutil.WithVerifiedPhone("+2348011112222"))

	status, err := h.svc.Status(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, verification.Status{Role: models.RoleOrganizer, EmailVerified: false, PhoneVerified: true}, status)

	_, err = h.svc.Status(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, verification.ErrNotFound)
}

func TestService_DeliverVerificationEmail(t *testing.T) {
	q := &fakeQueue{}
	h := newHarness(t, verification.Config{SignupEmail: config.SignupEmailAsync, Queue: q})
	ctx := context.Background()

	user, err := h.svc.SignUp(ctx, verification.SignUpInput{Email: "eve@example.com", Password: "secret1"})
	require.NoError(t, err)
	queued := q.tokens[0]

	require.NoError(t, h.svc.DeliverVerificationEmail(ctx, user.ID, queued))
	assert.Equal(t, queued, h.notifier.emails["eve@example.com"])

	t.Run("stale token is skipped", func(t *testing.T) {
		delete(h.notifier.emails, "eve@example.com")
		require.NoError(t, h.svc.DeliverVerificationEmail(ctx, user.ID, "replaced"))
		assert.Empty(t, h.notifier.emails)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := h.svc.DeliverVerificationEmail(ctx, uuid.New(), queued)
		assert.ErrorIs(t, err, verification.ErrNotFound)
	})
}

func TestService_PurgeExpired(t *testing.T) {
	h := newHarness(t, verification.Config{})
	ctx := context.Background()
	user := testutil.CreateTestUser(t, h.db)
	_, err := h.store.Update(ctx, user.ID, accounts.Changes{
		"phone_otp":        "123456",
		"phone_otp_expiry": h.clock.now.Add(-time.Second),
	})
	require.NoError(t, err)

	cleared, err := h.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	assert.Nil(t, h.reload(t, user.ID).PhoneOTP)
}
