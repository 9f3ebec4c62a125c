package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/hugh/evently/internal/accounts"
	"github.com/hugh/evently/internal/api"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/events"
	"github.com/hugh/evently/internal/testutil"
	"github.com/hugh/evently/internal/verification"
	"github.com/hugh/evently/pkg/crypto"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testAppURL = "http://app.test"

type fakeDispatcher struct {
	mu     sync.Mutex
	emails map[string]string // email -> last token
	otps   map[string]string // phone -> last code
	err    error
}

func (f *fakeDispatcher) SendVerificationEmail(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emails[email] = token
	return nil
}

func (f *fakeDispatcher) SendOTP(_ context.Context, phone, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.otps[phone] = code
	return nil
}

// stubProvider is an OAuth provider that never leaves the process.
type stubProvider struct {
	profile     auth.Profile
	exchangeErr error
	profileErr  error
}

func (p *stubProvider) ID() string   { return "google" }
func (p *stubProvider) Name() string { return "Google" }

func (p *stubProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.test/authorize?" + url.Values{
		"state":     {state},
		"challenge": {oauth2.S256ChallengeFromVerifier(verifier)},
	}.Encode()
}

func (p *stubProvider) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	if code == "" || verifier == "" {
		return nil, errors.New("missing code or verifier")
	}
	return &oauth2.Token{
		AccessToken:  "provider-access",
		RefreshToken: "provider-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *stubProvider) FetchProfile(context.Context, *oauth2.Token) (auth.Profile, error) {
	if p.profileErr != nil {
		return auth.Profile{}, p.profileErr
	}
	return p.profile, nil
}

type harness struct {
	*testutil.TestSetup
	router     http.Handler
	dispatcher *fakeDispatcher
	provider   *stubProvider
	states     *auth.MemoryStateStore
}

func newHarness(t *testing.T, opts ...testutil.UserOption) *harness {
	t.Helper()

	tc := testutil.NewTestContext(t, opts...)
	logger := testutil.Logger()
	store := accounts.NewGormStore(tc.DB)

	encryptor, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	dispatcher := &fakeDispatcher{emails: map[string]string{}, otps: map[string]string{}}
	provider := &stubProvider{profile: auth.Profile{
		ProviderAccountID: "google-123",
		Email:             "oauth@example.com",
		EmailVerified:     true,
		Name:              "OAuth User",
	}}
	states := auth.NewMemoryStateStore()

	authService := auth.NewService(store, tc.JWTService, encryptor, logger)
	verifier := verification.NewService(store, verification.NewIssuer(nil, nil), dispatcher, verification.Config{}, logger)

	router := api.NewRouter(api.RouterConfig{
		DB:          tc.DB,
		Logger:      logger,
		JWTService:  tc.JWTService,
		AuthService: authService,
		Signups:     verifier,
		Verifier:    verifier,
		Events:      events.NewService(tc.DB, logger),
		Providers:   auth.NewProviders(provider),
		States:      states,
		AppURL:      testAppURL,
		Development: true,
	})
	t.Cleanup(router.Close)

	return &harness{
		TestSetup:  tc,
		router:     router,
		dispatcher: dispatcher,
		provider:   provider,
		states:     states,
	}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}
