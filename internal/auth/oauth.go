package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hugh/evently/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var ErrProfileIncomplete = errors.New("provider profile has no email")

// Profile is the provider user profile normalized across providers.
type Profile struct {
	ProviderAccountID string
	Email             string
	EmailVerified     bool
	Name              string
	Image             string
}

// Provider is an OAuth2 identity provider.
type Provider interface {
	ID() string
	Name() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error)
}

// ProviderInfo is the public description returned by the providers listing.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Providers is the set of OAuth providers enabled at startup.
type Providers struct {
	byID  map[string]Provider
	order []string
}

func NewProviders(providers ...Provider) *Providers {
	p := &Providers{byID: make(map[string]Provider, len(providers))}
	for _, provider := range providers {
		if _, dup := p.byID[provider.ID()]; dup {
			continue
		}
		p.byID[provider.ID()] = provider
		p.order = append(p.order, provider.ID())
	}
	return p
}

// ProvidersFromConfig registers every provider whose client id and secret are set.
func ProvidersFromConfig(cfg config.OAuthConfig) *Providers {
	var providers []Provider
	if cfg.Google.Enabled() {
		providers = append(providers, NewGoogleProvider(cfg.Google, callbackURL(cfg.RedirectURL, "google")))
	}
	if cfg.Facebook.Enabled() {
		providers = append(providers, NewFacebookProvider(cfg.Facebook, callbackURL(cfg.RedirectURL, "facebook")))
	}
	return NewProviders(providers...)
}

func callbackURL(base, provider string) string {
	return strings.TrimRight(base, "/") + "/" + provider + "/callback"
}

func (p *Providers) Get(id string) (Provider, bool) {
	provider, ok := p.byID[id]
	return provider, ok
}

func (p *Providers) List() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, ProviderInfo{ID: id, Name: p.byID[id].Name()})
	}
	return out
}

type oauthProvider struct {
	id     string
	name   string
	config *oauth2.Config
}

func (p *oauthProvider) ID() string   { return p.id }
func (p *oauthProvider) Name() string { return p.name }

func (p *oauthProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
}

func (p *oauthProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", p.id, err)
	}
	return token, nil
}

// GoogleProvider reads the profile through the Google OAuth2 userinfo API.
type GoogleProvider struct {
	oauthProvider
	clientOptions []option.ClientOption
}

func NewGoogleProvider(cfg config.OAuthProviderConfig, redirectURL string, opts ...option.ClientOption) *GoogleProvider {
	return &GoogleProvider{
		oauthProvider: oauthProvider{
			id:   "google",
			name: "Google",
			config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  redirectURL,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
		},
		clientOptions: opts,
	}
}

func (p *GoogleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(p.config.TokenSource(ctx, token)),
	}, p.clientOptions...)

	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("google userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("google userinfo: %w", err)
	}

	profile := Profile{
		ProviderAccountID: info.Id,
		Email:             info.Email,
		Name:              info.Name,
		Image:             info.Picture,
	}
	if info.VerifiedEmail != nil {
		profile.EmailVerified = *info.VerifiedEmail
	}
	if profile.Email == "" {
		return profile, ErrProfileIncomplete
	}
	return profile, nil
}

const facebookGraphURL = "https://graph.facebook.com"

// FacebookProvider reads the profile from the Graph API /me endpoint.
type FacebookProvider struct {
	oauthProvider
	graphURL string
}

func NewFacebookProvider(cfg config.OAuthProviderConfig, redirectURL string) *FacebookProvider {
	return &FacebookProvider{
		oauthProvider: oauthProvider{
			id:   "facebook",
			name: "Facebook",
			config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  redirectURL,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
		},
		graphURL: facebookGraphURL,
	}
}

// WithGraphURL points profile lookups at a different Graph API host.
func (p *FacebookProvider) WithGraphURL(u string) *FacebookProvider {
	p.graphURL = strings.TrimRight(u, "/")
	return p
}

type facebookMe struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (p *FacebookProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	q := url.Values{}
	q.Set("fields", "id,name,email,picture.type(large)")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build graph request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("facebook graph request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("read graph response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Profile{}, fmt.Errorf("facebook graph failed: status=%d", resp.StatusCode)
	}

	var me facebookMe
	if err := json.Unmarshal(body, &me); err != nil {
		return Profile{}, fmt.Errorf("decode graph response: %w", err)
	}

	profile := Profile{
		ProviderAccountID: me.ID,
		Email:             me.Email,
		EmailVerified:     me.Email != "",
		Name:              me.Name,
		Image:             me.Picture.Data.URL,
	}
	if profile.Email == "" {
		return profile, ErrProfileIncomplete
	}
	return profile, nil
}
