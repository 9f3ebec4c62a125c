package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/evently/internal/auth"
)

type OAuthHandler struct {
	providers   *auth.Providers
	states      auth.StateStore
	authService auth.Authenticator
	appURL      string
	opts        Options
}

func NewOAuthHandler(providers *auth.Providers, states auth.StateStore, authService auth.Authenticator, appURL string, opts Options) *OAuthHandler {
	return &OAuthHandler{
		providers:   providers,
		states:      states,
		authService: authService,
		appURL:      appURL,
		opts:        opts,
	}
}

// Providers lists the enabled sign-in providers.
func (h *OAuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.providers.List())
}

// Redirect starts the authorization code flow for {provider}.
func (h *OAuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	state, data, err := auth.NewState(provider.ID())
	if err != nil {
		h.opts.serverError(w, r, "Could not start sign-in", err)
		return
	}
	if err := h.states.Save(r.Context(), state, data, auth.StateTTL); err != nil {
		h.opts.serverError(w, r, "Could not start sign-in", err)
		return
	}

	http.Redirect(w, r, provider.AuthCodeURL(state, data.CodeVerifier), http.StatusFound)
}

// Callback completes the flow: it checks state, exchanges the code, signs the
// user in and redirects to the web app with the session cookie set.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers.Get(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	q := r.URL.Query()
	if q.Get("error") != "" {
		h.opts.logger().Info("oauth sign-in denied", "provider", provider.ID(), "reason", q.Get("error"))
		writeError(w, http.StatusBadRequest, "Sign-in was cancelled")
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "Missing code or state")
		return
	}

	data, err := h.states.Consume(r.Context(), state)
	if err != nil {
		if errors.Is(err, auth.ErrStateNotFound) {
			writeError(w, http.StatusBadRequest, "Invalid or expired state")
			return
		}
		h.opts.serverError(w, r, "Sign-in failed", err)
		return
	}
	if data.Provider != provider.ID() {
		writeError(w, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	token, err := provider.Exchange(r.Context(), code, data.CodeVerifier)
	if err != nil {
		h.opts.logger().Warn("oauth code exchange failed", "provider", provider.ID(), "error", err)
		writeError(w, http.StatusBadGateway, "Could not complete sign-in with provider")
		return
	}

	profile, err := provider.FetchProfile(r.Context(), token)
	if errors.Is(err, auth.ErrProfileIncomplete) {
		writeError(w, http.StatusBadRequest, "Provider did not share an email address")
		return
	}
	if err != nil {
		h.opts.logger().Warn("oauth profile fetch failed", "provider", provider.ID(), "error", err)
		writeError(w, http.StatusBadGateway, "Could not complete sign-in with provider")
		return
	}

	identity, err := h.authService.AuthenticateOAuth(r.Context(), provider.ID(), profile, token)
	if err != nil {
		if errors.Is(err, auth.ErrProfileIncomplete) {
			writeError(w, http.StatusBadRequest, "Provider did not share an email address")
			return
		}
		h.opts.serverError(w, r, "Sign-in failed", err)
		return
	}

	session, err := h.authService.IssueSession(identity)
	if err != nil {
		h.opts.serverError(w, r, "Sign-in failed", err)
		return
	}

	h.opts.setSessionCookie(w, session)
	http.Redirect(w, r, h.appURL, http.StatusFound)
}
