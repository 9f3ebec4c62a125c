package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/hugh/evently/internal/api/dto"
	"github.com/hugh/evently/internal/api/middleware"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/verification"
)

// SignUpper creates credential accounts.
type SignUpper interface {
	SignUp(ctx context.Context, input verification.SignUpInput) (*models.User, error)
}

type AuthHandler struct {
	authService auth.Authenticator
	signups     SignUpper
	opts        Options
}

func NewAuthHandler(authService auth.Authenticator, signups SignUpper, opts Options) *AuthHandler {
	return &AuthHandler{authService: authService, signups: signups, opts: opts}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	user, err := h.signups.SignUp(r.Context(), verification.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, verification.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "User with this email already exists")
		default:
			h.opts.serverError(w, r, "Error creating user", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.SignUpResponse{
		Message: "User created successfully",
		User:    dto.NewUserDTO(user),
	})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	identity, err := h.authService.AuthenticateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound),
			errors.Is(err, auth.ErrNoPasswordSet),
			errors.Is(err, auth.ErrInvalidCredentials):
			h.opts.logger().Info("sign-in rejected", "reason", err.Error())
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			h.opts.serverError(w, r, "Sign-in failed", err)
		}
		return
	}

	token, err := h.authService.IssueSession(identity)
	if err != nil {
		h.opts.serverError(w, r, "Sign-in failed", err)
		return
	}

	h.opts.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: token, User: identity})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.opts.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Signed out"})
}

// Session returns the identity carried by the current session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionResponse{User: identity})
}

// RefreshSession reissues the session with the user's current profile.
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	token, identity, err := h.authService.RefreshSession(r.Context(), middleware.GetToken(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrExpiredToken),
			errors.Is(err, auth.ErrIdentityMismatch):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		default:
			h.opts.serverError(w, r, "Session refresh failed", err)
		}
		return
	}

	h.opts.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, dto.AuthResponse{Token: token, User: identity})
}
