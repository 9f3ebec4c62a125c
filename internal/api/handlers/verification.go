package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hugh/evently/internal/api/dto"
	"github.com/hugh/evently/internal/api/middleware"
	"github.com/hugh/evently/internal/auth"
	"github.com/hugh/evently/internal/database/models"
	"github.com/hugh/evently/internal/verification"
)

// Verifier runs the email and phone verification flows.
type Verifier interface {
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	SendPhoneOTP(ctx context.Context, email, rawPhone string) (string, error)
	VerifyPhoneOTP(ctx context.Context, email, code string) (*models.User, error)
	Status(ctx context.Context, email string) (verification.Status, error)
}

// SessionIssuer mints session tokens.
type SessionIssuer interface {
	IssueSession(id auth.Identity) (string, error)
}

type VerificationHandler struct {
	verifier Verifier
	sessions SessionIssuer
	opts     Options
}

func NewVerificationHandler(verifier Verifier, sessions SessionIssuer, opts Options) *VerificationHandler {
	return &VerificationHandler{verifier: verifier, sessions: sessions, opts: opts}
}

// VerifyEmail consumes an emailed verification token.
func (h *VerificationHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.verifier.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		switch {
		case errors.Is(err, verification.ErrInvalidToken):
			writeError(w, http.StatusBadRequest, "Invalid verification token")
		case errors.Is(err, verification.ErrTokenExpired):
			writeError(w, http.StatusBadRequest, "Verification token has expired")
		default:
			h.opts.serverError(w, r, "Error verifying email", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{Message: "Email verified successfully", Success: true})
}

// ResendVerification issues and sends a new token for ?email=.
func (h *VerificationHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.verifier.ResendVerification(r.Context(), email); err != nil {
		switch {
		case errors.Is(err, verification.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, verification.ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, "Email is already verified")
		case errors.Is(err, verification.ErrDeliveryFailed):
			h.opts.serverError(w, r, "Failed to send verification email", err)
		default:
			h.opts.serverError(w, r, "Error sending verification email", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{Message: "Verification email sent", Success: true})
}

// CheckRole reports the signed-in user's role and verification state.
func (h *VerificationHandler) CheckRole(w http.ResponseWriter, r *http.Request) {
	status, err := h.verifier.Status(r.Context(), middleware.GetUserEmail(r.Context()))
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.opts.serverError(w, r, "Error checking role", err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// VerifyPhone sends an OTP ({action: "send"}) or checks one ({action: "verify"}).
func (h *VerificationHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyPhoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	if req.Action == dto.PhoneActionSend {
		h.sendOTP(w, r, req.Phone)
		return
	}
	h.verifyOTP(w, r, req.OTP)
}

func (h *VerificationHandler) sendOTP(w http.ResponseWriter, r *http.Request, phone string) {
	normalized, err := h.verifier.SendPhoneOTP(r.Context(), middleware.GetUserEmail(r.Context()), phone)
	if err != nil {
		h.phoneError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{
		Message: "OTP sent successfully",
		Success: true,
		Phone:   normalized,
	})
}

func (h *VerificationHandler) verifyOTP(w http.ResponseWriter, r *http.Request, code string) {
	user, err := h.verifier.VerifyPhoneOTP(r.Context(), middleware.GetUserEmail(r.Context()), code)
	if err != nil {
		h.phoneError(w, r, err)
		return
	}

	// The role changed, so hand the client a fresh session.
	if token, err := h.sessions.IssueSession(auth.IdentityFromUser(user)); err != nil {
		h.opts.logger().Warn("reissuing session after phone verification", "user_id", user.ID, "error", err)
	} else {
		h.opts.setSessionCookie(w, token)
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{
		Message: "Phone verified successfully",
		Success: true,
		Role:    string(user.Role),
	})
}

func (h *VerificationHandler) phoneError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, verification.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid phone number")
	case errors.Is(err, verification.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, verification.ErrPhoneTaken):
		writeError(w, http.StatusBadRequest, "Phone number is already in use")
	case errors.Is(err, verification.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "Phone number is already verified")
	case errors.Is(err, verification.ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, verification.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, "OTP has expired")
	case errors.Is(err, verification.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
	case errors.Is(err, verification.ErrDeliveryFailed):
		h.opts.serverError(w, r, "Failed to send OTP", err)
	default:
		h.opts.serverError(w, r, "Error processing phone verification", err)
	}
}
