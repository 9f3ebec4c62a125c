package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/evently/internal/verification"
)

// Verifier is the verification work the worker performs.
type Verifier interface {
	DeliverVerificationEmail(ctx context.Context, userID uuid.UUID, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type Handler struct {
	verifier Verifier
	logger   *slog.Logger
}

func NewHandler(verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		logger:   logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSendVerificationEmail, h.HandleSendVerificationEmail)
	mux.HandleFunc(TypePurgeExpired, h.HandlePurgeExpired)
}

func (h *Handler) HandleSendVerificationEmail(ctx context.Context, t *asynq.Task) error {
	var payload SendVerificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("delivering verification email", "user_id", payload.UserID)

	err := h.verifier.DeliverVerificationEmail(ctx, payload.UserID, payload.Token)
	if errors.Is(err, verification.ErrNotFound) {
		h.logger.Warn("verification email for missing user", "user_id", payload.UserID)
		return fmt.Errorf("user %s: %w", payload.UserID, asynq.SkipRetry)
	}
	if err != nil {
		h.logger.Error("verification email failed", "user_id", payload.UserID, "error", err)
		return err
	}
	return nil
}

func (h *Handler) HandlePurgeExpired(ctx context.Context, _ *asynq.Task) error {
	cleared, err := h.verifier.PurgeExpired(ctx)
	if err != nil {
		h.logger.Error("purging expired verifications failed", "error", err)
		return err
	}

	h.logger.Info("purged expired verifications", "cleared", cleared)
	return nil
}
