package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskClient is the part of *asynq.Client used to enqueue work.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules background work on behalf of the API server.
type Enqueuer struct {
	client TaskClient
}

func NewEnqueuer(client TaskClient) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueVerificationEmail(ctx context.Context, userID uuid.UUID, email, token string) error {
	task, err := NewSendVerificationEmailTask(SendVerificationEmailPayload{
		UserID: userID,
		Email:  email,
		Token:  token,
	})
	if err != nil {
		return fmt.Errorf("building verification email task: %w", err)
	}

	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue verification email: %w", err)
	}
	return nil
}
