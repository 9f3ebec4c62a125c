package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeSendVerificationEmail = "notify:verification_email"
	TypePurgeExpired          = "maintenance:purge_expired"
)

// Queue names, matching the weights in pkg/queue.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// SendVerificationEmailPayload carries a freshly issued signup token.
type SendVerificationEmailPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Token  string    `json:"token"`
}

func NewSendVerificationEmailTask(payload SendVerificationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendVerificationEmail, data,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// PurgeExpiredPayload is empty - the purge covers every user
type PurgeExpiredPayload struct{}

func NewPurgeExpiredTask() *asynq.Task {
	return asynq.NewTask(TypePurgeExpired, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}
