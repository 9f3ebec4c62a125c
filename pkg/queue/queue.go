package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/evently/pkg/config"
)

// Priorities are the worker's queue weights.
var Priorities = map[string]int{
	"critical": 6,
	"default":  3,
	"low":      1,
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int, logger *slog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency:     concurrency,
			Queues:          Priorities,
			Logger:          NewLogger(logger),
			ErrorHandler:    ErrorHandler(logger),
			ShutdownTimeout: 10 * time.Second,
		},
	)
}

// NewScheduler runs periodic maintenance tasks, scheduled in UTC.
func NewScheduler(cfg *config.RedisConfig, logger *slog.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   NewLogger(logger),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error("scheduled enqueue failed", "error", err)
				return
			}
			logger.Debug("scheduled task enqueued", "task_id", info.ID, "type", info.Type, "queue", info.Queue)
		},
	})
}

// ErrorHandler logs every failed task attempt with its retry position.
func ErrorHandler(logger *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		taskID, _ := asynq.GetTaskID(ctx)
		logger.Error("task failed",
			"task_id", taskID,
			"type", task.Type(),
			"retry", retried,
			"max_retry", maxRetry,
			"error", err,
		)
	})
}

// Logger adapts slog to asynq's logger interface.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log.With("component", "asynq")}
}

func (l *Logger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l *Logger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}

var _ asynq.Logger = (*Logger)(nil)
