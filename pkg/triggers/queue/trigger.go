// Package queue starts canvas runs from JSON requests pushed onto a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/triggers"
	"github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
)

const popTimeout = time.Second

var validate = validator.New(validator.WithRequiredStructEnabled())

// Trigger pops {"canvas", "node_id"} requests off a Redis list with BLPOP and runs them one
// at a time, in push order.
type Trigger struct {
	Queue string

	client   redis.UniversalClient
	callback triggers.Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewTrigger connects to redisURL and checks the server answers.
func NewTrigger(ctx context.Context, redisURL, queue string, logger *slog.Logger) (*Trigger, error) {
	if queue == "" {
		return nil, errors.New("queue name is required")
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, queue, logger), nil
}

func NewWithClient(client redis.UniversalClient, queue string, logger *slog.Logger) *Trigger {
	return &Trigger{
		Queue:  queue,
		client: client,
		stopCh: make(chan struct{}),
		logger: logger.With("module", "queue_trigger", "queue", queue),
	}
}

// Enqueue pushes request for a worker to pick up.
func Enqueue(ctx context.Context, client redis.UniversalClient, queue string, request models.RunRequest) error {
	if err := validate.Struct(request); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	return client.RPush(ctx, queue, payload).Err()
}

func (t *Trigger) Start(ctx context.Context, callback triggers.Callback) error {
	t.logger.InfoContext(ctx, "Starting queue trigger")
	t.callback = callback

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := t.processMessage(ctx)
			if err != nil && ctx.Err() == nil {
				t.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(popTimeout)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, popTimeout, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	request, err := DecodeRequest(result[1])
	if err != nil {
		t.logger.WarnContext(ctx, "Dropping malformed run request", "message", result[1], "error", err)

		return nil
	}

	t.logger.InfoContext(ctx, "Received run request", "canvas", request.CanvasPath, "node_id", request.NodeID)

	if err := t.callback(ctx, request); err != nil {
		t.logger.ErrorContext(ctx, "Queued run failed", "canvas", request.CanvasPath,
			"node_id", request.NodeID, "error", err)
	}

	return nil
}

// DecodeRequest parses and validates one queue entry.
func DecodeRequest(message string) (models.RunRequest, error) {
	var request models.RunRequest
	if err := json.Unmarshal([]byte(message), &request); err != nil {
		return models.RunRequest{}, err
	}

	if err := validate.Struct(request); err != nil {
		return models.RunRequest{}, err
	}

	return request, nil
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if err := t.client.Close(); err != nil {
		t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
	}

	return nil
}

var _ triggers.Trigger = (*Trigger)(nil)
