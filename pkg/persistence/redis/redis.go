// Package redis stores run records in Redis: one JSON string per run plus a sorted set
// ordering runs by start time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/dukex/canvasblocks/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	executionKeyPrefix = "canvasblocks:execution:"
	executionIndexKey  = "canvasblocks:executions"
)

// Persistence implements persistence.Persistence on a Redis server.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to a redis:// URL and checks the server answers.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, logger *slog.Logger) *Persistence {
	return &Persistence{client: client, logger: logger.With("module", "redis_persistence")}
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	if err := persistence.ValidateExecutionID(execution.ID); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, executionKeyPrefix+execution.ID, data, 0)
		pipe.ZAdd(ctx, executionIndexKey, redis.Z{
			Score:  float64(execution.StartedAt.UnixMilli()),
			Member: execution.ID,
		})

		return nil
	})
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (p *Persistence) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	data, err := p.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewExecutionError("Get", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("Get", id, err)
	}

	var execution models.Execution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

// ListExecutions walks the start-time index newest first, filtering as it goes.
func (p *Persistence) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*models.Execution, error) {
	ids, err := p.client.ZRevRange(ctx, executionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read execution index: %w", err)
	}

	executions := []*models.Execution{}
	limit := filter.EffectiveLimit()

	for _, id := range ids {
		execution, err := p.GetExecution(ctx, id)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping unreadable execution", "execution_id", id, "error", err)

			continue
		}

		if !filter.Matches(execution) {
			continue
		}

		executions = append(executions, execution)
		if len(executions) == limit {
			break
		}
	}

	return executions, nil
}

var (
	_ persistence.Persistence         = (*Persistence)(nil)
	_ persistence.ExecutionRepository = (*Persistence)(nil)
)
