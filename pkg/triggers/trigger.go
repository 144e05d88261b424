// Package triggers starts canvas runs from outside events: cron schedules and a Redis
// queue.
package triggers

import (
	"context"

	"github.com/dukex/canvasblocks/pkg/models"
)

// Callback executes one run request.
type Callback func(ctx context.Context, request models.RunRequest) error

// Trigger produces run requests until stopped.
type Trigger interface {
	Start(ctx context.Context, callback Callback) error
	Stop(ctx context.Context) error
}
