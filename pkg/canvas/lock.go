package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another run holds the canvas lock.
var ErrLocked = errors.New("canvas is locked by another run")

const lockRetryDelay = 100 * time.Millisecond

// Lock takes the run lock of the canvas at path, waiting until ctx is done. The returned
// function releases it.
func Lock(ctx context.Context, path string) (func() error, error) {
	lock := flock.New(path + ".lock")

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}

		return nil, fmt.Errorf("acquiring lock for %s: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	return lock.Unlock, nil
}
