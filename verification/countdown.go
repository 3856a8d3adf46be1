package verification

import (
	"context"
	"time"
)

const DefaultCountdownSeconds = 5

// Countdown calls onTick with from, from-1, ..., 0, one tick apart. It stops
// without further callbacks when ctx is cancelled.
func Countdown(ctx context.Context, from int, tick time.Duration, onTick func(remaining int)) error {
	if from < 0 {
		from = 0
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if onTick != nil {
		onTick(from)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for remaining := from - 1; remaining >= 0; remaining-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if onTick != nil {
			onTick(remaining)
		}
	}
	return nil
}
