package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountdownTicksDownToZero(t *testing.T) {
	var ticks []int
	err := Countdown(context.Background(), 3, time.Millisecond, func(remaining int) {
		ticks = append(ticks, remaining)
	})
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 1, 0}, ticks)
}

func TestCountdownStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks []int
	err := Countdown(ctx, 5, time.Millisecond, func(remaining int) {
		ticks = append(ticks, remaining)
		if remaining == 3 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []int{5, 4, 3}, ticks)
}
