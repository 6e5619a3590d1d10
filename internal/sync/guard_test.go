package sync

import (
	"context"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_SharesInFlightRun(t *testing.T) {
	g := NewGuard()

	var runs atomic.Int32

	entered := make(chan struct{})
	release := make(chan struct{})

	var wg stdsync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		err := g.Do(context.Background(), "plan-a", func(context.Context) error {
			runs.Add(1)
			close(entered)
			<-release

			return nil
		})
		assert.NoError(t, err)
	}()

	// Join the run only after it is definitely in flight.
	<-entered

	wg.Add(1)

	go func() {
		defer wg.Done()

		err := g.Do(context.Background(), "plan-a", func(context.Context) error {
			runs.Add(1)
			return nil
		})
		assert.NoError(t, err)
	}()

	// Give the second caller time to reach the guard before releasing.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load(), "second caller joins the first run")
}

func TestGuard_DistinctKeysRunIndependently(t *testing.T) {
	g := NewGuard()

	var runs atomic.Int32

	fn := func(context.Context) error {
		runs.Add(1)
		return nil
	}

	require.NoError(t, g.Do(context.Background(), "plan-a", fn))
	require.NoError(t, g.Do(context.Background(), "plan-b", fn))

	assert.Equal(t, int32(2), runs.Load())
}
