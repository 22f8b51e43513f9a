package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	wp := NewWorkerPool(3, 10, zerolog.Nop())
	require.NoError(t, wp.Start(context.Background()))

	var done atomic.Int32
	for i := 0; i < 25; i++ {
		require.True(t, wp.Submit(func() { done.Add(1) }))
	}
	require.NoError(t, wp.Stop())

	assert.Equal(t, int32(25), done.Load())
	assert.Equal(t, 0, wp.GetActiveWorkers())
}

func TestWorkerPool_SurvivesPanic(t *testing.T) {
	wp := NewWorkerPool(1, 4, zerolog.Nop())
	require.NoError(t, wp.Start(context.Background()))

	var ran atomic.Bool
	wp.Submit(func() { panic("boom") })
	wp.Submit(func() { ran.Store(true) })
	require.NoError(t, wp.Stop())

	assert.True(t, ran.Load())
}

func TestWorkerPool_RejectsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, zerolog.Nop())
	wp.submitTimeout = 10 * time.Millisecond
	require.NoError(t, wp.Start(context.Background()))

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	require.True(t, wp.Submit(func() {
		started.Done()
		<-release
	}))
	started.Wait()

	require.True(t, wp.Submit(func() {}))
	assert.False(t, wp.Submit(func() {}))

	stats := wp.GetStats()
	assert.Equal(t, 1, stats.ActiveWorkers)
	assert.Equal(t, 1, stats.QueueCapacity)
	assert.Equal(t, 1, stats.Rejected)

	close(release)
	require.NoError(t, wp.Stop())
	require.NoError(t, wp.Stop())
}
