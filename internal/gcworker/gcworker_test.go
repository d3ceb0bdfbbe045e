package gcworker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsZeroWorkers(t *testing.T) {
	_, err := New(0, 10)
	require.Error(t, err)
}

func TestDisposeRunsTaskAsynchronously(t *testing.T) {
	p, err := New(2, 16)
	require.NoError(t, err)
	defer p.Terminate()

	var ran int32
	var wg sync.WaitGroup
	wg.Add(1)
	p.Dispose(func() {
		atomic.StoreInt32(&ran, 1)
		wg.Done()
	})

	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestTerminateDrainsQueuedTasks(t *testing.T) {
	p, err := New(1, 64)
	require.NoError(t, err)

	const n = 50
	var count int32
	for i := 0; i < n; i++ {
		p.Dispose(func() { atomic.AddInt32(&count, 1) })
	}

	p.Terminate()
	require.EqualValues(t, n, atomic.LoadInt32(&count))
}

func TestDisposeAfterTerminateIsNoop(t *testing.T) {
	p, err := New(1, 4)
	require.NoError(t, err)
	p.Terminate()

	ran := false
	p.Dispose(func() { ran = true })
	time.Sleep(20 * time.Millisecond)
	require.False(t, ran)
}

func TestTerminateIsIdempotent(t *testing.T) {
	p, err := New(2, 4)
	require.NoError(t, err)
	p.Terminate()
	require.NotPanics(t, func() { p.Terminate() })
}
