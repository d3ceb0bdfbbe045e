package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSharedPipelinePushFetchFIFO(t *testing.T) {
	p := NewShared[int](8, 1)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Push(0, i))
	}
	require.Equal(t, int64(5), p.TotalQueued())

	for i := 0; i < 5; i++ {
		res := p.Fetch(0)
		require.Equal(t, StatusSuccess, res.Status)
		require.Equal(t, i, *res.Item)
	}
	require.Equal(t, int64(0), p.TotalQueued())
}

func TestSharedPipelineFetchTimesOutWithNoItems(t *testing.T) {
	p := NewShared[int](1, 1)
	start := time.Now()
	res := p.Fetch(0)
	require.Equal(t, StatusTimeout, res.Status)
	require.GreaterOrEqual(t, time.Since(start), fetchTimeout)
}

func TestSharedPipelineTerminateUnblocksAllConsumers(t *testing.T) {
	p := NewShared[int](4, 3)

	var wg sync.WaitGroup
	results := make([]Status, 3)
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = p.Fetch(idx).Status
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	p.Terminate()
	wg.Wait()

	for _, s := range results {
		require.Equal(t, StatusTerminated, s)
	}

	// Push after terminate must fail rather than block.
	err := p.Push(0, 1)
	require.Error(t, err)
}

func TestPerProducerPipelinePreservesProducerOrder(t *testing.T) {
	p := NewPerProducer[int](2, 4, 1)

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Push(0, i))
	}
	for i := 100; i < 104; i++ {
		require.NoError(t, p.Push(1, i))
	}

	var seenFromProducer0, seenFromProducer1 []int
	for i := 0; i < 8; i++ {
		res := p.Fetch(0)
		require.Equal(t, StatusSuccess, res.Status)
		if *res.Item < 100 {
			seenFromProducer0 = append(seenFromProducer0, *res.Item)
		} else {
			seenFromProducer1 = append(seenFromProducer1, *res.Item)
		}
	}
	require.Equal(t, []int{0, 1, 2, 3}, seenFromProducer0)
	require.Equal(t, []int{100, 101, 102, 103}, seenFromProducer1)
}

func TestPerProducerPipelineRejectsOutOfRangeProducer(t *testing.T) {
	p := NewPerProducer[int](1, 2, 1)
	err := p.Push(5, 1)
	require.Error(t, err)
}
