package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownPrecision(t *testing.T) {
	_, err := New(Config{}, "fortnights")
	require.Error(t, err)
}

func TestFirstWriteSkipsWaitExceptLiteral(t *testing.T) {
	s, err := New(Config{Enabled: true, Strategy: Fixed, BaseInterval: 1000}, PrecisionMillis)
	require.NoError(t, err)

	start := time.Now()
	s.Apply(0, 0, 0, 0, true)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFixedStrategyWaitsBaseInterval(t *testing.T) {
	s, err := New(Config{Enabled: true, Strategy: Fixed, BaseInterval: 20, WaitMode: WaitSleep}, PrecisionMillis)
	require.NoError(t, err)

	start := time.Now()
	s.Apply(0, 0, 0, 0, false)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestFirstToFirstClampsToMinInterval(t *testing.T) {
	s, err := New(Config{
		Enabled: true, Strategy: FirstToFirst, WaitMode: WaitSleep,
		MinInterval: 20, MaxInterval: -1,
	}, PrecisionMillis)
	require.NoError(t, err)

	start := time.Now()
	// current_start == last_start -> raw interval 0us, clamped up to 20ms.
	s.Apply(100, 0, 100, 0, false)
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestDisabledStrategyNeverWaits(t *testing.T) {
	s, err := New(Config{Enabled: false, Strategy: Fixed, BaseInterval: 500}, PrecisionMillis)
	require.NoError(t, err)

	start := time.Now()
	s.Apply(0, 0, 0, 0, false)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestNegativeWaitDoesNotBlock(t *testing.T) {
	s, err := New(Config{
		Enabled: true, Strategy: LastToFirst, WaitMode: WaitSleep,
		MinInterval: -1, MaxInterval: -1,
	}, PrecisionMillis)
	require.NoError(t, err)

	start := time.Now()
	// current_start (10) - last_end (1000) is deeply negative -> no wait.
	s.Apply(10, 0, 0, 1000, false)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestIsLiteralStrategy(t *testing.T) {
	s, err := New(Config{Enabled: true, Strategy: Literal}, PrecisionMillis)
	require.NoError(t, err)
	require.True(t, s.IsLiteralStrategy())

	s2, err := New(Config{Enabled: true, Strategy: Fixed}, PrecisionMillis)
	require.NoError(t, err)
	require.False(t, s2.IsLiteralStrategy())
}
