// Package pacing implements the inter-write wait strategies a sink writer
// applies between consecutive batches (spec §4.7 "Pacing").
package pacing

import (
	"time"

	"github.com/cockroachdb/errors"
)

// StrategyType selects how the wait before the next write is computed.
type StrategyType string

// Recognized strategies.
const (
	Fixed        StrategyType = "fixed"
	FirstToFirst StrategyType = "first_to_first"
	LastToFirst  StrategyType = "last_to_first"
	Literal      StrategyType = "literal"
)

// WaitMode selects how a positive wait is actually spent.
type WaitMode string

// Recognized wait modes.
const (
	WaitSleep    WaitMode = "sleep"
	WaitBusyWait WaitMode = "busy_wait"
)

// Precision is the unit one timestamp value is expressed in.
type Precision string

// Recognized precisions.
const (
	PrecisionMillis Precision = "ms"
	PrecisionMicros Precision = "us"
	PrecisionNanos  Precision = "ns"
)

// Config configures a Strategy; it mirrors the `time_interval` block of a
// job's configuration (spec §6).
type Config struct {
	Enabled      bool
	Strategy     StrategyType
	WaitMode     WaitMode
	BaseInterval int64 // milliseconds, used by Fixed
	MinInterval  int64 // milliseconds, used by FirstToFirst/LastToFirst; negative disables
	MaxInterval  int64 // milliseconds, used by FirstToFirst/LastToFirst; negative disables
}

// Strategy applies one of the four inter-write wait strategies (spec §4.7),
// converting between the target's timestamp precision and microseconds
// internally so every strategy's arithmetic is precision-independent.
type Strategy struct {
	cfg           Config
	precision     Precision
	lastWriteTime time.Time
}

// New constructs a Strategy for timestamp precision; returns an error for
// an unrecognized precision (spec §4.7: "unknown precision is a fatal
// configuration error").
func New(cfg Config, precision Precision) (*Strategy, error) {
	switch precision {
	case PrecisionMillis, PrecisionMicros, PrecisionNanos:
	default:
		return nil, errors.Errorf("pacing: unknown timestamp precision %q", precision)
	}
	return &Strategy{cfg: cfg, precision: precision, lastWriteTime: time.Now()}, nil
}

// IsLiteralStrategy reports whether the strategy is the enabled "literal"
// (wall-clock) strategy — sink writers gate play-latency sampling on this.
func (s *Strategy) IsLiteralStrategy() bool {
	return s.cfg.Enabled && s.cfg.Strategy == Literal
}

// LastWriteTime returns the steady-clock time recorded by the most recent
// Apply call.
func (s *Strategy) LastWriteTime() time.Time { return s.lastWriteTime }

func (s *Strategy) toMicros(ts int64) int64 {
	switch s.precision {
	case PrecisionMillis:
		return ts * 1000
	case PrecisionMicros:
		return ts
	case PrecisionNanos:
		return ts / 1000
	default:
		return ts
	}
}

func (s *Strategy) clamp(intervalUS int64) int64 {
	if s.cfg.MinInterval >= 0 && intervalUS < s.cfg.MinInterval*1000 {
		return s.cfg.MinInterval * 1000
	}
	if s.cfg.MaxInterval >= 0 && intervalUS > s.cfg.MaxInterval*1000 {
		return s.cfg.MaxInterval * 1000
	}
	return intervalUS
}

// Apply waits according to the configured strategy given the current
// batch's [currentStart, currentEnd] timestamps and the previous batch's
// [lastStart, lastEnd] (all in the configured precision), then records the
// wait's completion time. On the very first write, every strategy except
// Literal returns immediately (spec §4.7).
func (s *Strategy) Apply(currentStart, currentEnd, lastStart, lastEnd int64, isFirstWrite bool) {
	if !s.cfg.Enabled || (isFirstWrite && s.cfg.Strategy != Literal) {
		s.lastWriteTime = time.Now()
		return
	}

	var waitUS int64
	switch s.cfg.Strategy {
	case Fixed:
		waitUS = s.cfg.BaseInterval * 1000
	case FirstToFirst:
		waitUS = s.clamp(s.toMicros(currentStart) - s.toMicros(lastStart))
	case LastToFirst:
		waitUS = s.clamp(s.toMicros(currentStart) - s.toMicros(lastEnd))
	case Literal:
		nowUS := time.Now().UnixMicro()
		waitUS = s.toMicros(currentStart) - nowUS
	default:
		waitUS = 0
	}

	if waitUS > 0 {
		s.wait(waitUS)
	}
	s.lastWriteTime = time.Now()
}

func (s *Strategy) wait(us int64) {
	d := time.Duration(us) * time.Microsecond
	if s.cfg.WaitMode == WaitBusyWait {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
			// Busy-spin: Go's runtime gives no cheaper precise-wait primitive
			// for sub-millisecond deadlines than polling the clock.
		}
		return
	}
	time.Sleep(d)
}
