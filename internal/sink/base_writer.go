package sink

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taosdata/taosgen-sub001/internal/pacing"
)

// BaseWriter bundles the state every concrete Writer shares: the pacing
// strategy, retry policy, and play/write latency histograms (spec §4.6,
// grounded on original_source's BaseWriter.hpp/.cpp). Concrete writers
// embed *BaseWriter and call ExecuteWrite with a closure performing the
// actual sink call.
type BaseWriter struct {
	pacer  *pacing.Strategy
	retry  *RetryPolicy
	play   *latencyHistogram
	write  *latencyHistogram

	firstWrite    bool
	lastStartTime int64
	lastEndTime   int64
	startWriteAt  time.Time
	endWriteAt    time.Time
}

// NewBaseWriter constructs a BaseWriter for one sink instance tagged name
// (used as the prometheus metric name prefix), registering its histograms
// with reg if non-nil.
func NewBaseWriter(name string, pacer *pacing.Strategy, retry *RetryPolicy, reg prometheus.Registerer) *BaseWriter {
	now := time.Now()
	return &BaseWriter{
		pacer:        pacer,
		retry:        retry,
		play:         newLatencyHistogram(name+"_play_latency_seconds", "row timestamp to write-call wall-clock offset", reg),
		write:        newLatencyHistogram(name+"_write_latency_seconds", "underlying sink call duration", reg),
		firstWrite:   true,
		startWriteAt: now,
		endWriteAt:   now,
	}
}

// ExecuteWrite applies the pacing strategy for env, runs do (the concrete
// writer's actual sink call) through the retry policy under errorContext,
// samples write latency, and on success updates the rolling
// last-start/last-end state pacing needs for FirstToFirst/LastToFirst.
func (b *BaseWriter) ExecuteWrite(env Envelope, errorContext string, do func() error) error {
	b.pacer.Apply(env.StartTime, env.EndTime, b.lastStartTime, b.lastEndTime, b.firstWrite)
	if b.firstWrite {
		b.startWriteAt = b.pacer.LastWriteTime()
	}

	if b.pacer.IsLiteralStrategy() {
		nowMS := time.Now().UnixMilli()
		b.play.addSample(time.Duration(nowMS-env.StartTime) * time.Millisecond)
	}

	start := time.Now()
	err := b.retry.Execute(do, errorContext)
	b.write.addSample(time.Since(start))

	if err == nil {
		b.endWriteAt = time.Now()
		b.lastStartTime = env.StartTime
		b.lastEndTime = env.EndTime
		b.firstWrite = false
	}
	return err
}

// PlayMetrics implements Writer.
func (b *BaseWriter) PlayMetrics() LatencyStats { return b.play.snapshot() }

// WriteMetrics implements Writer.
func (b *BaseWriter) WriteMetrics() LatencyStats { return b.write.snapshot() }

// StartWriteTime returns the wall-clock time of the first successful write.
func (b *BaseWriter) StartWriteTime() time.Time { return b.startWriteAt }

// EndWriteTime returns the wall-clock time of the most recent successful write.
func (b *BaseWriter) EndWriteTime() time.Time { return b.endWriteAt }
