// Package sink turns a formatted MemoryBlock into bytes on the wire: SQL/
// stmt execution against a TDengine-shaped `database/sql` driver, Kafka
// produce, MQTT publish, or a CSV file append (spec §4.6 "Sink writers").
package sink

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
)

// Envelope is one formatted batch handed to a Writer, carrying the pacing
// strategy's required start/end timestamps alongside the payload (spec
// §4.6 "write(envelope)"). Block and Columns are consulted by the
// statement-mode TDengine writer, which binds directly against the
// block's columnar buffers rather than through pre-copied literal text,
// and by the filesystem writer, which reads its CSV rows from the block.
type Envelope struct {
	Result    format.FormatResult
	StartTime int64
	EndTime   int64
	Block     *memtable.MemoryBlock
	Columns   []model.ColumnConfig
	Tags      []model.ColumnConfig
}

// Writer is the contract every sink implementation satisfies: the state
// machine `New -> Connected -> Prepared -> (Writing <-> Writing) -> Closed`
// (spec §4.6).
type Writer interface {
	// Connect opens the underlying connection or channel. Returns an error
	// rather than throwing across the boundary; callers decide whether a
	// connect failure is fatal.
	Connect(ctx context.Context) error
	// Prepare is sink-specific: for the statement formatter it executes the
	// parameterized prepare; for the others it is a no-op that still
	// validates connection state.
	Prepare(ctx context.Context, sinkCtx format.SinkContext) error
	// Write applies the pacing strategy, dispatches the envelope to the
	// underlying sink call, measures latency, and on logical failure
	// invokes the retry policy.
	Write(ctx context.Context, env Envelope) error
	// Close idempotently releases every underlying handle; safe to call on
	// a partially-constructed writer.
	Close() error

	// PlayMetrics returns the play-latency histogram snapshot (only
	// populated when the literal pacing strategy is active).
	PlayMetrics() LatencyStats
	// WriteMetrics returns the write-latency histogram snapshot.
	WriteMetrics() LatencyStats
}

// ErrNotConnected is returned by Prepare/Write when called before Connect
// has succeeded.
var ErrNotConnected = errors.New("sink: writer is not connected")
