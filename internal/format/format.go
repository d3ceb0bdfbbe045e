// Package format turns a MemoryBlock into sink-specific payloads: SQL text,
// bulk-bind descriptors, or Kafka/MQTT (key|topic, value) pairs (spec §4.5).
package format

import (
	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// FormatType selects which formatter handles a table's writes.
type FormatType string

// Recognized formatter keys (spec §4.5).
const (
	FormatSQL   FormatType = "sql"
	FormatStmt  FormatType = "stmt"
	FormatKafka FormatType = "kafka"
	FormatMQTT  FormatType = "mqtt"
)

// SinkContext is the formatter-specific prepare context returned by Init:
// e.g. a parameterized INSERT template for statement mode, empty for
// wire-level (Kafka/MQTT) sinks.
type SinkContext struct {
	PrepareSQL string
	BindShape  BindShape
}

// BindShape selects the parameterized-insert template shape for the
// statement formatter (spec §4.5 "Statement formatter (v2 only)").
type BindShape int

// Recognized bind shapes.
const (
	BindShapeSubTable BindShape = iota
	BindShapeSuperTable
	BindShapeAutoCreate
)

// FormatResult is a formatter's output for one MemoryBlock: either SQL
// text, a bulk-bind descriptor list, or a set of key/value (or
// topic/payload) message pairs — exactly one is populated, selected by the
// formatter that produced it.
type FormatResult struct {
	SQL      string
	Binds    []memtable.BindDescriptor
	Messages []Message
}

// Message is one (key-or-topic, payload) pair produced by a wire-level
// formatter.
type Message struct {
	Key     string
	Payload []byte
}

// Formatter is the contract every format_type implementation satisfies
// (spec §4.5).
type Formatter interface {
	Init(columns, tags []model.ColumnConfig) (SinkContext, error)
	Format(block *memtable.MemoryBlock, isRecovery bool) (FormatResult, error)
}

// Registry is an explicit, non-singleton formatter factory keyed by
// FormatType (a package-level singleton would make every caller share
// mutable global state across concurrent table configurations, so callers
// construct and own their own Registry).
type Registry struct {
	formatters map[FormatType]func() Formatter
}

// NewRegistry returns a Registry pre-populated with the four built-in
// formatters.
func NewRegistry() *Registry {
	r := &Registry{formatters: make(map[FormatType]func() Formatter)}
	r.Register(FormatSQL, func() Formatter { return NewSQLFormatter() })
	r.Register(FormatStmt, func() Formatter { return NewStmtFormatter() })
	r.Register(FormatKafka, func() Formatter { return NewKafkaFormatter(KafkaFormatterConfig{}) })
	r.Register(FormatMQTT, func() Formatter { return NewMQTTFormatter(MQTTFormatterConfig{}) })
	return r
}

// Register adds or replaces the constructor for formatType.
func (r *Registry) Register(formatType FormatType, newFn func() Formatter) {
	r.formatters[formatType] = newFn
}

// New constructs a fresh Formatter instance for formatType.
func (r *Registry) New(formatType FormatType) (Formatter, bool) {
	newFn, ok := r.formatters[formatType]
	if !ok {
		return nil, false
	}
	return newFn(), true
}
