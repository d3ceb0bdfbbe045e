package format

import (
	"bytes"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// ValueSerializer selects the Kafka/MQTT message body encoding.
type ValueSerializer string

// Recognized value serializers (spec §4.5).
const (
	SerializerJSON   ValueSerializer = "json"
	SerializerInflux ValueSerializer = "influx"
)

// KafkaFormatterConfig configures a KafkaFormatter.
type KafkaFormatterConfig struct {
	KeyPattern      string
	ValueSerializer ValueSerializer
	Measurement     string // used when ValueSerializer == SerializerInflux
	RecordsPerMsg   int    // 0 or 1 means one row per message
	TagLookup       func(tableName string) []model.Cell
}

// KafkaFormatter produces (key, value) message pairs, one or one-per-group
// of RecordsPerMsg rows (spec §4.5 "Kafka formatter"). It is unaware of the
// network protocol: the sink package's KafkaWriter is the thing that
// actually produces these onto a broker.
type KafkaFormatter struct {
	cfg         KafkaFormatterConfig
	keyTemplate *Template
	columns     []model.ColumnConfig
	tags        []model.ColumnConfig
}

// NewKafkaFormatter constructs a formatter from cfg; the key pattern is
// compiled lazily on Init once columns/tags are known.
func NewKafkaFormatter(cfg KafkaFormatterConfig) *KafkaFormatter {
	if cfg.RecordsPerMsg <= 0 {
		cfg.RecordsPerMsg = 1
	}
	if cfg.ValueSerializer == "" {
		cfg.ValueSerializer = SerializerJSON
	}
	return &KafkaFormatter{cfg: cfg}
}

// Init implements Formatter.
func (f *KafkaFormatter) Init(columns, tags []model.ColumnConfig) (SinkContext, error) {
	f.columns = columns
	f.tags = tags
	f.keyTemplate = CompileTemplate(f.cfg.KeyPattern)
	return SinkContext{}, nil
}

// SetTagLookup installs the per-table tag resolver, used when the caller
// constructing the Registry's formatter factory does not yet have access to
// the table tag source (e.g. the orchestrator's memory pool, built after
// formatter registration).
func (f *KafkaFormatter) SetTagLookup(lookup func(tableName string) []model.Cell) {
	f.cfg.TagLookup = lookup
}

// Format implements Formatter.
func (f *KafkaFormatter) Format(block *memtable.MemoryBlock, isRecovery bool) (FormatResult, error) {
	if block == nil || block.UsedTables() == 0 {
		return FormatResult{}, errors.New("format: kafka formatter given an empty block")
	}

	var messages []Message
	for t := 0; t < block.UsedTables(); t++ {
		tb := block.Table(t)
		var tags []model.Cell
		if f.cfg.TagLookup != nil {
			tags = f.cfg.TagLookup(tb.TableName())
		}

		rows := tb.UsedRows()
		for start := 0; start < rows; start += f.cfg.RecordsPerMsg {
			end := start + f.cfg.RecordsPerMsg
			if end > rows {
				end = rows
			}
			msg, err := f.buildMessage(block, t, start, end, tags)
			if err != nil {
				return FormatResult{}, err
			}
			messages = append(messages, msg)
		}
	}
	return FormatResult{Messages: messages}, nil
}

func (f *KafkaFormatter) buildMessage(block *memtable.MemoryBlock, t, start, end int, tags []model.Cell) (Message, error) {
	var buf bytes.Buffer
	multi := end-start > 1
	if multi && f.cfg.ValueSerializer == SerializerJSON {
		buf.WriteByte('[')
	}
	var key string
	for row := start; row < end; row++ {
		src := RowSourceFromBlock(block, t, row, f.columns, tags)
		if row == start {
			key = f.keyTemplate.Resolve(f.columns, f.tags, src)
		}
		if row > start {
			buf.WriteByte(',')
			if f.cfg.ValueSerializer == SerializerInflux {
				buf.WriteByte('\n')
			}
		}
		switch f.cfg.ValueSerializer {
		case SerializerInflux:
			ToInfluxInplace(f.columns, f.tags, src, f.cfg.Measurement, &buf)
		default:
			if err := ToJSONInplace(f.columns, f.tags, src, "", &buf); err != nil {
				return Message{}, errors.Wrap(err, "format: kafka json serialization")
			}
		}
	}
	if multi && f.cfg.ValueSerializer == SerializerJSON {
		buf.WriteByte(']')
	}
	payload := make([]byte, buf.Len())
	copy(payload, buf.Bytes())
	return Message{Key: key, Payload: payload}, nil
}
