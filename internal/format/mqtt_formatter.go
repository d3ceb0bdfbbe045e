package format

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/taosdata/taosgen-sub001/internal/memtable"
	"github.com/taosdata/taosgen-sub001/internal/model"
)

// PayloadCompression selects an optional compression pass over an MQTT
// message body (spec §4.5 "MQTT formatter").
type PayloadCompression string

// Recognized compressions.
const (
	CompressionNone PayloadCompression = "NONE"
	CompressionGzip PayloadCompression = "GZIP"
	CompressionLZ4  PayloadCompression = "LZ4"
	CompressionZstd PayloadCompression = "ZSTD"
)

// MQTTFormatterConfig configures an MQTTFormatter.
type MQTTFormatterConfig struct {
	TopicPattern    string
	ValueSerializer ValueSerializer
	Measurement     string
	RecordsPerMsg   int
	Compression     PayloadCompression
	TagLookup       func(tableName string) []model.Cell
}

// MQTTFormatter produces (topic, payload) message pairs, analogous to
// KafkaFormatter but keyed by a compiled topic template and supporting an
// optional payload compression pass (spec §4.5 "MQTT formatter").
type MQTTFormatter struct {
	cfg           MQTTFormatterConfig
	topicTemplate *Template
	columns       []model.ColumnConfig
	tags          []model.ColumnConfig
}

// NewMQTTFormatter constructs a formatter from cfg.
func NewMQTTFormatter(cfg MQTTFormatterConfig) *MQTTFormatter {
	if cfg.RecordsPerMsg <= 0 {
		cfg.RecordsPerMsg = 1
	}
	if cfg.ValueSerializer == "" {
		cfg.ValueSerializer = SerializerJSON
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	return &MQTTFormatter{cfg: cfg}
}

// Init implements Formatter.
func (f *MQTTFormatter) Init(columns, tags []model.ColumnConfig) (SinkContext, error) {
	f.columns = columns
	f.tags = tags
	f.topicTemplate = CompileTemplate(f.cfg.TopicPattern)
	return SinkContext{}, nil
}

// SetTagLookup installs the per-table tag resolver; see
// KafkaFormatter.SetTagLookup for why this is a post-construction setter
// rather than a constructor parameter.
func (f *MQTTFormatter) SetTagLookup(lookup func(tableName string) []model.Cell) {
	f.cfg.TagLookup = lookup
}

// Format implements Formatter.
func (f *MQTTFormatter) Format(block *memtable.MemoryBlock, isRecovery bool) (FormatResult, error) {
	if block == nil || block.UsedTables() == 0 {
		return FormatResult{}, errors.New("format: mqtt formatter given an empty block")
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

func (f *MQTTFormatter) buildMessage(block *memtable.MemoryBlock, t, start, end int, tags []model.Cell) (Message, error) {
	var buf bytes.Buffer
	multi := end-start > 1
	if multi && f.cfg.ValueSerializer == SerializerJSON {
		buf.WriteByte('[')
	}
	var topic string
	for row := start; row < end; row++ {
		src := RowSourceFromBlock(block, t, row, f.columns, tags)
		if row == start {
			topic = f.topicTemplate.Resolve(f.columns, f.tags, src)
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
				return Message{}, errors.Wrap(err, "format: mqtt json serialization")
			}
		}
	}
	if multi && f.cfg.ValueSerializer == SerializerJSON {
		buf.WriteByte(']')
	}

	payload, err := compressPayload(buf.Bytes(), f.cfg.Compression)
	if err != nil {
		return Message{}, err
	}
	return Message{Key: topic, Payload: payload}, nil
}

func compressPayload(data []byte, c PayloadCompression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "format: gzip compressing mqtt payload")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "format: closing gzip writer")
		}
		return buf.Bytes(), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.Wrap(err, "format: lz4 compressing mqtt payload")
		}
		if err := w.Close(); err != nil {
			return nil, errors.Wrap(err, "format: closing lz4 writer")
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "format: constructing zstd encoder")
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, errors.Errorf("format: unrecognized mqtt compression %q", c)
	}
}
