package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taosdata/taosgen-sub001/internal/checkpoint"
	"github.com/taosdata/taosgen-sub001/internal/format"
	"github.com/taosdata/taosgen-sub001/internal/model"
	"github.com/taosdata/taosgen-sub001/internal/orchestrator"
	"github.com/taosdata/taosgen-sub001/internal/pacing"
	"github.com/taosdata/taosgen-sub001/internal/rowgen"
	"github.com/taosdata/taosgen-sub001/internal/sink"
)

// Build translates a loaded Config into the orchestrator.Config Run expects,
// wiring the sink writer factory, formatter registry, and every sub-config
// along the way. configPath is the YAML file's own path (may be empty),
// used only to derive the default checkpoint file location (spec §6
// "Checkpoint file format").
func Build(cfg *Config, configPath string) (orchestrator.Config, error) {
	columns, err := toColumnConfigs(cfg.Schema.Columns)
	if err != nil {
		return orchestrator.Config{}, errors.Wrap(err, "config: schema columns")
	}
	tags, err := toColumnConfigs(cfg.Schema.Tags)
	if err != nil {
		return orchestrator.Config{}, errors.Wrap(err, "config: schema tags")
	}

	precision, err := parsePrecision(cfg.Generation.Precision)
	if err != nil {
		return orchestrator.Config{}, err
	}

	disorder := make([]rowgen.DisorderWindow, len(cfg.Generation.Disorder))
	for i, d := range cfg.Generation.Disorder {
		disorder[i] = rowgen.DisorderWindow{
			Start:       d.TimeStart,
			End:         d.TimeEnd,
			Ratio:       d.Ratio,
			LatencyHigh: d.LatencyRange,
		}
	}

	producers := cfg.Generation.GenerateThreads
	if producers < 1 {
		producers = 1
	}
	consumers := cfg.Dispatch.InsertThreads
	if consumers < 1 {
		consumers = 1
	}

	formatType := format.FormatType(normalizeIdent(cfg.FormatType))
	registry, err := buildRegistry(cfg, formatType)
	if err != nil {
		return orchestrator.Config{}, err
	}

	newWriter, err := buildWriterFactory(cfg)
	if err != nil {
		return orchestrator.Config{}, err
	}

	ckptPath := cfg.Checkpoint.FilePath
	if ckptPath == "" {
		ckptPath = defaultCheckpointPath(configPath, cfg.Schema.Database, cfg.Schema.SuperTableName)
	}

	return orchestrator.Config{
		Schema: orchestrator.SchemaConfig{
			SuperTableName: cfg.Schema.SuperTableName,
			Database:       cfg.Schema.Database,
			Columns:        columns,
			Tags:           tags,
		},
		Naming: orchestrator.TableNaming{
			Explicit: cfg.Naming.Explicit,
			Prefix:   cfg.Naming.Prefix,
			Count:    cfg.Naming.Count,
		},
		Generation: orchestrator.GenerationConfig{
			RowsPerTable:          cfg.Generation.RowsPerTable,
			InterlaceRows:         cfg.Generation.InterlaceRows,
			StartTimestamp:        cfg.Generation.StartTimestamp,
			Step:                  cfg.Generation.Step,
			Precision:             precision,
			Disorder:              disorder,
			ReuseDataAcrossTables: cfg.Generation.TablesReuseData,
			CacheUnits:            cfg.Generation.CacheUnits,
		},
		Dispatch: orchestrator.DispatchConfig{
			ProducerCount:     producers,
			ConsumerCount:     consumers,
			QueueCapacity:     cfg.Dispatch.QueueCapacity,
			QueueWarmupRatio:  cfg.Dispatch.QueueWarmupRatio,
			SharedQueue:       cfg.Dispatch.SharedQueue,
			MaxTablesPerBlock: cfg.Dispatch.MaxTablesPerBlock,
			BlockCount:        cfg.Dispatch.BlockCount,
		},
		FormatType: formatType,
		Formatters: registry,
		Pacing: pacing.Config{
			Enabled:      cfg.Pacing.Enabled,
			Strategy:     pacing.StrategyType(normalizeIdent(cfg.Pacing.Strategy)),
			WaitMode:     pacing.WaitMode(normalizeIdent(cfg.Pacing.WaitMode)),
			BaseInterval: cfg.Pacing.BaseInterval,
			MinInterval:  cfg.Pacing.MinInterval,
			MaxInterval:  cfg.Pacing.MaxInterval,
		},
		Retry: sink.RetryConfig{
			MaxRetries:    cfg.Failure.MaxRetries,
			RetryInterval: time.Duration(cfg.Failure.RetryIntervalMs) * time.Millisecond,
			OnFailure:     sink.OnFailure(normalizeIdent(cfg.Failure.OnFailure)),
		},
		Checkpoint: checkpoint.Config{
			Enabled:     cfg.Checkpoint.Enabled,
			IntervalSec: cfg.Checkpoint.IntervalSec,
			FilePath:    ckptPath,
		},
		NewWriter: newWriter,
	}, nil
}

// defaultCheckpointPath implements spec §6's
// `<yaml_dir>_<db>_<super_table>_checkpoints.json` naming.
func defaultCheckpointPath(configPath, db, superTable string) string {
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	return checkpoint.FilePath(dir, db, superTable)
}

func parsePrecision(s string) (rowgen.Precision, error) {
	switch normalizeIdent(s) {
	case "", "ms":
		return rowgen.PrecisionMillis, nil
	case "us":
		return rowgen.PrecisionMicros, nil
	case "ns":
		return rowgen.PrecisionNanos, nil
	default:
		return 0, errors.Errorf("config: unrecognized generation.precision %q", s)
	}
}

func parseGeneratorKind(s string) (model.GeneratorKind, error) {
	switch normalizeIdent(s) {
	case "", "random":
		return model.GenRandom, nil
	case "order":
		return model.GenOrder, nil
	case "expression":
		return model.GenExpression, nil
	default:
		return 0, errors.Errorf("config: unrecognized generator kind %q", s)
	}
}

func toColumnConfigs(specs []ColumnSpec) ([]model.ColumnConfig, error) {
	out := make([]model.ColumnConfig, len(specs))
	for i, s := range specs {
		tag, err := model.ParseTag(s.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", s.Name)
		}
		gen, err := parseGeneratorKind(s.Generator)
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", s.Name)
		}
		out[i] = model.ColumnConfig{
			Name:       s.Name,
			Type:       tag,
			Length:     s.Length,
			Generator:  gen,
			Min:        s.Min,
			Max:        s.Max,
			ValuesList: s.Values,
			ZipfTheta:  s.ZipfTheta,
			IntDistrib: s.IntDistrib,
			OrderMin:   s.OrderMin,
			OrderMax:   s.OrderMax,
			Formula:    s.Formula,
			NullRatio:  s.NullRatio,
			IsPrimary:  s.IsPrimary,
		}
	}
	return out, nil
}

// buildRegistry constructs the formatter registry and replaces the entry for
// the selected formatType with one configured from cfg (spec §4.5): the
// database prefix for sql, the super table name for stmt, and the key/topic
// pattern, serializer, measurement and grouping for kafka/mqtt (plus payload
// compression for mqtt). The other entries keep NewRegistry's defaults; an
// unrecognized formatType is an error.
func buildRegistry(cfg *Config, formatType format.FormatType) (*format.Registry, error) {
	reg := format.NewRegistry()

	switch formatType {
	case format.FormatSQL:
		reg.Register(format.FormatSQL, func() format.Formatter {
			return format.NewSQLFormatter().WithDatabase(cfg.Schema.Database)
		})
	case format.FormatStmt:
		reg.Register(format.FormatStmt, func() format.Formatter {
			return format.NewStmtFormatter().WithShape(format.BindShapeSubTable, cfg.Schema.SuperTableName)
		})
	case format.FormatKafka:
		reg.Register(format.FormatKafka, func() format.Formatter {
			return format.NewKafkaFormatter(format.KafkaFormatterConfig{
				KeyPattern:      cfg.Kafka.KeyPattern,
				ValueSerializer: format.ValueSerializer(normalizeIdent(cfg.Kafka.ValueSerializer)),
				Measurement:     cfg.Kafka.Measurement,
				RecordsPerMsg:   cfg.Kafka.RecordsPerMsg,
			})
		})
	case format.FormatMQTT:
		reg.Register(format.FormatMQTT, func() format.Formatter {
			return format.NewMQTTFormatter(format.MQTTFormatterConfig{
				TopicPattern:    cfg.MQTT.TopicPattern,
				ValueSerializer: format.ValueSerializer(normalizeIdent(cfg.MQTT.ValueSerializer)),
				Measurement:     cfg.MQTT.Measurement,
				RecordsPerMsg:   cfg.MQTT.RecordsPerMsg,
				Compression:     format.PayloadCompression(strings.ToUpper(strings.TrimSpace(cfg.MQTT.Compression))),
			})
		})
	default:
		return nil, errors.Errorf("config: unrecognized format_type %q", formatType)
	}
	return reg, nil
}

// buildWriterFactory selects the sink writer constructor for cfg.TargetType
// and returns an orchestrator.WriterFactory closure over it. Each invocation
// (one per consumer, spec §5 "Writer connections are strictly owned by one
// consumer") gets its own prometheus.Registry: every writer registers
// identically-named `<kind>_play_latency_seconds`/`<kind>_write_latency_seconds`
// histograms, and insert_threads >= 2 would hit AlreadyRegisteredError on a
// shared registry.
func buildWriterFactory(cfg *Config) (orchestrator.WriterFactory, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TargetType)) {
	case "", "tdengine":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.TDengine.User, cfg.TDengine.Password, cfg.TDengine.Host, cfg.TDengine.Port, cfg.TDengine.Database)
		tdcfg := sink.TDengineConfig{DSN: dsn, Database: cfg.TDengine.Database}
		return func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
			return sink.NewTDengineWriter(tdcfg, pacer, retry, prometheus.NewRegistry())
		}, nil

	case "kafka":
		kcfg := sink.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}
		return func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
			return sink.NewKafkaWriter(kcfg, pacer, retry, prometheus.NewRegistry())
		}, nil

	case "mqtt":
		mcfg := sink.MQTTConfig{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       byte(cfg.MQTT.QoS),
			Retain:    cfg.MQTT.Retain,
			KeepAlive: time.Duration(cfg.MQTT.KeepAliveSec) * time.Second,
		}
		return func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
			return sink.NewMQTTWriter(mcfg, pacer, retry, prometheus.NewRegistry())
		}, nil

	case "file_system", "filesystem":
		fscfg := sink.FilesystemConfig{
			Directory:  cfg.FileSystem.Directory,
			FilePrefix: cfg.FileSystem.FilePrefix,
			RotateRows: cfg.FileSystem.RotateRows,
		}
		return func(pacer *pacing.Strategy, retry *sink.RetryPolicy) sink.Writer {
			return sink.NewFilesystemWriter(fscfg, pacer, retry, prometheus.NewRegistry())
		}, nil

	default:
		return nil, errors.Errorf("config: unrecognized target_type %q", cfg.TargetType)
	}
}
