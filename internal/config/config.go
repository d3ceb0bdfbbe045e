// Package config loads a taosgen job description from a YAML file, the
// TAOS_HOST/TAOS_PORT/TAOS_USER/TAOS_PASSWORD environment variables, and CLI
// flags, with precedence CLI > env > YAML > defaults (spec §6 "External
// interfaces"), grounded on elchinoo-stormdb's viper+pflag wiring.
package config

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ColumnSpec is the YAML-facing shape of one column or tag definition;
// Build() converts it to model.ColumnConfig once the super table's full
// schema is known.
type ColumnSpec struct {
	Name       string   `mapstructure:"name"`
	Type       string   `mapstructure:"type"`
	Length     int      `mapstructure:"length"`
	Generator  string   `mapstructure:"generator"`
	Min        float64  `mapstructure:"min"`
	Max        float64  `mapstructure:"max"`
	Values     []string `mapstructure:"values"`
	ZipfTheta  float64  `mapstructure:"zipf_theta"`
	IntDistrib bool     `mapstructure:"int_distribution"`
	OrderMin   int64    `mapstructure:"order_min"`
	OrderMax   int64    `mapstructure:"order_max"`
	Formula    string   `mapstructure:"formula"`
	NullRatio  float64  `mapstructure:"null_ratio"`
	IsPrimary  bool     `mapstructure:"is_primary"`
}

// SchemaSpec names the super table and its column/tag layout (spec §6
// "Schema").
type SchemaSpec struct {
	SuperTableName string       `mapstructure:"super_table_name"`
	Database       string       `mapstructure:"database"`
	Columns        []ColumnSpec `mapstructure:"columns"`
	Tags           []ColumnSpec `mapstructure:"tags"`
}

// NamingSpec selects child table naming (spec §6 "Schema", supplemented:
// the distilled spec covers schema columns/tags but not how child table
// names are sourced, which original_source reads from either an explicit
// CSV or a generated prefix series).
type NamingSpec struct {
	Explicit []string `mapstructure:"explicit"`
	Prefix   string   `mapstructure:"prefix"`
	Count    int      `mapstructure:"count"`
}

// DisorderSpec is one `data_disorder.intervals[*]` entry (spec §6).
type DisorderSpec struct {
	TimeStart    int64   `mapstructure:"time_start"`
	TimeEnd      int64   `mapstructure:"time_end"`
	Ratio        float64 `mapstructure:"ratio"`
	LatencyRange int64   `mapstructure:"latency_range"`
}

// GenerationSpec configures per-table row production (spec §6
// "Generation").
type GenerationSpec struct {
	GenerateThreads int            `mapstructure:"generate_threads"`
	RowsPerTable    int64          `mapstructure:"rows_per_table"`
	RowsPerBatch    int            `mapstructure:"rows_per_batch"`
	StartTimestamp  int64          `mapstructure:"start_timestamp"`
	Step            int64          `mapstructure:"step"`
	Precision       string         `mapstructure:"precision"`
	InterlaceRows   int            `mapstructure:"interlace_rows"`
	CacheUnits      int            `mapstructure:"num_cached_batches"`
	TablesReuseData bool           `mapstructure:"tables_reuse_data"`
	Disorder        []DisorderSpec `mapstructure:"disorder_intervals"`
}

// DispatchSpec configures the producer/consumer/queue topology (spec §6
// "Dispatch").
type DispatchSpec struct {
	InsertThreads     int     `mapstructure:"insert_threads"`
	QueueCapacity     int     `mapstructure:"queue_capacity"`
	QueueWarmupRatio  float64 `mapstructure:"queue_warmup_ratio"`
	SharedQueue       bool    `mapstructure:"shared_queue"`
	MaxTablesPerBlock int     `mapstructure:"max_tables_per_block"`
	BlockCount        int     `mapstructure:"block_count"`
}

// PacingSpec configures the inter-write wait strategy (spec §6 "Pacing").
type PacingSpec struct {
	Enabled      bool   `mapstructure:"enabled"`
	Strategy     string `mapstructure:"interval_strategy"`
	WaitMode     string `mapstructure:"wait_strategy"`
	BaseInterval int64  `mapstructure:"base_interval"`
	MinInterval  int64  `mapstructure:"min_interval"`
	MaxInterval  int64  `mapstructure:"max_interval"`
}

// FailureSpec configures retry/failure handling (spec §6 "Failure").
type FailureSpec struct {
	MaxRetries      int    `mapstructure:"max_retries"`
	RetryIntervalMs int64  `mapstructure:"retry_interval_ms"`
	OnFailure       string `mapstructure:"on_failure"`
}

// CheckpointSpec configures the checkpoint controller (spec §6
// "Checkpoint"); FilePath, if empty, is derived at Build time per spec §6's
// `<yaml_dir>_<db>_<super_table>_checkpoints.json` convention.
type CheckpointSpec struct {
	Enabled     bool   `mapstructure:"enabled"`
	IntervalSec int    `mapstructure:"interval_sec"`
	FilePath    string `mapstructure:"file_path"`
}

// TDengineSpec configures the tdengine sink (spec §6 "Target-specific").
type TDengineSpec struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// KafkaSpec configures the kafka sink and its message formatter (spec §6
// "Target-specific", §4.5).
type KafkaSpec struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	KeyPattern      string   `mapstructure:"key_pattern"`
	ValueSerializer string   `mapstructure:"value_serializer"`
	Measurement     string   `mapstructure:"measurement"`
	RecordsPerMsg   int      `mapstructure:"records_per_message"`
}

// MQTTSpec configures the mqtt sink and its message formatter (spec §6
// "Target-specific", §4.5).
type MQTTSpec struct {
	BrokerURL       string `mapstructure:"broker_url"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	QoS             int    `mapstructure:"qos"`
	Retain          bool   `mapstructure:"retain"`
	KeepAliveSec    int    `mapstructure:"keep_alive_sec"`
	TopicPattern    string `mapstructure:"topic_pattern"`
	ValueSerializer string `mapstructure:"value_serializer"`
	Measurement     string `mapstructure:"measurement"`
	RecordsPerMsg   int    `mapstructure:"records_per_message"`
	Compression     string `mapstructure:"compression"`
}

// FileSystemSpec configures the filesystem sink skeleton (spec §6
// "File-system sink (skeleton)").
type FileSystemSpec struct {
	Directory  string `mapstructure:"directory"`
	FilePrefix string `mapstructure:"file_prefix"`
	RotateRows int    `mapstructure:"rotate_rows"`
}

// Config is the full unmarshaled job description, one-to-one with spec §6's
// configuration table.
type Config struct {
	TargetType string `mapstructure:"target_type"`
	FormatType string `mapstructure:"format_type"`
	Verbose    bool   `mapstructure:"verbose"`

	Schema     SchemaSpec     `mapstructure:"schema"`
	Naming     NamingSpec     `mapstructure:"naming"`
	Generation GenerationSpec `mapstructure:"generation"`
	Dispatch   DispatchSpec   `mapstructure:"dispatch"`
	Pacing     PacingSpec     `mapstructure:"time_interval"`
	Failure    FailureSpec    `mapstructure:"failure"`
	Checkpoint CheckpointSpec `mapstructure:"checkpoint"`

	TDengine   TDengineSpec   `mapstructure:"tdengine"`
	Kafka      KafkaSpec      `mapstructure:"kafka"`
	MQTT       MQTTSpec       `mapstructure:"mqtt"`
	FileSystem FileSystemSpec `mapstructure:"file_system"`
}

// setDefaults seeds v with every value a freshly-`taosgen run`'d job should
// get without a YAML file, matching the defaults called out across spec §6.
func setDefaults(v *viper.Viper) {
	v.SetDefault("target_type", "tdengine")
	v.SetDefault("format_type", "sql")
	v.SetDefault("generation.rows_per_batch", 256)
	v.SetDefault("generation.step", 1000)
	v.SetDefault("generation.precision", "ms")
	v.SetDefault("dispatch.insert_threads", 1)
	v.SetDefault("generation.generate_threads", 1)
	v.SetDefault("dispatch.queue_capacity", 1024)
	v.SetDefault("dispatch.queue_warmup_ratio", 0.0)
	v.SetDefault("dispatch.shared_queue", true)
	v.SetDefault("dispatch.max_tables_per_block", 1)
	v.SetDefault("dispatch.block_count", 64)
	v.SetDefault("time_interval.interval_strategy", "fixed")
	v.SetDefault("time_interval.wait_strategy", "sleep")
	v.SetDefault("failure.on_failure", "exit")
	v.SetDefault("checkpoint.interval_sec", 5)
	v.SetDefault("tdengine.port", 6030)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.keep_alive_sec", 30)
	v.SetDefault("mqtt.value_serializer", "json")
	v.SetDefault("kafka.value_serializer", "json")
	v.SetDefault("file_system.rotate_rows", 100000)
}

// envBindings maps the four documented environment variables onto their
// config keys (spec §6 "(2) environment variables").
var envBindings = map[string]string{
	"tdengine.host":     "TAOS_HOST",
	"tdengine.port":     "TAOS_PORT",
	"tdengine.user":     "TAOS_USER",
	"tdengine.password": "TAOS_PASSWORD",
}

// CLIOverrides carries the handful of top-level flags spec §6's CLI
// contract names explicitly (`--host`, `--port`, `--user`, `--password`);
// these take precedence over both the YAML file and the TAOS_* environment
// variables (spec §6 "(3) CLI flags").
type CLIOverrides struct {
	Host     string
	Port     int
	User     string
	Password string
}

// bind wires o's non-zero fields onto flags under the dotted keys viper
// resolves against tdengine.*, so BindPFlags gives them top CLI precedence
// without requiring the YAML schema's own key names to appear on the
// command line.
func (o CLIOverrides) bind(flags *pflag.FlagSet) {
	// Each flag is Set after definition so pflag marks it changed: viper
	// only gives a bound flag CLI precedence when it has changed, and
	// otherwise treats its default as the lowest-precedence fallback.
	if o.Host != "" {
		flags.String("tdengine.host", "", "")
		_ = flags.Set("tdengine.host", o.Host)
	}
	if o.Port != 0 {
		flags.Int("tdengine.port", 0, "")
		_ = flags.Set("tdengine.port", strconv.Itoa(o.Port))
	}
	if o.User != "" {
		flags.String("tdengine.user", "", "")
		_ = flags.Set("tdengine.user", o.User)
	}
	if o.Password != "" {
		flags.String("tdengine.password", "", "")
		_ = flags.Set("tdengine.password", o.Password)
	}
}

// Load builds a Config from, in ascending precedence: built-in defaults, the
// YAML file at configPath (if non-empty), the TAOS_* environment variables,
// and overrides.
func Load(configPath string, overrides CLIOverrides) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "config: binding env var %s", env)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", configPath)
		}
	}

	cliFlags := pflag.NewFlagSet("taosgen-cli-overrides", pflag.ContinueOnError)
	overrides.bind(cliFlags)
	if err := v.BindPFlags(cliFlags); err != nil {
		return nil, errors.Wrap(err, "config: binding CLI overrides")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshaling")
	}
	return &cfg, nil
}

// normalizeIdent lower-cases and trims an enum-like config value so YAML
// authors can write `Fixed`, `FIXED`, or `fixed` interchangeably.
func normalizeIdent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
