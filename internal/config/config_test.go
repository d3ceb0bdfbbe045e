package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsWithoutAFile(t *testing.T) {
	cfg, err := Load("", CLIOverrides{})
	require.NoError(t, err)
	require.Equal(t, "tdengine", cfg.TargetType)
	require.Equal(t, "sql", cfg.FormatType)
	require.Equal(t, 256, cfg.Generation.RowsPerBatch)
	require.Equal(t, "fixed", cfg.Pacing.Strategy)
	require.Equal(t, 6030, cfg.TDengine.Port)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `
target_type: kafka
schema:
  super_table_name: meters
  database: bench
  columns:
    - name: value
      type: DOUBLE
      generator: random
      min: 0
      max: 100
tdengine:
  host: yaml-host
  port: 7030
`)

	cfg, err := Load(path, CLIOverrides{})
	require.NoError(t, err)
	require.Equal(t, "kafka", cfg.TargetType)
	require.Equal(t, "yaml-host", cfg.TDengine.Host)
	require.Equal(t, 7030, cfg.TDengine.Port)
	require.Len(t, cfg.Schema.Columns, 1)
	require.Equal(t, "value", cfg.Schema.Columns[0].Name)
}

func TestCLIOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `
tdengine:
  host: yaml-host
  port: 7030
`)

	cfg, err := Load(path, CLIOverrides{Host: "cli-host", Port: 9030})
	require.NoError(t, err)
	require.Equal(t, "cli-host", cfg.TDengine.Host)
	require.Equal(t, 9030, cfg.TDengine.Port)
}

func TestEnvOverridesYAMLButNotCLI(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `
tdengine:
  host: yaml-host
`)
	t.Setenv("TAOS_HOST", "env-host")

	cfg, err := Load(path, CLIOverrides{})
	require.NoError(t, err)
	require.Equal(t, "env-host", cfg.TDengine.Host)

	cfg2, err := Load(path, CLIOverrides{Host: "cli-host"})
	require.NoError(t, err)
	require.Equal(t, "cli-host", cfg2.TDengine.Host)
}

func TestLoadRejectsMissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/job.yaml", CLIOverrides{})
	require.Error(t, err)
}
