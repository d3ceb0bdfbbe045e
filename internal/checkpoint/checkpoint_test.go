package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveCheckpointPicksMinimumProgressTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	c := New(Config{Enabled: true, IntervalSec: 1, FilePath: path})

	c.Notify([]Data{
		{TableName: "t1", LastCheckpointTime: 2000},
		{TableName: "t0", LastCheckpointTime: 1000},
		{TableName: "t2", LastCheckpointTime: 3000},
	})

	require.NoError(t, c.saveCheckpoint())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc fileDoc
	require.NoError(t, json.Unmarshal(body, &doc))
	require.Equal(t, "t0", doc.TableName)
	require.Equal(t, int64(1000), doc.LastCheckpointTime)
}

func TestSaveCheckpointNoopWhenTableMapEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	c := New(Config{Enabled: true, IntervalSec: 1, FilePath: path})

	require.NoError(t, c.saveCheckpoint())
	require.NoFileExists(t, path)
}

func TestStopAllDeletesFileOnOrderlyShutdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	c := New(Config{Enabled: true, IntervalSec: 100, FilePath: path})

	c.Notify([]Data{{TableName: "t0", LastCheckpointTime: 1000}})
	require.NoError(t, c.saveCheckpoint())
	require.FileExists(t, path)

	c.Start(context.Background())
	c.StopAll(false)

	require.NoFileExists(t, path)
}

func TestStopAllPreservesFileOnInterrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	c := New(Config{Enabled: true, IntervalSec: 100, FilePath: path})

	c.Notify([]Data{{TableName: "t0", LastCheckpointTime: 1000}})
	require.NoError(t, c.saveCheckpoint())
	require.FileExists(t, path)

	c.Start(context.Background())
	c.StopAll(true)

	require.FileExists(t, path)
}

func TestDisabledControllerStartIsNoop(t *testing.T) {
	c := New(Config{Enabled: false})
	c.Start(context.Background())
	c.StopAll(false) // must not hang
}

func TestTimerPeriodicallySavesCheckpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	c := New(Config{Enabled: true, IntervalSec: 1, FilePath: path})
	c.Notify([]Data{{TableName: "t0", LastCheckpointTime: 5000}})

	c.Start(context.Background())
	time.Sleep(1200 * time.Millisecond)
	c.StopAll(true)

	require.FileExists(t, path)
}

func TestRecoverMissingFileReturnsNotRecovered(t *testing.T) {
	dir := t.TempDir()
	res, err := Recover(filepath.Join(dir, "missing.json"), 1000, 100, 50)
	require.NoError(t, err)
	require.False(t, res.Recovered)
}

func TestRecoverAdjustsStartAndRowBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	require.NoError(t, writeAtomic(path, fileDoc{TableName: "t1", LastCheckpointTime: 1620000005000}))

	res, err := Recover(path, 1620000000000, 1000, 100)
	require.NoError(t, err)
	require.True(t, res.Recovered)
	require.False(t, res.Done)
	require.Equal(t, int64(1620000005000), res.StartTimestamp)
	require.Equal(t, int64(95), res.RowsPerTable)
}

func TestRecoverDoneWhenBudgetAlreadySatisfied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_db_stb_checkpoints.json")
	require.NoError(t, writeAtomic(path, fileDoc{TableName: "t1", LastCheckpointTime: 1620000100000}))

	res, err := Recover(path, 1620000000000, 1000, 50)
	require.NoError(t, err)
	require.True(t, res.Recovered)
	require.True(t, res.Done)
}

func TestFilePathIsDeterministic(t *testing.T) {
	require.Equal(t, "cfg_mydb_stb_checkpoints.json", FilePath("cfg", "mydb", "stb"))
}
