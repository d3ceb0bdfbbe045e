package checkpoint

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

// RecoveryResult carries the adjustments startup recovery makes to a job's
// effective start timestamp and remaining row budget (spec §4.8).
type RecoveryResult struct {
	// Recovered is true when a checkpoint file was found and parsed.
	Recovered bool
	// Done is true when the checkpoint already satisfies the configured
	// row budget, per spec §4.8: "If the recovered write count already
	// satisfies rows_per_table, the job ends immediately."
	Done bool

	StartTimestamp int64
	RowsPerTable   int64
}

// FilePath builds the deterministic checkpoint file path for a job
// (spec §4.8: "<yaml_dir>_<db>_<super_table>_checkpoints.json").
func FilePath(yamlDir, database, superTable string) string {
	return yamlDir + "_" + database + "_" + superTable + "_checkpoints.json"
}

// Exists reports whether a checkpoint file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Recover reads the checkpoint file at path, if any, and computes the
// adjusted start timestamp and remaining per-table row budget. step is the
// configured timestamp step (same precision as startTimestamp and the file's
// last_checkpoint_time). A missing file returns a zero RecoveryResult with
// Recovered=false and no error.
func Recover(path string, startTimestamp, step, rowsPerTable int64) (RecoveryResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RecoveryResult{}, nil
		}
		return RecoveryResult{}, errors.Wrapf(err, "checkpoint: reading %s", path)
	}

	var doc fileDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return RecoveryResult{}, errors.Wrapf(err, "checkpoint: parsing %s", path)
	}

	if step <= 0 {
		return RecoveryResult{}, errors.Newf("checkpoint: non-positive timestamp step %d", step)
	}

	writeCount := (doc.LastCheckpointTime - startTimestamp) / step
	if rowsPerTable <= writeCount {
		return RecoveryResult{Recovered: true, Done: true}, nil
	}

	return RecoveryResult{
		Recovered:      true,
		StartTimestamp: doc.LastCheckpointTime,
		RowsPerTable:   rowsPerTable - writeCount,
	}, nil
}
