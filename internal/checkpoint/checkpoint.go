// Package checkpoint periodically snapshots per-table write progress to a
// file and, on startup, uses that file to resume a job past the rows it
// already wrote (spec §4.8), grounded on original_source's
// CheckpointAction.hpp/.cpp.
package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/taosdata/taosgen-sub001/internal/logutil"
)

// Data is one table's write progress, posted by a writer after every
// successful batch (spec §4.1 CheckpointData).
type Data struct {
	TableName          string
	LastCheckpointTime int64
	WriteCount         int64
}

// Config mirrors the `checkpoint` block of a job's configuration (spec §6).
type Config struct {
	Enabled     bool
	IntervalSec int
	FilePath    string
}

// fileDoc is the on-disk JSON shape: a single table's progress, always the
// minimum across every table currently tracked (spec §4.8).
type fileDoc struct {
	TableName          string `json:"table_name"`
	LastCheckpointTime int64  `json:"last_checkpoint_time"`
}

// Controller runs a background timer that periodically persists the
// minimum-progress table's checkpoint to Config.FilePath, and exposes
// Notify for writers to post progress updates (spec §4.8, grounded on
// CheckpointAction).
type Controller struct {
	cfg Config
	log *logutil.Logger

	mu    sync.Mutex
	table map[string]Data

	stop        chan struct{}
	done        chan struct{}
	interrupted bool
	started     bool
}

// New constructs a Controller; Start must be called to activate the timer.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:   cfg,
		log:   logutil.New("checkpoint"),
		table: make(map[string]Data),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the background timer goroutine if Config.Enabled; a
// disabled controller's Start is a no-op so callers don't need to branch on
// cfg.Enabled themselves.
func (c *Controller) Start(ctx context.Context) {
	if c.started {
		return
	}
	c.started = true
	if !c.cfg.Enabled {
		close(c.done)
		return
	}
	go c.runTimer(ctx)
}

func (c *Controller) runTimer(ctx context.Context) {
	defer close(c.done)
	interval := time.Duration(c.cfg.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.saveCheckpoint(); err != nil {
				c.log.Errorf("saving checkpoint: %v", err)
			}
		case <-c.stop:
			if !c.interrupted {
				if err := c.deleteCheckpoint(); err != nil {
					c.log.Errorf("deleting checkpoint: %v", err)
				}
			}
			return
		case <-ctx.Done():
			if !c.interrupted {
				if err := c.deleteCheckpoint(); err != nil {
					c.log.Errorf("deleting checkpoint: %v", err)
				}
			}
			return
		}
	}
}

// Notify merges data into the controller's table map; called by a writer
// after every successful batch. Safe for concurrent callers.
func (c *Controller) Notify(data []Data) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range data {
		c.table[d.TableName] = d
	}
}

// StopAll stops the background timer and waits for it to exit. When
// interrupt is true the checkpoint file is preserved instead of deleted, so
// an interrupted run can resume later (spec §4.8, §4.10 "stop_all(true)").
func (c *Controller) StopAll(interrupt bool) {
	if !c.started {
		return
	}
	c.mu.Lock()
	c.interrupted = interrupt
	c.mu.Unlock()
	close(c.stop)
	<-c.done
}

func (c *Controller) saveCheckpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.table) == 0 {
		return nil
	}
	min := minProgress(c.table)
	return writeAtomic(c.cfg.FilePath, fileDoc{
		TableName:          min.TableName,
		LastCheckpointTime: min.LastCheckpointTime,
	})
}

func (c *Controller) deleteCheckpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = make(map[string]Data)
	err := os.Remove(c.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// minProgress returns the table entry with the smallest LastCheckpointTime;
// table map keys are iterated in sorted order first so ties are resolved
// deterministically across runs (map iteration order is not stable).
func minProgress(table map[string]Data) Data {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	min := table[names[0]]
	for _, name := range names[1:] {
		if d := table[name]; d.LastCheckpointTime < min.LastCheckpointTime {
			min = d
		}
	}
	return min
}

// writeAtomic marshals doc as indented JSON and writes it to path via a
// temp-file-then-rename so a reader never observes a partially written file
// (spec §4.8 "atomically overwrites"), grounded on the teacher's own
// write-tmp-then-os.Rename pattern in cmd/roachprod/hosts.go.
func writeAtomic(path string, doc fileDoc) error {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "checkpoint: marshaling")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return errors.Wrapf(err, "checkpoint: writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "checkpoint: renaming %s to %s", tmp, path)
	}
	return nil
}
