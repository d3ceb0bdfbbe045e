package orchestrator

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/process"
)

// monitorInterval is how often the monitoring loop samples and logs
// progress (spec §4.10 step 7: "every second").
const monitorInterval = time.Second

// runMonitor logs throughput, queue occupancy, CPU/memory, and goroutine
// count every monitorInterval until ctx is cancelled (spec §4.10 step 7).
func (o *Orchestrator) runMonitor(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		o.log.Warningf("monitor: unable to open self process handle: %v", err)
	}

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	var lastRows int64
	lastSample := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rows := o.currentTotalRows()
			elapsed := now.Sub(lastSample).Seconds()
			var rate float64
			if elapsed > 0 {
				rate = float64(rows-lastRows) / elapsed
			}
			lastRows = rows
			lastSample = now

			var rssMsg, cpuMsg string
			if proc != nil {
				if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
					rssMsg = humanize.IBytes(mem.RSS)
				}
				if cpuPercent, err := proc.CPUPercent(); err == nil {
					cpuMsg = humanizeCPU(cpuPercent)
				}
			}

			o.log.Infof(
				"progress: %d rows written (%.0f rows/s), queue=%d goroutines=%d rss=%s cpu=%s",
				rows, rate, o.pl.TotalQueued(), runtime.NumGoroutine(), rssMsg, cpuMsg,
			)
		}
	}
}

func (o *Orchestrator) currentTotalRows() int64 {
	o.writeCountsMu.Lock()
	defer o.writeCountsMu.Unlock()
	var total int64
	for _, n := range o.writeCounts {
		total += n
	}
	return total
}

func humanizeCPU(percent float64) string {
	return humanize.FormatFloat("#,###.#", percent) + "%"
}
