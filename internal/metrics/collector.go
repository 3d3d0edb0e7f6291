// Package metrics samples process and system load on an interval
// during long imports, alongside the store's record-cache residency.
package metrics

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

// Collector logs a load snapshot every interval.
type Collector struct {
	interval time.Duration
	log      *zap.Logger
	st       *store.Store // nil when there is no cache to report
	proc     *process.Process

	lastDisk map[string]disk.IOCountersStat
	lastTime time.Time
}

// New builds a collector. Pass the store to include cache residency in
// each snapshot, or nil.
func New(interval time.Duration, st *store.Store) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		log:      logger.Get(),
		st:       st,
		proc:     proc,
	}
}

// Run samples until the context is canceled. The first sample
// initializes the disk baseline and reports zero rates.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	fields := make([]zap.Field, 0, 8)

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		fields = append(fields, zap.String("sys_cpu", fmt.Sprintf("%.1f%%", pct[0])))
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			fields = append(fields, zap.String("proc_cpu", fmt.Sprintf("%.1f%%", pct)))
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		fields = append(fields,
			zap.String("mem", fmt.Sprintf("%.1f GB (%.1f%%)",
				float64(vmem.Used)/(1<<30), vmem.UsedPercent)))
	}

	readMBps, writeMBps := c.diskRates()
	fields = append(fields,
		zap.String("disk_r", fmt.Sprintf("%.1f MB/s", readMBps)),
		zap.String("disk_w", fmt.Sprintf("%.1f MB/s", writeMBps)))

	if c.st != nil {
		bytes, entries := c.st.CacheStats()
		fields = append(fields,
			zap.Int64("cache_bytes", bytes),
			zap.Int("cache_entries", entries))
	}

	c.log.Info("load", fields...)
}

// diskRates computes aggregate read/write throughput since the last
// sample.
func (c *Collector) diskRates() (readMBps, writeMBps float64) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0
	}
	now := time.Now()

	if c.lastDisk == nil {
		c.lastDisk = counters
		c.lastTime = now
		return 0, 0
	}

	elapsed := now.Sub(c.lastTime).Seconds()
	if elapsed < 0.1 {
		return 0, 0
	}

	var readDelta, writeDelta uint64
	for name, cur := range counters {
		last, ok := c.lastDisk[name]
		if !ok {
			continue
		}
		// Tolerate counter wrap.
		if cur.ReadBytes >= last.ReadBytes {
			readDelta += cur.ReadBytes - last.ReadBytes
		}
		if cur.WriteBytes >= last.WriteBytes {
			writeDelta += cur.WriteBytes - last.WriteBytes
		}
	}
	c.lastDisk = counters
	c.lastTime = now

	return float64(readDelta) / elapsed / (1 << 20),
		float64(writeDelta) / elapsed / (1 << 20)
}
