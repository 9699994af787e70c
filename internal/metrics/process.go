package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats снимок потребления ресурсов процессом
type ProcessStats struct {
	StartTime  time.Time `json:"start_time"`
	Uptime     string    `json:"uptime"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	HeapMB     float64   `json:"heap_mb"`
	Goroutines int       `json:"goroutines"`
}

// ProcessSampler периодически снимает CPU и RSS процесса через gopsutil
type ProcessSampler struct {
	start time.Time
	proc  *process.Process
}

// NewProcessSampler создаёт сэмплер для текущего процесса
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{start: time.Now(), proc: proc}, nil
}

// Sample возвращает текущий снимок
func (s *ProcessSampler) Sample() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := ProcessStats{
		StartTime:  s.start,
		Uptime:     time.Since(s.start).Truncate(time.Second).String(),
		HeapMB:     float64(ms.HeapAlloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
	}

	if pct, err := s.proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	} else if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		// Процессная метрика недоступна, берём системную
		stats.CPUPercent = pcts[0]
	}

	if mem, err := s.proc.MemoryInfo(); err == nil {
		stats.RSSBytes = mem.RSS
	}
	return stats
}

// Run обновляет gauge'и m с заданным интервалом до отмены ctx
func (s *ProcessSampler) Run(ctx context.Context, m *Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m == nil {
				continue
			}
			st := s.Sample()
			m.processCPU.Set(st.CPUPercent)
			m.processRSS.Set(float64(st.RSSBytes))
		}
	}
}
