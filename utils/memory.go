package utils

import (
	"fmt"
	"runtime"
	"time"

	"github.com/flanksource/commons/logger"
)

// MemoryTimer measures elapsed time and, with trace logging enabled, the
// allocations made in between.
type MemoryTimer struct {
	startTime time.Time
	start     *runtime.MemStats
}

func elapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func NewMemoryTimer() MemoryTimer {
	m := MemoryTimer{startTime: time.Now()}
	if logger.IsTraceEnabled() {
		s := runtime.MemStats{}
		runtime.ReadMemStats(&s)
		m.start = &s
	}
	return m
}

func (m *MemoryTimer) End() string {
	d := elapsed(time.Since(m.startTime))
	if m.start == nil {
		return d
	}
	end := runtime.MemStats{}
	runtime.ReadMemStats(&end)

	return fmt.Sprintf("%s (allocs=%dk, heap_allocs=%dmb, gc_count=%d)",
		d,
		(end.Mallocs-m.start.Mallocs)/1000,
		(end.TotalAlloc-m.start.TotalAlloc)/1024/1024,
		end.NumGC-m.start.NumGC,
	)
}
