package workload

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/spec-kit/k8s-test-service/internal/domain"
)

const (
	histMinMicros = 1
	histMaxMicros = 60 * 1000 * 1000 // one minute
	histSigFigs   = 3
)

// LatencySummary reports percentiles of completed runs, in milliseconds.
type LatencySummary struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"min_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Stats keeps one HDR histogram per workload kind.
type Stats struct {
	mu    sync.Mutex
	hists map[domain.WorkloadKind]*hdrhistogram.Histogram
}

func newStats() *Stats {
	s := &Stats{hists: make(map[domain.WorkloadKind]*hdrhistogram.Histogram, len(domain.WorkloadKinds))}
	for _, kind := range domain.WorkloadKinds {
		s.hists[kind] = hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigs)
	}
	return s
}

// Record adds a run duration, clamped into the histogram's range.
func (s *Stats) Record(kind domain.WorkloadKind, d time.Duration) {
	v := d.Microseconds()
	if v < histMinMicros {
		v = histMinMicros
	}
	if v > histMaxMicros {
		v = histMaxMicros
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hists[kind]; ok {
		_ = h.RecordValue(v)
	}
}

// Summary returns percentiles for every kind.
func (s *Stats) Summary() map[domain.WorkloadKind]LatencySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.WorkloadKind]LatencySummary, len(s.hists))
	for kind, h := range s.hists {
		if h.TotalCount() == 0 {
			out[kind] = LatencySummary{}
			continue
		}
		out[kind] = LatencySummary{
			Count:  h.TotalCount(),
			MinMs:  micros(h.Min()),
			MeanMs: h.Mean() / 1000,
			P50Ms:  micros(h.ValueAtQuantile(50)),
			P95Ms:  micros(h.ValueAtQuantile(95)),
			P99Ms:  micros(h.ValueAtQuantile(99)),
			MaxMs:  micros(h.Max()),
		}
	}
	return out
}

func micros(v int64) float64 {
	return float64(v) / 1000
}
