// Package workload produces bounded synthetic CPU, memory and latency load. Every run is
// independent; limits come from configuration and are enforced before any work starts.
package workload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// Limits holds the default and maximum intensity per kind.
type Limits struct {
	CPUWorkers      int
	CPUDefaultMs    int
	CPUMaxMs        int
	MemoryDefaultMB int
	MemoryMaxMB     int
	MemoryHold      time.Duration
	MemoryBudgetMB  int
	AsyncDefaultMs  int
	AsyncMaxMs      int
}

// LimitsFromConfig converts the workload configuration.
func LimitsFromConfig(cfg config.WorkloadConfig) Limits {
	return Limits{
		CPUWorkers:      cfg.CPUWorkers,
		CPUDefaultMs:    cfg.CPUDefaultMillis,
		CPUMaxMs:        cfg.CPUMaxMillis,
		MemoryDefaultMB: cfg.MemoryDefaultMB,
		MemoryMaxMB:     cfg.MemoryMaxMB,
		MemoryHold:      time.Duration(cfg.MemoryHoldMillis) * time.Millisecond,
		MemoryBudgetMB:  cfg.MemoryBudgetMB,
		AsyncDefaultMs:  cfg.AsyncDefaultMillis,
		AsyncMaxMs:      cfg.AsyncMaxMillis,
	}
}

// Bounds returns the default and ceiling intensity for kind.
func (l Limits) Bounds(kind domain.WorkloadKind) (def, max int) {
	switch kind {
	case domain.WorkloadCPU:
		return l.CPUDefaultMs, l.CPUMaxMs
	case domain.WorkloadMemory:
		return l.MemoryDefaultMB, l.MemoryMaxMB
	case domain.WorkloadAsync:
		return l.AsyncDefaultMs, l.AsyncMaxMs
	}
	return 0, 0
}

// Generator runs synthetic workloads.
type Generator struct {
	limits   Limits
	pool     *Pool
	stats    *Stats
	metrics  *observability.Registry
	logger   *zap.Logger
	inFlight atomic.Int64
}

// NewGenerator starts the CPU worker pool.
func NewGenerator(limits Limits, metrics *observability.Registry, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		limits:  limits,
		stats:   newStats(),
		metrics: metrics,
		logger:  logger.Named("workload"),
	}
	g.pool = NewPool(limits.CPUWorkers, func(busy int64) {
		_ = metrics.Set(observability.MetricWorkerPoolBusy, nil, float64(busy))
	})
	return g
}

// Run validates the request and executes it. Intensity beyond the configured ceiling is
// rejected without running anything.
func (g *Generator) Run(ctx context.Context, req domain.WorkloadRequest) (domain.WorkloadResult, error) {
	intensity, err := g.resolveIntensity(req)
	if err != nil {
		g.record(req.Kind, "rejected", 0)
		return domain.WorkloadResult{}, err
	}

	start := time.Now()
	var res domain.WorkloadResult
	switch req.Kind {
	case domain.WorkloadCPU:
		res, err = g.runCPU(ctx, time.Duration(intensity)*time.Millisecond)
	case domain.WorkloadMemory:
		res, err = g.runMemory(ctx, intensity)
	case domain.WorkloadAsync:
		res, err = g.runAsync(ctx, time.Duration(intensity)*time.Millisecond)
	}
	res.Kind = req.Kind
	res.Intensity = intensity
	res.Duration = time.Since(start)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		g.logger.Warn("workload aborted", zap.String("kind", string(req.Kind)), zap.Int("intensity", intensity), zap.Error(err))
	case res.Truncated:
		outcome = "truncated"
	}
	g.record(req.Kind, outcome, res.Duration)
	return res, err
}

func (g *Generator) resolveIntensity(req domain.WorkloadRequest) (int, error) {
	def, max := g.limits.Bounds(req.Kind)
	if max == 0 {
		return 0, apperrors.NewValidationError(apperrors.KindUnprocessableRequest,
			fmt.Sprintf("unknown workload kind %q", req.Kind), nil)
	}
	switch {
	case req.Intensity == 0:
		return def, nil
	case req.Intensity < 0 || req.Intensity > max:
		return 0, apperrors.NewValidationError(apperrors.KindIntensityOutOfRange,
			fmt.Sprintf("intensity must be between 1 and %d", max),
			map[string]any{"kind": req.Kind, "intensity": req.Intensity, "min": 1, "max": max})
	default:
		return req.Intensity, nil
	}
}

func (g *Generator) record(kind domain.WorkloadKind, outcome string, d time.Duration) {
	_ = g.metrics.Increment(observability.MetricWorkloadRuns, observability.Labels{"kind": string(kind), "outcome": outcome})
	if outcome == "rejected" {
		return
	}
	_ = g.metrics.Observe(observability.MetricWorkloadDuration, observability.Labels{"kind": string(kind)}, d.Seconds())
	g.stats.Record(kind, d)
}

// Limits returns the configured bounds.
func (g *Generator) Limits() Limits {
	return g.limits
}

// PoolStats returns the CPU worker pool counters.
func (g *Generator) PoolStats() PoolStats {
	return g.pool.Stats()
}

// Running reports whether CPU work can still be scheduled.
func (g *Generator) Running() bool {
	return g.pool.Running()
}

// InFlightBytes is the memory currently held by memory workloads.
func (g *Generator) InFlightBytes() int64 {
	return g.inFlight.Load()
}

// Stats returns latency percentiles per kind.
func (g *Generator) Stats() map[domain.WorkloadKind]LatencySummary {
	return g.stats.Summary()
}

// Close stops the worker pool.
func (g *Generator) Close() {
	g.pool.Close()
}
