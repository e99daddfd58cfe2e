package workload

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

var pageSize = os.Getpagesize()

// runMemory allocates mb MiB, touches every page so it is resident, holds it, then lets it
// go. The in-flight accounting is undone on every return path.
func (g *Generator) runMemory(ctx context.Context, mb int) (domain.WorkloadResult, error) {
	size := int64(mb) << 20
	if !g.reserveBytes(size) {
		return domain.WorkloadResult{}, apperrors.NewDomainError(apperrors.KindServiceUnavailable,
			"memory workload budget exhausted", http.StatusServiceUnavailable,
			map[string]any{"requested_mb": mb, "budget_mb": g.limits.MemoryBudgetMB, "in_flight_bytes": g.inFlight.Load()})
	}
	block := make([]byte, size)
	defer func() {
		runtime.KeepAlive(block)
		g.trackBytes(-size)
	}()

	var sum uint64
	for i := 0; i < len(block); i += pageSize {
		block[i] = byte(i / pageSize)
		sum += uint64(block[i])
	}

	res := domain.WorkloadResult{Bytes: size, Checksum: sum}

	timer := time.NewTimer(g.limits.MemoryHold)
	defer timer.Stop()
	select {
	case <-timer.C:
		return res, nil
	case <-ctx.Done():
		res.Truncated = true
		return res, ctx.Err()
	}
}

// reserveBytes claims size against the process-wide budget before anything is allocated.
// A zero budget means unlimited.
func (g *Generator) reserveBytes(size int64) bool {
	budget := int64(g.limits.MemoryBudgetMB) << 20
	for {
		cur := g.inFlight.Load()
		if budget > 0 && cur+size > budget {
			return false
		}
		if g.inFlight.CompareAndSwap(cur, cur+size) {
			_ = g.metrics.Set(observability.MetricWorkloadMemoryInFlight, nil, float64(cur+size))
			return true
		}
	}
}

func (g *Generator) trackBytes(delta int64) {
	n := g.inFlight.Add(delta)
	_ = g.metrics.Set(observability.MetricWorkloadMemoryInFlight, nil, float64(n))
}
