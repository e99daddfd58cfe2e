package workload

import (
	"context"
	"time"

	"github.com/spec-kit/k8s-test-service/internal/domain"
)

// runAsync simulates a downstream call of fixed latency without holding a worker.
func (g *Generator) runAsync(ctx context.Context, latency time.Duration) (domain.WorkloadResult, error) {
	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return domain.WorkloadResult{}, nil
	case <-ctx.Done():
		return domain.WorkloadResult{Truncated: true}, ctx.Err()
	}
}
