package workload

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/k8s-test-service/internal/domain"
)

// checkEvery is how many iterations run between deadline checks.
const checkEvery = 1024

// runCPU spins on a pool worker until budget has elapsed since arrival. Time spent queued
// counts against the budget, so the call never outlives it by more than one check interval.
func (g *Generator) runCPU(ctx context.Context, budget time.Duration) (domain.WorkloadResult, error) {
	arrived := time.Now()
	deadline := arrived.Add(budget)
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var res domain.WorkloadResult
	err := g.pool.Do(runCtx, func(ctx context.Context) {
		res.QueueWait = time.Since(arrived)
		res.Iterations, res.Checksum = spin(ctx, deadline)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			// budget used up waiting for a worker
			res.QueueWait = time.Since(arrived)
			res.Truncated = true
			return res, nil
		}
		return res, err
	}
	return res, ctx.Err()
}

func spin(ctx context.Context, deadline time.Time) (int64, uint64) {
	var sum uint64
	for i := uint64(0); ; i++ {
		sum += i * i
		if i%checkEvery == checkEvery-1 {
			if !time.Now().Before(deadline) || ctx.Err() != nil {
				return int64(i + 1), sum
			}
		}
	}
}
