package workload

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// jitter is the scheduling slack allowed on top of a budget.
const jitter = 150 * time.Millisecond

func testLimits() Limits {
	return Limits{
		CPUWorkers:      2,
		CPUDefaultMs:    50,
		CPUMaxMs:        300,
		MemoryDefaultMB: 2,
		MemoryMaxMB:     8,
		MemoryHold:      20 * time.Millisecond,
		AsyncDefaultMs:  30,
		AsyncMaxMs:      1000,
	}
}

func newTestGenerator(t *testing.T, limits Limits) (*Generator, *observability.Registry) {
	t.Helper()
	metrics, err := observability.NewRegistry(zap.NewNop(), observability.DefaultDefinitions())
	require.NoError(t, err)
	g := NewGenerator(limits, metrics, zap.NewNop())
	t.Cleanup(g.Close)
	return g, metrics
}

func runs(metrics *observability.Registry, kind domain.WorkloadKind, outcome string) float64 {
	return metrics.Value(observability.MetricWorkloadRuns, observability.Labels{"kind": string(kind), "outcome": outcome})
}

func TestRun_CPUUsesDefaultBudget(t *testing.T) {
	g, metrics := newTestGenerator(t, testLimits())

	res, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadCPU})
	require.NoError(t, err)

	assert.Equal(t, 50, res.Intensity)
	assert.Positive(t, res.Iterations)
	assert.False(t, res.Truncated)
	assert.GreaterOrEqual(t, res.Duration, 50*time.Millisecond)
	assert.Less(t, res.Duration, 50*time.Millisecond+jitter)
	assert.Equal(t, float64(1), runs(metrics, domain.WorkloadCPU, "success"))
}

func TestRun_CPUConcurrentCallsStayWithinCeiling(t *testing.T) {
	for _, n := range []int{1, 10, 50} {
		n := n
		t.Run("n="+strconv.Itoa(n), func(t *testing.T) {
			g, _ := newTestGenerator(t, testLimits())
			budget := 100

			start := time.Now()
			results := make([]domain.WorkloadResult, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadCPU, Intensity: budget})
					assert.NoError(t, err)
					results[i] = res
				}(i)
			}
			wg.Wait()
			wall := time.Since(start)

			for _, res := range results {
				assert.Less(t, res.Duration, time.Duration(budget)*time.Millisecond+jitter)
			}
			// bounded by the ceiling, not ceiling × n
			assert.Less(t, wall, 3*time.Duration(budget)*time.Millisecond)
			assert.Zero(t, g.PoolStats().Queued)
		})
	}
}

func TestRun_RejectsOutOfRangeIntensity(t *testing.T) {
	g, metrics := newTestGenerator(t, testLimits())

	for _, intensity := range []int{-1, 301} {
		_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadCPU, Intensity: intensity})
		require.Error(t, err)
		de := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.KindIntensityOutOfRange, de.Kind)
		assert.Equal(t, 422, de.HTTPStatus)
		assert.Equal(t, 300, de.Details["max"])
	}

	_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 9})
	assert.Error(t, err)
	_, err = g.Run(context.Background(), domain.WorkloadRequest{Kind: "disk"})
	assert.Error(t, err)

	assert.Equal(t, float64(2), runs(metrics, domain.WorkloadCPU, "rejected"))
	assert.Zero(t, runs(metrics, domain.WorkloadCPU, "success"))
	assert.Zero(t, g.PoolStats().Completed)
}

func TestRun_CPUHonoursCancellation(t *testing.T) {
	g, _ := newTestGenerator(t, testLimits())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Run(ctx, domain.WorkloadRequest{Kind: domain.WorkloadCPU, Intensity: 300})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 20*time.Millisecond+jitter)
}

func TestRun_MemoryReleasesOnEveryPath(t *testing.T) {
	g, metrics := newTestGenerator(t, testLimits())

	res, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4<<20), res.Bytes)
	assert.GreaterOrEqual(t, res.Duration, 20*time.Millisecond)
	assert.Zero(t, g.InFlightBytes())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, g.InFlightBytes())
	assert.Zero(t, metrics.Value(observability.MetricWorkloadMemoryInFlight, nil))
}

func TestRun_MemoryCancelledEarly(t *testing.T) {
	limits := testLimits()
	limits.MemoryHold = 5 * time.Second
	g, _ := newTestGenerator(t, limits)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	res, err := g.Run(ctx, domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Truncated)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, g.InFlightBytes())
}

func TestRun_MemoryBudgetSharedAcrossCallers(t *testing.T) {
	limits := testLimits()
	limits.MemoryBudgetMB = 4
	limits.MemoryHold = 300 * time.Millisecond
	g, metrics := newTestGenerator(t, limits)

	done := make(chan error, 1)
	go func() {
		_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 4})
		done <- err
	}()
	require.Eventually(t, func() bool { return g.InFlightBytes() == 4<<20 }, time.Second, 5*time.Millisecond)

	_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 1})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.KindServiceUnavailable, de.Kind)
	assert.Equal(t, 503, de.HTTPStatus)
	assert.Equal(t, 4, de.Details["budget_mb"])
	assert.Equal(t, int64(4<<20), g.InFlightBytes())

	require.NoError(t, <-done)
	assert.Zero(t, g.InFlightBytes())

	_, err = g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadMemory, Intensity: 1})
	require.NoError(t, err)
	assert.Zero(t, g.InFlightBytes())
	assert.Equal(t, float64(1), runs(metrics, domain.WorkloadMemory, "error"))
	assert.Equal(t, float64(2), runs(metrics, domain.WorkloadMemory, "success"))
}

func TestRun_AsyncOverlaps(t *testing.T) {
	g, metrics := newTestGenerator(t, testLimits())
	const n = 50

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadAsync, Intensity: 100})
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, res.Duration, 100*time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Less(t, time.Since(start), 100*time.Millisecond+jitter*2)
	assert.Equal(t, float64(n), runs(metrics, domain.WorkloadAsync, "success"))

	stats := g.Stats()[domain.WorkloadAsync]
	assert.Equal(t, int64(n), stats.Count)
	assert.GreaterOrEqual(t, stats.P50Ms, 99.0)
	assert.GreaterOrEqual(t, stats.MaxMs, stats.P99Ms)
}

func TestRun_AsyncCancelled(t *testing.T) {
	g, _ := newTestGenerator(t, testLimits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Run(ctx, domain.WorkloadRequest{Kind: domain.WorkloadAsync, Intensity: 1000})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerator_Close(t *testing.T) {
	g, _ := newTestGenerator(t, testLimits())
	g.Close()

	assert.False(t, g.Running())
	_, err := g.Run(context.Background(), domain.WorkloadRequest{Kind: domain.WorkloadCPU})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
