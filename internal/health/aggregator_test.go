package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/deployment"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

type fakeRunner bool

func (f fakeRunner) Running() bool { return bool(f) }

func newRegistry(t *testing.T) *observability.Registry {
	t.Helper()
	metrics, err := observability.NewRegistry(zaptest.NewLogger(t), observability.DefaultDefinitions())
	require.NoError(t, err)
	return metrics
}

func resolvedIdentity(t *testing.T) deployment.Identity {
	t.Helper()
	id, err := deployment.Resolve(config.AppConfig{Version: "1.0.0", Env: "test"}, config.DeploymentConfig{Color: "blue", InstanceID: "pod-1"})
	require.NoError(t, err)
	return id
}

func TestLiveness(t *testing.T) {
	agg := NewAggregator(nil, nil, nil)
	assert.Equal(t, StatusAlive, agg.Liveness().Status)
}

func TestReadiness_AllChecksPass(t *testing.T) {
	metrics := newRegistry(t)
	checkedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(metrics, zaptest.NewLogger(t),
		[]Checker{IdentityCheck(resolvedIdentity(t)), WorkerPoolCheck(fakeRunner(true)), nil},
		WithClock(func() time.Time { return checkedAt }))

	report, err := agg.Readiness(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Ready())
	assert.Equal(t, checkedAt, report.CheckedAt)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, StatusOK, report.Checks["deployment_identity"].Status)
	assert.Empty(t, report.Failed())
	assert.Equal(t, float64(1), metrics.Value(observability.MetricReadinessChecks,
		observability.Labels{"check": "workload_pool", "outcome": StatusOK}))
}

func TestReadiness_FailureIsNotReady(t *testing.T) {
	metrics := newRegistry(t)
	agg := NewAggregator(metrics, zaptest.NewLogger(t), []Checker{
		IdentityCheck(deployment.Identity{}),
		WorkerPoolCheck(fakeRunner(false)),
		NewCheck("postgres", func(context.Context) error { return errors.New("connection refused") }),
		NewCheck("redis", func(context.Context) error { return nil }),
	})

	report, err := agg.Readiness(context.Background())
	require.Error(t, err)

	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.KindNotReady, de.Kind)
	assert.Equal(t, 503, de.HTTPStatus)
	assert.Equal(t, "connection refused", de.Details["postgres"])
	assert.NotContains(t, de.Details, "redis")

	assert.False(t, report.Ready())
	assert.Equal(t, []string{"deployment_identity", "postgres", "workload_pool"}, report.Failed())
	assert.Equal(t, StatusOK, report.Checks["redis"].Status)
	assert.Equal(t, float64(1), metrics.Value(observability.MetricReadinessChecks,
		observability.Labels{"check": "postgres", "outcome": StatusFailed}))
}

func TestReadiness_RecoversPanics(t *testing.T) {
	agg := NewAggregator(nil, nil, []Checker{
		NewCheck("broken", func(context.Context) error { panic("nil map") }),
	})

	report, err := agg.Readiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, report.Checks["broken"].Error, "nil map")
}

func TestReadiness_SlowCheckTimesOut(t *testing.T) {
	agg := NewAggregator(nil, nil, []Checker{
		NewCheck("slow", func(ctx context.Context) error {
			select {
			case <-time.After(5 * time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		NewCheck("stuck", func(context.Context) error {
			time.Sleep(time.Second)
			return nil
		}),
	}, WithTimeout(30*time.Millisecond))

	start := time.Now()
	report, err := agg.Readiness(context.Background())
	require.Error(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Contains(t, report.Checks["slow"].Error, "timed out")
	assert.Contains(t, report.Checks["stuck"].Error, "timed out")
}

func TestReadiness_NoChecksIsReady(t *testing.T) {
	report, err := NewAggregator(nil, nil, nil).Readiness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, report.Status)
}
