// Package health answers liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// DefaultTimeout bounds a full readiness evaluation.
const DefaultTimeout = 2 * time.Second

// Probe states.
const (
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusOK       = "ok"
	StatusFailed   = "failed"
)

// Checker is a single readiness condition.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c checkFunc) Name() string                    { return c.name }
func (c checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// NewCheck adapts fn into a Checker.
func NewCheck(name string, fn func(ctx context.Context) error) Checker {
	return checkFunc{name: name, fn: fn}
}

// Liveness is the liveness probe body.
type Liveness struct {
	Status string `json:"status"`
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// Report is the readiness probe body.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Ready reports whether every check passed.
func (r Report) Ready() bool {
	return r.Status == StatusReady
}

// Failed returns the names of failing checks in order.
func (r Report) Failed() []string {
	var names []string
	for name, res := range r.Checks {
		if res.Status != StatusOK {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock overrides time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Aggregator evaluates a fixed set of checks.
type Aggregator struct {
	checks  []Checker
	timeout time.Duration
	now     func() time.Time
	metrics *observability.Registry
	logger  *zap.Logger
}

// NewAggregator builds an aggregator over checks. Nil checks are ignored.
func NewAggregator(metrics *observability.Registry, logger *zap.Logger, checks []Checker, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		timeout: DefaultTimeout,
		now:     time.Now,
		metrics: metrics,
		logger:  logger.Named("health"),
	}
	for _, c := range checks {
		if c != nil {
			a.checks = append(a.checks, c)
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Liveness succeeds whenever the process can answer.
func (a *Aggregator) Liveness() Liveness {
	return Liveness{Status: StatusAlive}
}

// Readiness runs all checks concurrently. A non-nil error is a not_ready DomainError whose
// details name each failing check; the report is complete either way.
func (a *Aggregator) Readiness(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]CheckResult, len(a.checks))
	var wg sync.WaitGroup
	for i, c := range a.checks {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = a.run(ctx, c)
		}(i, c)
	}
	wg.Wait()

	report := Report{Status: StatusReady, Checks: make(map[string]CheckResult, len(a.checks)), CheckedAt: a.now().UTC()}
	failures := map[string]any{}
	for i, c := range a.checks {
		res := results[i]
		report.Checks[c.Name()] = res
		outcome := StatusOK
		if res.Status != StatusOK {
			outcome = StatusFailed
			failures[c.Name()] = res.Error
			report.Status = StatusNotReady
		}
		_ = a.metrics.Increment(observability.MetricReadinessChecks, observability.Labels{"check": c.Name(), "outcome": outcome})
	}

	if len(failures) > 0 {
		a.logger.Warn("readiness failed", zap.Strings("checks", report.Failed()))
		return report, apperrors.NewNotReady(failures)
	}
	return report, nil
}

func (a *Aggregator) run(ctx context.Context, c Checker) (res CheckResult) {
	start := time.Now()
	defer func() {
		res.DurationMs = float64(time.Since(start).Microseconds()) / 1000
	}()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("check panicked: %v", r)
			}
		}()
		errCh <- c.Check(ctx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", a.timeout)
		}
		return CheckResult{Status: StatusFailed, Error: err.Error()}
	}
	return CheckResult{Status: StatusOK}
}
