// Package faults produces deliberate, deterministic failures for negative-path testing.
package faults

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// Kinds accepted by Trigger.
const (
	KindInternal    = "500"
	KindNotFound    = "404"
	KindUnavailable = "503"
	KindTimeout     = "timeout"
)

// Error kinds carried by the returned DomainError.
const (
	ErrKindInternal    = "simulated_internal_error"
	ErrKindNotFound    = "simulated_not_found"
	ErrKindUnavailable = "simulated_unavailable"
	ErrKindTimeout     = "simulated_timeout"
	ErrKindUnknown     = "unknown_error_kind"
)

type outcome struct {
	kind    string
	status  int
	message string
}

var table = map[string]outcome{
	KindInternal:    {ErrKindInternal, http.StatusInternalServerError, "Internal Server Error - Test endpoint"},
	KindNotFound:    {ErrKindNotFound, http.StatusNotFound, "Not Found - Test endpoint"},
	KindUnavailable: {ErrKindUnavailable, http.StatusServiceUnavailable, "Service Unavailable - Test endpoint"},
	KindTimeout:     {ErrKindTimeout, http.StatusGatewayTimeout, "Gateway Timeout - Test endpoint"},
}

// Kinds lists every kind Trigger knows.
func Kinds() []string {
	kinds := make([]string, 0, len(table))
	for k := range table {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Simulator maps a kind to a fixed failure.
type Simulator struct {
	delay   time.Duration
	metrics *observability.Registry
	logger  *zap.Logger
}

// NewSimulator returns a simulator whose timeout kind holds callers for delay.
func NewSimulator(delay time.Duration, metrics *observability.Registry, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{delay: delay, metrics: metrics, logger: logger.Named("faults")}
}

// Trigger always returns an error. The timeout kind first waits for the configured delay;
// if ctx ends sooner the wait is abandoned and ctx's error is returned.
func (s *Simulator) Trigger(ctx context.Context, kind string) error {
	out, ok := table[kind]
	if !ok {
		return apperrors.NewDomainError(ErrKindUnknown, fmt.Sprintf("unknown error kind %q", kind),
			http.StatusNotFound, map[string]any{"known": Kinds()})
	}
	_ = s.metrics.Increment(observability.MetricSimulatedErrors, observability.Labels{"kind": kind})

	if kind == KindTimeout {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			s.logger.Info("timeout simulation abandoned", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return apperrors.NewSimulatedError(out.kind, out.message, out.status)
}
