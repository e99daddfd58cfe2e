package dto

import (
	"time"

	"github.com/spec-kit/k8s-test-service/internal/health"
)

// ServiceInfo is the root endpoint body.
type ServiceInfo struct {
	Message           string `json:"message"`
	Service           string `json:"service"`
	Version           string `json:"version"`
	Environment       string `json:"environment"`
	DeploymentVersion string `json:"deployment_version"`
	MetricsURL        string `json:"metrics_url"`
}

// VersionInfo is the /version body.
type VersionInfo struct {
	Version           string    `json:"version"`
	Environment       string    `json:"environment"`
	DeploymentVersion string    `json:"deployment_version"`
	GoVersion         string    `json:"go_version"`
	StartedAt         time.Time `json:"started_at"`
}

// HealthResponse is the full /health body.
type HealthResponse struct {
	health.Report
	Version           string     `json:"version"`
	Environment       string     `json:"environment"`
	DeploymentVersion string     `json:"deployment_version"`
	SystemInfo        SystemInfo `json:"system_info"`
}

// SystemInfo describes the host process.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"go_version"`
	CPUCount      int    `json:"cpu_count"`
	Goroutines    int    `json:"goroutines"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// DeploymentDescriptor is the static body of /deployment/blue and /deployment/green.
type DeploymentDescriptor struct {
	Deployment string `json:"deployment"`
	Message    string `json:"message"`
	Version    string `json:"version"`
	Color      string `json:"color"`
	Active     bool   `json:"active"`
}

// TraceResponse is the /observability/trace body.
type TraceResponse struct {
	Message   string      `json:"message"`
	TraceID   string      `json:"trace_id"`
	SpanCount int         `json:"span_count"`
	Spans     []TraceSpan `json:"spans"`
}

// TraceSpan is one simulated step.
type TraceSpan struct {
	Name       string  `json:"name"`
	SpanID     string  `json:"span_id"`
	DurationMs float64 `json:"duration_ms"`
}
