package dto

import (
	"time"

	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/workload"
)

// WorkloadResponse reports one finished workload run.
type WorkloadResponse struct {
	Kind        domain.WorkloadKind `json:"kind"`
	Intensity   int                 `json:"intensity"`
	DurationMs  float64             `json:"duration_ms"`
	QueueWaitMs float64             `json:"queue_wait_ms,omitempty"`
	Truncated   bool                `json:"truncated"`
	Detail      WorkloadDetail      `json:"detail"`
	InstanceID  string              `json:"instance_id"`
}

// WorkloadDetail holds the kind specific figures.
type WorkloadDetail struct {
	Iterations int64  `json:"iterations,omitempty"`
	Checksum   uint64 `json:"checksum,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
}

// NewWorkloadResponse converts a result.
func NewWorkloadResponse(res domain.WorkloadResult, instanceID string) WorkloadResponse {
	return WorkloadResponse{
		Kind:        res.Kind,
		Intensity:   res.Intensity,
		DurationMs:  millis(res.Duration),
		QueueWaitMs: millis(res.QueueWait),
		Truncated:   res.Truncated,
		Detail: WorkloadDetail{
			Iterations: res.Iterations,
			Checksum:   res.Checksum,
			Bytes:      res.Bytes,
		},
		InstanceID: instanceID,
	}
}

// LoadTestInfo describes the instance for load balancing checks.
type LoadTestInfo struct {
	InstanceID    string             `json:"instance_id"`
	Hostname      string             `json:"hostname"`
	Goroutines    int                `json:"goroutines"`
	HeapAlloc     uint64             `json:"heap_alloc_bytes"`
	HeapSys       uint64             `json:"heap_sys_bytes"`
	InFlightBytes int64              `json:"workload_memory_inflight_bytes"`
	Pool          workload.PoolStats `json:"pool"`
	Limits        WorkloadLimits     `json:"limits"`
	Timestamp     time.Time          `json:"timestamp"`
}

// WorkloadLimits exposes the configured intensity bounds.
type WorkloadLimits struct {
	CPUDefaultMs    int `json:"cpu_default_ms"`
	CPUMaxMs        int `json:"cpu_max_ms"`
	MemoryDefaultMB int `json:"memory_default_mb"`
	MemoryMaxMB     int `json:"memory_max_mb"`
	MemoryBudgetMB  int `json:"memory_budget_mb"`
	AsyncDefaultMs  int `json:"async_default_ms"`
	AsyncMaxMs      int `json:"async_max_ms"`
}

// NewWorkloadLimits converts generator limits.
func NewWorkloadLimits(l workload.Limits) WorkloadLimits {
	return WorkloadLimits{
		CPUDefaultMs:    l.CPUDefaultMs,
		CPUMaxMs:        l.CPUMaxMs,
		MemoryDefaultMB: l.MemoryDefaultMB,
		MemoryMaxMB:     l.MemoryMaxMB,
		MemoryBudgetMB:  l.MemoryBudgetMB,
		AsyncDefaultMs:  l.AsyncDefaultMs,
		AsyncMaxMs:      l.AsyncMaxMs,
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
