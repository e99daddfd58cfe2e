package domain

import "time"

// WorkloadKind selects a synthetic load generator.
type WorkloadKind string

const (
	WorkloadCPU    WorkloadKind = "cpu"
	WorkloadMemory WorkloadKind = "memory"
	WorkloadAsync  WorkloadKind = "async"
)

// WorkloadKinds lists every supported kind.
var WorkloadKinds = []WorkloadKind{WorkloadCPU, WorkloadMemory, WorkloadAsync}

// WorkloadRequest is a single load generation request. Intensity is milliseconds for cpu
// and async, MiB for memory; zero selects the kind's default.
type WorkloadRequest struct {
	Kind      WorkloadKind
	Intensity int
}

// WorkloadResult reports what a run actually did.
type WorkloadResult struct {
	Kind       WorkloadKind
	Intensity  int
	Duration   time.Duration
	QueueWait  time.Duration
	Iterations int64
	Checksum   uint64
	Bytes      int64
	Truncated  bool
}
