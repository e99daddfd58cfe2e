package health

import (
	"context"
	"errors"

	"github.com/spec-kit/k8s-test-service/internal/deployment"
)

// IdentityCheck fails when the deployment identity was never resolved.
func IdentityCheck(id deployment.Identity) Checker {
	return NewCheck("deployment_identity", func(context.Context) error {
		if !id.Valid() {
			return errors.New("deployment identity not resolved")
		}
		return nil
	})
}

// Runner is anything that can report whether it still accepts work.
type Runner interface {
	Running() bool
}

// WorkerPoolCheck fails once the workload pool has been shut down.
func WorkerPoolCheck(r Runner) Checker {
	return NewCheck("workload_pool", func(context.Context) error {
		if r == nil || !r.Running() {
			return errors.New("workload pool is not accepting work")
		}
		return nil
	})
}
