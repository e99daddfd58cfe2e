package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "api",
		Short:   "Synthetic HTTP service for exercising orchestration platforms",
		Version: version,
		Long: `api serves token authentication, bounded synthetic load, blue/green identity,
health probes and Prometheus metrics so probes, autoscalers and routers can be tested
against a predictable workload. Configuration is read from the environment.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
