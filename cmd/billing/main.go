package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "billing",
		Short:         "Run gym billing batches and audit maintenance outside the API server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	bootstrap := func() (*app, error) {
		return newApp(logLevel)
	}
	root.AddCommand(runCmd(bootstrap))
	root.AddCommand(auditCmd(bootstrap))
	return root
}
