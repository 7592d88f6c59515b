package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type options struct {
	server  string
	timeout time.Duration
	noColor bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "trend-cli",
		Short: "A CLI client to query the TrendWatch API",
		Long:  `A command-line interface for reading trending-term rankings, the live board and per-term history from the TrendWatch API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		SilenceUsage: true,
	}

	defaultServer := os.Getenv("TRENDWATCH_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "TrendWatch API base URL (env TRENDWATCH_SERVER)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newRankCmd(opts), newCurrentCmd(opts), newTermCmd(opts))
	return root
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err))
		os.Exit(1)
	}
}
