package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	namespace = "CRUD"
	appName   = "cruddemo"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s (%s) stopped with error: %v\n", appName, version, err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Flag parsing is left to the config loader so
// any --key=value pair overrides the matching config property.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:                appName,
		Short:              "Item catalogue CRUD service",
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), args)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:                "serve",
			Short:              "Run the HTTP (and optional gRPC) server",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:                "migrate",
			Short:              "Apply the SQL schema",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:                "seed",
			Short:              "Apply pending seeds",
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSeeds(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
			},
		},
	)
	return root
}
