package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iller75/BybitMover/internal/infrastructure/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bybitmover [config]",
		Short: "Sweep sub-account profits into the main Bybit account",
		Long: `BybitMover periodically checks the balance of each configured sub-account,
moves a share of the profit made since the last sweep into the main account
and records every transfer in a JSON ledger.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweeper(cmd.Context(), configPath(args))
		},
	}

	rootCmd.AddCommand(runCmd(), historyCmd(), serveCmd())

	return rootCmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [config]",
		Short: "Run the sweep loop until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweeper(cmd.Context(), configPath(args))
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config]",
		Short: "Serve the read-only report API over the ledger file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveReports(cmd.Context(), configPath(args))
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		ledgerPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print transfer totals and a growth prediction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ledgerPath == "" {
				rt, err := config.LoadRuntime()
				if err != nil {
					return fmt.Errorf("load environment: %w", err)
				}
				ledgerPath = rt.LedgerPath
			}
			return printHistory(cmd.Context(), cmd.OutOrStdout(), ledgerPath, days)
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Path to the transfer ledger (default $LEDGER_PATH)")
	cmd.Flags().IntVar(&days, "days", 30, "Prediction horizon in days")

	return cmd
}

func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.DefaultSettingsPath
}
