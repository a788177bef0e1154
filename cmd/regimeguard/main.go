package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "regimeguard"
	version = "v0.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Regime-aware protection decision engine for backtesting research",
		Version: version,
		Long: `regimeguard evaluates proposed portfolio actions through a layered
protection pipeline: whipsaw cycling limits, grace period decay, minimum
holding periods, and core asset closure immunity, with severity-gated
regime transition overrides. Every decision carries a full audit trail.`,
	}

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newMonitorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
