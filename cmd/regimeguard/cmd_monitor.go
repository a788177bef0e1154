package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/regimeguard/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the monitor server standalone",
		Long: `Serve the monitor endpoints (/health, /metrics, /decisions/recent,
/ws) without a backtest attached. Useful for wiring up dashboards before
pointing a run at the same address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return monitor.NewServer().Start(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8086", "Monitor HTTP listen address")
	return cmd
}
