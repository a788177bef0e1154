package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quarrylabs/regimeguard/internal/audit"
	"github.com/quarrylabs/regimeguard/internal/backtest"
	"github.com/quarrylabs/regimeguard/internal/config"
	"github.com/quarrylabs/regimeguard/internal/monitor"
)

type backtestFlags struct {
	configPath   string
	universePath string
	start        string
	end          string
	stepDays     int
	assets       []string
	redisAddr    string
	postgresDSN  string
	monitorAddr  string
	outputPath   string
}

func newBacktestCmd() *cobra.Command {
	flags := &backtestFlags{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a protection engine backtest",
		Long: `Walk a simulated calendar, score the configured universe with the
synthetic research scorer, and route every proposed rebalance action
through the protection decision pipeline. Decisions are published to the
configured audit sinks and summarized at the end of the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(flags)
		},
	}

	registerBacktestFlags(cmd.Flags(), flags)
	return cmd
}

func registerBacktestFlags(fs *pflag.FlagSet, flags *backtestFlags) {
	fs.StringVar(&flags.configPath, "config", config.DefaultPath(), "Protection config YAML path")
	fs.StringVar(&flags.universePath, "universe", "", "Universe fixture YAML (overrides --assets)")
	fs.StringVar(&flags.start, "start", "", "Run start date (YYYY-MM-DD)")
	fs.StringVar(&flags.end, "end", "", "Run end date (YYYY-MM-DD)")
	fs.IntVar(&flags.stepDays, "step", 1, "Rebalance step in days")
	fs.StringSliceVar(&flags.assets, "assets", []string{"AAPL", "MSFT", "GLD", "TLT", "BTC-USD"}, "Comma-separated asset list")
	fs.StringVar(&flags.redisAddr, "redis", "", "Redis address for the decision stream sink (optional)")
	fs.StringVar(&flags.postgresDSN, "postgres", "", "Postgres DSN for the decision store sink (optional)")
	fs.StringVar(&flags.monitorAddr, "monitor", "", "Monitor HTTP listen address, e.g. :8086 (optional)")
	fs.StringVar(&flags.outputPath, "out", "", "Write the run result JSON to this path")
}

func runBacktest(flags *backtestFlags) error {
	pcfg, err := loadProtectionConfig(flags.configPath)
	if err != nil {
		return err
	}

	runCfg := backtest.DefaultConfig()
	runCfg.StepDays = flags.stepDays
	runCfg.Assets = flags.assets

	if flags.universePath != "" {
		universe, err := backtest.LoadUniverse(flags.universePath)
		if err != nil {
			return err
		}
		runCfg.Assets = universe.Symbols()
	}

	if runCfg.Start, err = parseDate(flags.start, "--start"); err != nil {
		return err
	}
	if runCfg.End, err = parseDate(flags.end, "--end"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One run id shared by the result and every sink row
	runCfg.RunID = uuid.NewString()
	sink, err := buildSinks(flags, runCfg.RunID)
	if err != nil {
		return err
	}
	defer sink.Close()

	var observer backtest.Observer
	if flags.monitorAddr != "" {
		server := monitor.NewServer()
		observer = server
		go func() {
			if err := server.Start(ctx, flags.monitorAddr); err != nil {
				log.Error().Err(err).Msg("Monitor server stopped")
			}
		}()
	}

	managers, err := backtest.NewManagers(pcfg, backtest.SyntheticReturns{})
	if err != nil {
		return err
	}

	runner, err := backtest.NewRunner(runCfg, pcfg, managers,
		backtest.NewSyntheticScorer(), backtest.NewSyntheticRegimes(), sink, observer)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	return writeResult(result, flags.outputPath)
}

func loadProtectionConfig(path string) (*config.Protection, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildSinks(flags *backtestFlags, runID string) (audit.Sink, error) {
	sinks := []audit.Sink{audit.LogSink{}}

	if flags.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
		sinks = append(sinks, audit.NewRedisSink(client, audit.DefaultRedisSinkConfig(), client.Close))
		log.Info().Str("addr", flags.redisAddr).Msg("Redis decision stream sink enabled")
	}
	if flags.postgresDSN != "" {
		store, err := audit.NewStoreSink(flags.postgresDSN, runID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
		log.Info().Msg("Postgres decision store sink enabled")
	}

	return audit.NewMultiSink(sinks...), nil
}

func parseDate(value, flag string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required (YYYY-MM-DD)", flag)
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q: %w", flag, value, err)
	}
	return t.UTC(), nil
}

func writeResult(result *backtest.RunResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write run result: %w", err)
	}
	log.Info().Str("path", path).Msg("Run result written")
	return nil
}
