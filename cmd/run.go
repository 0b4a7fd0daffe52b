package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quantshift/btc-perp-engine/internal/config"
	"github.com/quantshift/btc-perp-engine/internal/engine"
	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
	"github.com/quantshift/btc-perp-engine/internal/metrics"
	"github.com/quantshift/btc-perp-engine/internal/notify"
)

const (
	defaultDurationHours  = 8.0
	defaultInitialCapital = 100.0
)

// runCmd runs the engine for `run [duration_hours] [initial_capital_usdt]`.
var runCmd = &cobra.Command{
	Use:   "run [duration_hours] [initial_capital_usdt]",
	Short: "Run the decision engine",
	Long:  "Run the decision engine against live market data in paper-trading mode for the given duration and starting capital",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runEngine,
}

func init() {
	RootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	durationHours := defaultDurationHours
	initialCapital := defaultInitialCapital

	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid duration_hours %q: %w", args[0], err)
		}
		durationHours = v
	}
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid initial_capital_usdt %q: %w", args[1], err)
		}
		initialCapital = v
	}

	log, err := logger.New(viper.GetString("log_path"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	loader, err := config.NewLoader(viper.ConfigFileUsed())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, _ := loader.Current()

	var notifier notify.Notify
	if cfg.Telegram.Token != "" {
		bot, err := notify.NewTelegramBot(log, cfg.Telegram.Token)
		if err != nil {
			log.Warn("telegram bot disabled", zap.Error(err))
		} else {
			notifier = bot
		}
	}

	eng, err := engine.New(log, loader, notifier)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("engine starting", zap.Float64("duration_hours", durationHours), zap.Float64("initial_capital_usdt", initialCapital))

	if err := eng.Run(ctx, cfg.Symbol, initialCapital, durationHours); err != nil {
		return fmt.Errorf("engine run: %w", err)
	}

	log.Info("engine shut down cleanly")
	return nil
}
