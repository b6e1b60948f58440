package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/signals"
	"github.com/quantfell/rotator/pkg/config"
	"github.com/quantfell/rotator/pkg/logger"
)

var signalAsOf string

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Compute and print the current momentum ranking",
	RunE:  runSignal,
}

func init() {
	rootCmd.AddCommand(signalCmd)
	signalCmd.Flags().StringVar(&signalAsOf, "as-of", "", "ranking date, YYYY-MM-DD (default today)")
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat)

	asOf := time.Now().UTC()
	if signalAsOf != "" {
		asOf, err = time.Parse("2006-01-02", signalAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
	}

	feed := signals.NewFileFeed(cfg.Paths.PricesDir)
	source := signals.NewMomentumSource(feed, signals.MomentumConfig{
		TopN:           cfg.Sizing.TopN,
		LookbackMonths: cfg.Signal.LookbackMonths,
		SkipMonths:     cfg.Signal.SkipMonths,
	}, log)

	signal, err := source.Rank(cmd.Context(), cfg.Signal.Universe, asOf)
	if err != nil {
		return err
	}

	fmt.Printf("Momentum ranking as of %s (top %d at %.1f%% each):\n\n",
		signal.AsOf.Format("2006-01-02"), len(signal.Selected), signal.TargetWeight*100)
	for _, r := range signal.Ranked {
		mark := " "
		if signal.IsSelected(r.Symbol) {
			mark = "*"
		}
		fmt.Printf("  %s %2d. %-6s %+.2f%%\n", mark, r.Rank, r.Symbol, r.Score*100)
	}
	return nil
}
