package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Pull and persist a portfolio snapshot now",
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := a.broker.Connect(ctx); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	defer a.broker.Disconnect()

	snap, err := a.broker.GetPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("portfolio snapshot: %w", err)
	}

	path, err := store.SaveSnapshot(a.cfg.Paths.SnapshotsDir, snap)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot saved to %s\n", path)
	fmt.Printf("  Equity: %.2f\n  Cash:   %.2f\n", snap.TotalEquity, snap.Cash)
	for _, pos := range snap.Positions {
		fmt.Printf("  %-6s %5d @ %.2f = %.2f (%.1f%%)\n",
			pos.Symbol, pos.Quantity, pos.MarketPrice, pos.MarketValue(),
			100*pos.MarketValue()/snap.TotalEquity)
	}
	return nil
}
