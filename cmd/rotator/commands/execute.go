package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/contracts"
)

var (
	executeLive    bool
	executeConfirm string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Run the rebalance pipeline once",
	Long: `Run one rebalance outside the timetable.

Without flags the run is a dry run: trades are sized, risk-checked and
audited but never submitted. Live submission requires both --live and
the confirmation token.

Example:
  rotator execute
  rotator execute --live --confirm CONFIRM-LIVE`,
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().BoolVar(&executeLive, "live", false, "submit real orders")
	executeCmd.Flags().StringVar(&executeConfirm, "confirm", "", "live confirmation token")
}

func runExecute(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}

	mode := contracts.ModeDryRun
	if executeLive {
		mode = contracts.ModeLive
		if executeConfirm != contracts.LiveConfirmToken {
			// The engine would degrade this anyway; refuse up front so
			// the operator is not surprised by a silent dry run.
			return fmt.Errorf("live mode requires --confirm %s", contracts.LiveConfirmToken)
		}
	}

	entry, err := a.engine.Run(cmd.Context(), mode, executeConfirm)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %s (mode %s)\n", entry.RunID, entry.Outcome, entry.Mode)
	if entry.Error != "" {
		fmt.Printf("Error: %s\n", entry.Error)
	}

	if len(entry.Verdicts) > 0 {
		fmt.Println("\nTrades:")
		for _, v := range entry.Verdicts {
			mark := "allowed"
			if !v.Allowed {
				mark = "BLOCKED"
			}
			fmt.Printf("  %-4s %-6s %5d @ %.2f  %s (%s)\n",
				v.Trade.Side, v.Trade.Symbol, v.Trade.Quantity, v.Trade.ReferencePrice, mark, v.Reason)
		}
	}

	if len(entry.Orders) > 0 {
		fmt.Println("\nOrders:")
		for _, o := range entry.Orders {
			fmt.Printf("  %-4s %-6s %5d  %s", o.Side, o.Symbol, o.Quantity, o.Status)
			if o.Message != "" {
				fmt.Printf("  (%s)", o.Message)
			}
			fmt.Println()
		}
	}
	return nil
}
