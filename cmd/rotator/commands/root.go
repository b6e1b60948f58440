package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rotator",
	Short: "Scheduled sector rotation pipeline",
	Long: `Rotator runs a momentum-based sector rotation strategy on a fixed
timetable: snapshot the portfolio, rank the universe, size trades,
enforce risk limits and submit orders.

Examples:
  rotator scheduler start
  rotator scheduler run rebalance
  rotator execute --live --confirm CONFIRM-LIVE
  rotator killswitch activate --reason "drawdown"
  rotator signal`,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
