package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/execution"
	"github.com/quantfell/rotator/pkg/config"
	"github.com/quantfell/rotator/pkg/logger"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent execution runs",
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVar(&auditLimit, "limit", 10, "number of runs to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	audit := execution.NewAuditLog(cfg.Paths.AuditDir, logger.New(cfg.LogLevel, cfg.LogFormat))
	entries, err := audit.Recent(auditLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No execution runs recorded yet.")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s  %s  mode=%-7s %s", entry.Timestamp.Format("2006-01-02 15:04"), entry.RunID, entry.Mode, entry.Outcome)
		if entry.Error != "" {
			fmt.Printf("  (%s)", entry.Error)
		}
		fmt.Println()

		blocked := 0
		for _, v := range entry.Verdicts {
			if !v.Allowed {
				blocked++
			}
		}
		if len(entry.Trades) > 0 {
			fmt.Printf("  trades=%d blocked=%d orders=%d equity=%.2f\n",
				len(entry.Trades), blocked, len(entry.Orders), entry.TotalEquity)
		}
	}
	return nil
}
