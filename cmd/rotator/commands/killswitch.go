package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/pkg/config"
)

var (
	killswitchReason  string
	killswitchConfirm bool
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Inspect or flip the trading halt",
	Long: `The kill switch is a durable sentinel checked before every run and
again before order approval. While active, no orders reach the broker
in any mode.

Example:
  rotator killswitch status
  rotator killswitch activate --reason "drawdown limit breached"
  rotator killswitch deactivate --confirm`,
}

var (
	killswitchStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the current kill switch state",
		RunE:  runKillswitchStatus,
	}

	killswitchActivateCmd = &cobra.Command{
		Use:   "activate",
		Short: "Halt all trading",
		RunE:  runKillswitchActivate,
	}

	killswitchDeactivateCmd = &cobra.Command{
		Use:   "deactivate",
		Short: "Clear the halt and re-arm trading",
		RunE:  runKillswitchDeactivate,
	}
)

func init() {
	rootCmd.AddCommand(killswitchCmd)
	killswitchCmd.AddCommand(killswitchStatusCmd)
	killswitchCmd.AddCommand(killswitchActivateCmd)
	killswitchCmd.AddCommand(killswitchDeactivateCmd)

	killswitchActivateCmd.Flags().StringVar(&killswitchReason, "reason", "", "why trading is being halted (required)")
	killswitchDeactivateCmd.Flags().BoolVar(&killswitchConfirm, "confirm", false, "required confirmation")
}

func loadSwitch() (*killswitch.Switch, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return killswitch.New(cfg.Paths.KillSwitchFile), nil
}

func runKillswitchStatus(cmd *cobra.Command, args []string) error {
	ks, err := loadSwitch()
	if err != nil {
		return err
	}

	state, err := ks.State()
	if err != nil {
		return err
	}

	if !state.Active {
		fmt.Println("Kill switch: inactive")
		return nil
	}
	fmt.Println("Kill switch: ACTIVE")
	fmt.Printf("  Reason:       %s\n", state.Reason)
	fmt.Printf("  Activated at: %s\n", state.ActivatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Version:      %d\n", state.Version)
	return nil
}

func runKillswitchActivate(cmd *cobra.Command, args []string) error {
	if killswitchReason == "" {
		return fmt.Errorf("--reason is required")
	}

	ks, err := loadSwitch()
	if err != nil {
		return err
	}

	state, err := ks.Activate(killswitchReason)
	if err != nil {
		return err
	}
	fmt.Printf("Kill switch activated (version %d). All trading halted.\n", state.Version)
	return nil
}

func runKillswitchDeactivate(cmd *cobra.Command, args []string) error {
	// Re-arming live trading is the one operation that must never
	// happen by accident.
	if !killswitchConfirm {
		return fmt.Errorf("deactivation requires --confirm")
	}

	ks, err := loadSwitch()
	if err != nil {
		return err
	}

	changed, err := ks.Deactivate()
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("Kill switch was not active.")
		return nil
	}
	fmt.Println("Kill switch deactivated. Trading re-armed.")
	return nil
}
