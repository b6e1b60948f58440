package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfell/rotator/internal/api"
	"github.com/quantfell/rotator/internal/scheduler"
	"github.com/quantfell/rotator/pkg/config"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the job timetable",
	Long: `Start the scheduler daemon or inspect the timetable.

Subcommands:
  start   - run the scheduler and status server until interrupted
  list    - list registered jobs and their triggers
  run     - run one job immediately, outside its schedule
  status  - show the persisted job status table

Example:
  rotator scheduler start
  rotator scheduler run rebalance`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runSchedulerStart,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  runSchedulerList,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerRun,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the persisted job status table",
		RunE:  runSchedulerStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runSchedulerStart(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Status server runs alongside the tick loop.
	router := api.NewRouter(a.sched, a.ks, a.log)
	server := api.New(a.cfg.HealthPort, a.log, router)
	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Error("status server stopped")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		a.log.Info("interrupt received, shutting down")
		cancel()
	}()

	err = a.sched.Start(ctx)

	if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
		a.log.WithError(shutdownErr).Error("status server shutdown failed")
	}

	if err == context.Canceled {
		return nil
	}
	return err
}

func runSchedulerList(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}

	fmt.Println("Registered jobs:")
	for _, job := range a.sched.Jobs() {
		fmt.Printf("  %-12s %s\n", job.Name, job.Trigger)
	}
	return nil
}

func runSchedulerRun(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}

	name := args[0]
	fmt.Printf("Running job: %s\n", name)

	run, err := a.sched.TriggerNow(cmd.Context(), name)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished: status=%s attempts=%d\n", run.RunID, run.Status, run.Attempts)
	if run.Error != "" {
		fmt.Printf("Error: %s\n", run.Error)
	}
	if run.Status != scheduler.RunStatusSuccess {
		return fmt.Errorf("job %s failed", name)
	}
	return nil
}

func runSchedulerStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	snap, err := scheduler.LoadStatus(cfg.Paths.StatusFile)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Println("No status file yet; has the scheduler ever run?")
		return nil
	}

	fmt.Printf("Scheduler started: %s\n", snap.SchedulerStarted.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Last heartbeat:    %s\n\n", snap.LastHeartbeat.Format("2006-01-02 15:04:05 MST"))

	names := make([]string, 0, len(snap.Jobs))
	for name := range snap.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := snap.Jobs[name]
		fmt.Printf("%-12s trigger=%-10s next=%s", job.Name, job.Trigger, job.NextRun.Format("2006-01-02 15:04"))
		if job.Running {
			fmt.Print("  [running]")
		}
		if job.SkippedFirings > 0 {
			fmt.Printf("  skipped=%d", job.SkippedFirings)
		}
		fmt.Println()
		if job.LastRun != nil {
			fmt.Printf("             last run: %s attempts=%d at %s\n",
				job.LastRun.Status, job.LastRun.Attempts, job.LastRun.StartedAt.Format("2006-01-02 15:04"))
		}
		if job.LastSuccess != nil {
			fmt.Printf("             last success: %s\n", job.LastSuccess.Format("2006-01-02 15:04"))
		}
	}
	return nil
}
