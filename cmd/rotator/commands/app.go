package commands

import (
	"fmt"

	"github.com/quantfell/rotator/internal/broker"
	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/execution"
	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/internal/notify"
	"github.com/quantfell/rotator/internal/scheduler"
	"github.com/quantfell/rotator/internal/scheduler/jobs"
	"github.com/quantfell/rotator/internal/signals"
	"github.com/quantfell/rotator/internal/store"
	"github.com/quantfell/rotator/pkg/config"
	"github.com/quantfell/rotator/pkg/httputil"
	"github.com/quantfell/rotator/pkg/logger"
)

// app wires the full dependency graph once per command invocation.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	ks     *killswitch.Switch
	broker contracts.Broker
	engine *execution.Engine
	audit  *execution.AuditLog
	sched  *scheduler.Scheduler
}

func initApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.LogFormat)

	mode, err := contracts.ParseMode(cfg.Execution.Mode)
	if err != nil {
		return nil, err
	}

	ks := killswitch.New(cfg.Paths.KillSwitchFile)

	gw, err := buildBroker(cfg, log)
	if err != nil {
		return nil, err
	}

	feed := signals.NewFileFeed(cfg.Paths.PricesDir)
	source := signals.NewMomentumSource(feed, signals.MomentumConfig{
		TopN:           cfg.Sizing.TopN,
		LookbackMonths: cfg.Signal.LookbackMonths,
		SkipMonths:     cfg.Signal.SkipMonths,
	}, log)

	audit := execution.NewAuditLog(cfg.Paths.AuditDir, log)
	risk := execution.NewRiskManager(execution.RiskConfig{
		MaxPositionPct: cfg.Risk.MaxPositionPct,
		MaxTurnoverPct: cfg.Risk.MaxTurnoverPct,
	}, ks, log)
	orders := execution.NewOrderManager(gw, execution.OrderConfig{
		OrderType:      contracts.OrderType(cfg.Execution.OrderType),
		LimitOffsetBps: cfg.Execution.LimitOffsetBps,
		SubmitRetries:  cfg.Execution.SubmitRetries,
		RetryDelay:     cfg.Execution.SubmitRetryDelay,
	}, log)

	engine := execution.NewEngine(execution.EngineConfig{
		Universe: cfg.Signal.Universe,
		Sizer: execution.SizerConfig{
			MinTradeThreshold: cfg.Sizing.MinTradeThreshold,
			MinTradeShares:    cfg.Sizing.MinTradeShares,
			MinTradeValue:     cfg.Sizing.MinTradeValue,
			ExitRankThreshold: cfg.Risk.ExitRankThreshold,
		},
		MaxSnapshotAge:    cfg.Execution.MaxSnapshotAge,
		StaleSnapshotWarn: cfg.Execution.StaleSnapshotWarn,
	}, gw, source, risk, orders, audit, ks, log)

	outbound := httputil.New(log).WithRateLimit(cfg.OutboundRateLimitRPS)
	notifier := notify.NewWebhookNotifier(cfg.WebhookURL, outbound, log)
	sched := scheduler.New(scheduler.Config{
		TickInterval:   cfg.Scheduler.TickInterval,
		MaxRetries:     cfg.Scheduler.MaxRetries,
		RetryBaseDelay: cfg.Scheduler.RetryBaseDelay,
		StatusFile:     cfg.Paths.StatusFile,
	}, notifier, log)

	timetable := []scheduler.Job{
		{
			Name:    "snapshot",
			Trigger: scheduler.TriggerSpec(cfg.Scheduler.SnapshotSchedule),
			Handler: jobs.Snapshot(gw, cfg.Paths.SnapshotsDir, log),
		},
		{
			Name:    "executions",
			Trigger: scheduler.TriggerSpec(cfg.Scheduler.ExecutionsSchedule),
			Handler: jobs.Executions(gw, cfg.Paths.ExecutionsDir, log),
		},
		{
			Name:    "rebalance",
			Trigger: scheduler.TriggerSpec(cfg.Scheduler.RebalanceSchedule),
			Handler: jobs.Rebalance(engine, mode, cfg.Execution.ConfirmToken, log),
		},
	}
	for _, job := range timetable {
		if err := sched.Register(job); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:    cfg,
		log:    log,
		ks:     ks,
		broker: gw,
		engine: engine,
		audit:  audit,
		sched:  sched,
	}, nil
}

// buildBroker constructs the paper gateway, seeded from the latest
// persisted snapshot when one exists so a restart resumes from the last
// known book.
func buildBroker(cfg *config.Config, log *logger.Logger) (contracts.Broker, error) {
	snap, err := store.LoadLatestSnapshot(cfg.Paths.SnapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	if snap == nil {
		log.WithField("cash", cfg.Execution.PaperCash).Info("no persisted snapshot, starting paper gateway flat")
		return broker.NewPaperBroker(cfg.Execution.PaperCash), nil
	}

	gw := broker.NewPaperBroker(snap.Cash)
	for _, pos := range snap.Positions {
		gw.SetPosition(pos)
		gw.SetPrice(pos.Symbol, pos.MarketPrice)
	}
	log.WithFields(map[string]interface{}{
		"equity":    snap.TotalEquity,
		"positions": len(snap.Positions),
		"as_of":     snap.Timestamp,
	}).Info("paper gateway seeded from persisted snapshot")
	return gw, nil
}
