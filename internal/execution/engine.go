package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/pkg/logger"
)

// EngineConfig holds the execution pipeline parameters.
type EngineConfig struct {
	Universe          []string
	Sizer             SizerConfig
	MaxSnapshotAge    time.Duration // abort if the snapshot is older
	StaleSnapshotWarn time.Duration // warn if the snapshot is older
}

// Engine runs the rebalance pipeline end to end: kill switch, fresh
// portfolio snapshot, signal, sizing, risk verdicts, mode gate, order
// submission, audit. Steps run strictly in that order; any abort still
// produces an audit entry.
type Engine struct {
	cfg     EngineConfig
	broker  contracts.Broker
	signals contracts.SignalSource
	risk    *RiskManager
	orders  *OrderManager
	audit   *AuditLog
	ks      *killswitch.Switch
	logger  *logger.Logger
}

func NewEngine(
	cfg EngineConfig,
	broker contracts.Broker,
	signals contracts.SignalSource,
	risk *RiskManager,
	orders *OrderManager,
	audit *AuditLog,
	ks *killswitch.Switch,
	log *logger.Logger,
) *Engine {
	return &Engine{
		cfg:     cfg,
		broker:  broker,
		signals: signals,
		risk:    risk,
		orders:  orders,
		audit:   audit,
		ks:      ks,
		logger:  log,
	}
}

// Run executes one rebalance. Orders reach the broker only when mode is
// live AND confirm carries the exact confirmation token; any mismatch
// degrades the run to dry-run and records the degradation.
// A blocked or degraded run is a policy outcome, not an error: Run
// returns a non-nil error only for operational failures (broker,
// data, audit).
func (e *Engine) Run(ctx context.Context, mode contracts.ExecutionMode, confirm string) (*AuditEntry, error) {
	entry := &AuditEntry{
		RunID:     uuid.NewString()[:8],
		Timestamp: time.Now().UTC(),
		Mode:      mode,
	}
	log := e.logger.WithField("run_id", entry.RunID)

	// Step 1: kill switch. Checked before anything touches the broker;
	// an unreadable sentinel fails closed.
	state, err := e.ks.State()
	if err != nil || state.Active {
		reason := state.Reason
		if err != nil {
			reason = fmt.Sprintf("sentinel unreadable: %v", err)
		}
		log.WithField("reason", reason).Warn("run blocked by kill switch")
		entry.Outcome = "blocked"
		entry.Error = fmt.Errorf("%w: %s", contracts.ErrKillSwitchActive, reason).Error()
		return entry, e.audit.Record(entry)
	}

	// Step 2: fresh snapshot. Never reuse a snapshot from a previous
	// run; stale data aborts rather than trades.
	if err := e.broker.Connect(ctx); err != nil {
		return e.fail(entry, fmt.Errorf("broker connect: %w", err))
	}
	defer e.broker.Disconnect()

	snapshot, err := e.broker.GetPortfolio(ctx)
	if err != nil {
		return e.fail(entry, fmt.Errorf("portfolio snapshot: %w", err))
	}
	if snapshot.TotalEquity <= 0 {
		return e.fail(entry, fmt.Errorf("portfolio snapshot reports non-positive equity %.2f", snapshot.TotalEquity))
	}
	now := time.Now().UTC()
	if age := snapshot.Age(now); age > e.cfg.MaxSnapshotAge {
		return e.fail(entry, fmt.Errorf("portfolio snapshot is %s old, max %s", age.Round(time.Minute), e.cfg.MaxSnapshotAge))
	} else if age > e.cfg.StaleSnapshotWarn {
		log.WithField("age", age.Round(time.Minute).String()).Warn("portfolio snapshot is stale")
	}
	entry.TotalEquity = snapshot.TotalEquity
	entry.Cash = snapshot.Cash
	entry.SnapshotAt = snapshot.Timestamp

	// Step 3: signal.
	signal, err := e.signals.Rank(ctx, e.cfg.Universe, now)
	if err != nil {
		return e.fail(entry, fmt.Errorf("signal: %w", err))
	}
	entry.Signal = signal
	log.WithFields(map[string]interface{}{
		"selected": signal.Selected,
		"as_of":    signal.AsOf.Format("2006-01-02"),
	}).Info("signal computed")

	// Steps 4-5: target weights and sizing. SizeTrades is pure, so the
	// dry-run and live trade lists for this snapshot are identical.
	// Reference prices come from the gateway for the full universe;
	// held positions fall back to their snapshot marks.
	prices, err := e.broker.GetPrices(ctx, e.cfg.Universe)
	if err != nil {
		return e.fail(entry, fmt.Errorf("reference prices: %w", err))
	}
	for _, pos := range snapshot.Positions {
		if _, ok := prices[pos.Symbol]; !ok {
			prices[pos.Symbol] = pos.MarketPrice
		}
	}
	for _, sym := range signal.Selected {
		if prices[sym] <= 0 {
			// The sizer cannot size without a price; make the omission
			// visible instead of dropping the instrument silently.
			log.WithField("symbol", sym).Warn("no reference price for selected instrument, it will not be traded")
		}
	}
	trades := SizeTrades(signal, snapshot, prices, e.cfg.Sizer)
	entry.Trades = trades
	log.WithField("proposed", len(trades)).Info("trades sized")

	// Step 6: risk verdicts.
	verdicts := e.risk.ValidateBatch(trades, snapshot)
	entry.Verdicts = verdicts

	allowed := make([]contracts.ProposedTrade, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Allowed {
			allowed = append(allowed, v.Trade)
		}
	}
	log.WithFields(map[string]interface{}{
		"allowed": len(allowed),
		"blocked": len(verdicts) - len(allowed),
	}).Info("risk verdicts")

	// Step 7: mode gate then submission.
	effective := mode
	if mode == contracts.ModeLive && confirm != contracts.LiveConfirmToken {
		log.Warn("live mode requested without confirmation token, degrading to dry-run")
		effective = contracts.ModeDryRun
	}
	entry.Mode = effective

	if effective == contracts.ModeDryRun {
		log.WithField("would_submit", len(allowed)).Info("dry run complete, no orders submitted")
		entry.Outcome = "completed"
		return entry, e.audit.Record(entry)
	}

	results := e.orders.Submit(ctx, allowed)
	entry.Orders = results

	// Step 8: audit.
	entry.Outcome = "completed"
	for _, res := range results {
		if res.Status == contracts.OrderStatusError {
			entry.Error = "one or more orders failed"
			break
		}
	}
	log.WithField("orders", len(results)).Info("run complete")
	return entry, e.audit.Record(entry)
}

func (e *Engine) fail(entry *AuditEntry, err error) (*AuditEntry, error) {
	e.logger.WithField("run_id", entry.RunID).WithError(err).Error("run failed")
	entry.Outcome = "failed"
	entry.Error = err.Error()
	if auditErr := e.audit.Record(entry); auditErr != nil {
		e.logger.WithError(auditErr).Error("failed to write audit entry")
	}
	return entry, err
}
