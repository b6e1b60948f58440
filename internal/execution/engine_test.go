package execution

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantfell/rotator/internal/broker"
	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/pkg/logger"
)

type fixedSignal struct {
	signal *contracts.Signal
}

func (f *fixedSignal) Rank(context.Context, []string, time.Time) (*contracts.Signal, error) {
	return f.signal, nil
}

// staleBroker backdates portfolio snapshots to simulate a gateway that
// serves cached data.
type staleBroker struct {
	contracts.Broker
	age time.Duration
}

func (s *staleBroker) GetPortfolio(ctx context.Context) (*contracts.PortfolioSnapshot, error) {
	snap, err := s.Broker.GetPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	snap.Timestamp = snap.Timestamp.Add(-s.age)
	return snap, nil
}

type engineFixture struct {
	engine *Engine
	broker *broker.PaperBroker
	ks     *killswitch.Switch
	audit  *AuditLog
}

func newEngineFixture(t *testing.T, wrap func(contracts.Broker) contracts.Broker) *engineFixture {
	t.Helper()
	dir := t.TempDir()

	b := broker.NewPaperBroker(70700)
	b.SetPrice("SXLK", 50)
	b.SetPrice("SXLI", 80)
	b.SetPrice("SXLU", 40)
	b.SetPrice("SXLV", 100)
	b.SetPosition(contracts.Position{Symbol: "SXLV", Quantity: 293, MarketPrice: 100})

	signal := &contracts.Signal{
		AsOf:         time.Now().UTC(),
		TargetWeight: 1.0 / 3,
		Selected:     []string{"SXLK", "SXLI", "SXLU"},
		Ranked: []contracts.RankedInstrument{
			{Symbol: "SXLK", Rank: 1},
			{Symbol: "SXLI", Rank: 2},
			{Symbol: "SXLU", Rank: 3},
		},
	}

	ks := killswitch.New(filepath.Join(dir, "kill_switch.json"))
	audit := NewAuditLog(filepath.Join(dir, "audit"), logger.Nop())
	risk := NewRiskManager(RiskConfig{MaxPositionPct: 0.40, MaxTurnoverPct: 2.0}, ks, logger.Nop())

	var gw contracts.Broker = b
	if wrap != nil {
		gw = wrap(b)
	}
	orders := NewOrderManager(gw, OrderConfig{
		OrderType:     contracts.OrderTypeMarketOnClose,
		SubmitRetries: 2,
		RetryDelay:    time.Millisecond,
	}, logger.Nop())

	engine := NewEngine(EngineConfig{
		Universe: []string{"SXLK", "SXLI", "SXLU", "SXLV"},
		Sizer: SizerConfig{
			MinTradeThreshold: 0.02,
			MinTradeShares:    1,
			MinTradeValue:     100,
			ExitRankThreshold: 5,
		},
		MaxSnapshotAge:    48 * time.Hour,
		StaleSnapshotWarn: 24 * time.Hour,
	}, gw, &fixedSignal{signal: signal}, risk, orders, audit, ks, logger.Nop())

	return &engineFixture{engine: engine, broker: b, ks: ks, audit: audit}
}

func (f *engineFixture) fills(t *testing.T) []contracts.Execution {
	t.Helper()
	f.broker.Connect(context.Background())
	execs, err := f.broker.GetExecutions(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("executions: %v", err)
	}
	return execs
}

func TestRunDryRunSubmitsNothing(t *testing.T) {
	f := newEngineFixture(t, nil)

	entry, err := f.engine.Run(context.Background(), contracts.ModeDryRun, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if entry.Outcome != "completed" {
		t.Errorf("outcome = %s, want completed", entry.Outcome)
	}
	if len(entry.Trades) == 0 {
		t.Error("dry run produced no proposed trades")
	}
	if len(entry.Orders) != 0 {
		t.Errorf("dry run recorded %d orders, want 0", len(entry.Orders))
	}
	if got := f.fills(t); len(got) != 0 {
		t.Errorf("dry run produced %d broker fills, want 0", len(got))
	}
}

func TestRunLiveSubmitsApprovedTrades(t *testing.T) {
	f := newEngineFixture(t, nil)

	entry, err := f.engine.Run(context.Background(), contracts.ModeLive, contracts.LiveConfirmToken)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if entry.Outcome != "completed" {
		t.Fatalf("outcome = %s, want completed (%s)", entry.Outcome, entry.Error)
	}
	if len(entry.Orders) == 0 {
		t.Fatal("live run submitted no orders")
	}
	// Sell of SXLV must precede every buy.
	if entry.Orders[0].Symbol != "SXLV" || entry.Orders[0].Side != contracts.OrderSideSell {
		t.Errorf("first order = %s %s, want SELL SXLV", entry.Orders[0].Side, entry.Orders[0].Symbol)
	}
	if got := f.fills(t); len(got) != len(entry.Orders) {
		t.Errorf("broker fills = %d, audit orders = %d", len(got), len(entry.Orders))
	}
}

func TestRunDryRunLiveParity(t *testing.T) {
	dry := newEngineFixture(t, nil)
	live := newEngineFixture(t, nil)

	dryEntry, err := dry.engine.Run(context.Background(), contracts.ModeDryRun, "")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	liveEntry, err := live.engine.Run(context.Background(), contracts.ModeLive, contracts.LiveConfirmToken)
	if err != nil {
		t.Fatalf("live run: %v", err)
	}

	if len(dryEntry.Trades) != len(liveEntry.Trades) {
		t.Fatalf("dry proposed %d trades, live proposed %d", len(dryEntry.Trades), len(liveEntry.Trades))
	}
	for i := range dryEntry.Trades {
		if dryEntry.Trades[i] != liveEntry.Trades[i] {
			t.Errorf("trade %d differs: dry=%+v live=%+v", i, dryEntry.Trades[i], liveEntry.Trades[i])
		}
	}
}

func TestRunKillSwitchBlocksBothModes(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mode    contracts.ExecutionMode
		confirm string
	}{
		{"dry_run", contracts.ModeDryRun, ""},
		{"live", contracts.ModeLive, contracts.LiveConfirmToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t, nil)
			if _, err := f.ks.Activate("drawdown limit breached"); err != nil {
				t.Fatalf("activate: %v", err)
			}

			entry, err := f.engine.Run(context.Background(), tc.mode, tc.confirm)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if entry.Outcome != "blocked" {
				t.Errorf("outcome = %s, want blocked", entry.Outcome)
			}
			if len(entry.Orders) != 0 {
				t.Errorf("blocked run recorded %d orders", len(entry.Orders))
			}
			if got := f.fills(t); len(got) != 0 {
				t.Errorf("blocked run produced %d broker fills, want 0", len(got))
			}
		})
	}
}

func TestRunLiveWithoutTokenDegradesToDryRun(t *testing.T) {
	f := newEngineFixture(t, nil)

	entry, err := f.engine.Run(context.Background(), contracts.ModeLive, "yes please")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if entry.Mode != contracts.ModeDryRun {
		t.Errorf("effective mode = %s, want dry_run", entry.Mode)
	}
	if got := f.fills(t); len(got) != 0 {
		t.Errorf("degraded run produced %d broker fills, want 0", len(got))
	}
}

func TestRunAbortsOnStaleSnapshot(t *testing.T) {
	f := newEngineFixture(t, func(b contracts.Broker) contracts.Broker {
		return &staleBroker{Broker: b, age: 72 * time.Hour}
	})

	entry, err := f.engine.Run(context.Background(), contracts.ModeDryRun, "")
	if err == nil {
		t.Fatal("expected error for 72h-old snapshot")
	}
	if entry.Outcome != "failed" {
		t.Errorf("outcome = %s, want failed", entry.Outcome)
	}
}

func TestRunCompletesWithUnpricedSelection(t *testing.T) {
	dir := t.TempDir()

	// SXLU is selected but the gateway has no price for it and it is
	// not held, so no snapshot mark can stand in.
	b := broker.NewPaperBroker(100000)
	b.SetPrice("SXLK", 50)

	signal := &contracts.Signal{
		AsOf:         time.Now().UTC(),
		TargetWeight: 0.5,
		Selected:     []string{"SXLK", "SXLU"},
		Ranked: []contracts.RankedInstrument{
			{Symbol: "SXLK", Rank: 1},
			{Symbol: "SXLU", Rank: 2},
		},
	}

	ks := killswitch.New(filepath.Join(dir, "kill_switch.json"))
	audit := NewAuditLog(filepath.Join(dir, "audit"), logger.Nop())
	risk := NewRiskManager(RiskConfig{MaxPositionPct: 0.60, MaxTurnoverPct: 2.0}, ks, logger.Nop())
	orders := NewOrderManager(b, OrderConfig{OrderType: contracts.OrderTypeMarketOnClose}, logger.Nop())

	engine := NewEngine(EngineConfig{
		Universe: []string{"SXLK", "SXLU"},
		Sizer: SizerConfig{
			MinTradeThreshold: 0.02,
			MinTradeShares:    1,
			MinTradeValue:     100,
		},
		MaxSnapshotAge:    48 * time.Hour,
		StaleSnapshotWarn: 24 * time.Hour,
	}, b, &fixedSignal{signal: signal}, risk, orders, audit, ks, logger.Nop())

	entry, err := engine.Run(context.Background(), contracts.ModeDryRun, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if entry.Outcome != "completed" {
		t.Fatalf("outcome = %s, want completed (%s)", entry.Outcome, entry.Error)
	}
	for _, trade := range entry.Trades {
		if trade.Symbol == "SXLU" {
			t.Errorf("unpriced instrument sized anyway: %+v", trade)
		}
	}
	if len(entry.Trades) != 1 || entry.Trades[0].Symbol != "SXLK" {
		t.Errorf("trades = %+v, want a single SXLK buy", entry.Trades)
	}
}

func TestRunWritesOneAuditEntryPerRun(t *testing.T) {
	f := newEngineFixture(t, nil)

	for i := 0; i < 3; i++ {
		if _, err := f.engine.Run(context.Background(), contracts.ModeDryRun, ""); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	// A blocked run is audited too.
	if _, err := f.ks.Activate("halt"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := f.engine.Run(context.Background(), contracts.ModeDryRun, ""); err != nil {
		t.Fatalf("blocked run: %v", err)
	}

	entries, err := f.audit.Recent(0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("audit has %d entries, want 4", len(entries))
	}
}
