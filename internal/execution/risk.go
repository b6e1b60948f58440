package execution

import (
	"fmt"
	"sort"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/internal/killswitch"
	"github.com/quantfell/rotator/pkg/logger"
)

// RiskConfig holds the hard limits enforced before any order reaches
// the broker.
type RiskConfig struct {
	MaxPositionPct float64 // max resulting position value as fraction of equity
	MaxTurnoverPct float64 // max total traded value per run as fraction of equity
}

// RiskManager validates proposed trades against position and turnover
// limits and re-checks the kill switch immediately before approval.
type RiskManager struct {
	cfg    RiskConfig
	ks     *killswitch.Switch
	logger *logger.Logger
}

func NewRiskManager(cfg RiskConfig, ks *killswitch.Switch, log *logger.Logger) *RiskManager {
	return &RiskManager{cfg: cfg, ks: ks, logger: log}
}

// ValidateBatch returns one verdict per proposed trade, in input order.
//
// The kill switch is re-read from disk here even though the engine
// checks it at run start; a switch activated mid-run blocks the whole
// batch. Per-trade checks enforce the position cap; the turnover cap
// is then applied to the surviving batch, blocking trades in ascending
// conviction order (lowest-ranked selections first, full exits last)
// until the total fits. Blocking is deterministic: equal-rank trades
// are blocked in reverse symbol order.
func (r *RiskManager) ValidateBatch(
	trades []contracts.ProposedTrade,
	snapshot *contracts.PortfolioSnapshot,
) []contracts.RiskVerdict {
	verdicts := make([]contracts.RiskVerdict, len(trades))

	if state, err := r.ks.State(); err != nil || state.Active {
		reason := state.Reason
		if err != nil {
			// Fail closed on an unreadable sentinel.
			reason = fmt.Sprintf("kill switch unreadable: %v", err)
		}
		r.logger.WithField("reason", reason).Warn("kill switch active, blocking all trades")
		for i, trade := range trades {
			verdicts[i] = contracts.RiskVerdict{
				Trade:   trade,
				Allowed: false,
				Reason:  fmt.Sprintf("kill switch active: %s", reason),
			}
		}
		return verdicts
	}

	for i, trade := range trades {
		verdicts[i] = r.checkTrade(trade, snapshot)
	}

	r.applyTurnoverCap(verdicts, snapshot)

	for _, v := range verdicts {
		if !v.Allowed {
			r.logger.WithFields(map[string]interface{}{
				"symbol": v.Trade.Symbol,
				"side":   v.Trade.Side,
				"reason": v.Reason,
			}).Warn("trade blocked")
		}
	}

	return verdicts
}

func (r *RiskManager) checkTrade(
	trade contracts.ProposedTrade,
	snapshot *contracts.PortfolioSnapshot,
) contracts.RiskVerdict {
	if trade.Quantity <= 0 || trade.ReferencePrice <= 0 {
		return contracts.RiskVerdict{
			Trade:   trade,
			Allowed: false,
			Reason:  "malformed trade: non-positive quantity or price",
		}
	}

	if trade.Side == contracts.OrderSideBuy {
		pos := snapshot.Position(trade.Symbol)
		resulting := pos.MarketValue() + trade.Value()
		limit := r.cfg.MaxPositionPct * snapshot.TotalEquity
		if resulting > limit {
			return contracts.RiskVerdict{
				Trade:   trade,
				Allowed: false,
				Reason: fmt.Sprintf("position limit: resulting value %.2f exceeds %.2f (%.0f%% of equity)",
					resulting, limit, r.cfg.MaxPositionPct*100),
			}
		}
	}

	return contracts.RiskVerdict{Trade: trade, Allowed: true, Reason: "ok"}
}

// applyTurnoverCap blocks allowed trades until the batch's total traded
// value is within MaxTurnoverPct of equity. Candidates are blocked from
// the least convincing end: selected instruments with the worst rank
// go first, and full exits (unranked, rank 0) are blocked only when
// nothing else remains.
func (r *RiskManager) applyTurnoverCap(verdicts []contracts.RiskVerdict, snapshot *contracts.PortfolioSnapshot) {
	limit := r.cfg.MaxTurnoverPct * snapshot.TotalEquity

	total := 0.0
	for _, v := range verdicts {
		if v.Allowed {
			total += v.Trade.Value()
		}
	}
	if total <= limit {
		return
	}

	// Indexes of allowed trades, sorted so the first element is the
	// first to block.
	candidates := make([]int, 0, len(verdicts))
	for i, v := range verdicts {
		if v.Allowed {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ta, tb := verdicts[candidates[a]].Trade, verdicts[candidates[b]].Trade
		ca, cb := convictionRank(ta.Rank), convictionRank(tb.Rank)
		if ca != cb {
			return ca > cb
		}
		return ta.Symbol > tb.Symbol
	})

	for _, idx := range candidates {
		if total <= limit {
			break
		}
		v := &verdicts[idx]
		total -= v.Trade.Value()
		v.Allowed = false
		v.Reason = fmt.Sprintf("turnover limit: batch exceeds %.0f%% of equity", r.cfg.MaxTurnoverPct*100)
	}
}

// convictionRank maps a signal rank to a blocking priority. Ranked
// trades keep their rank (1 = strongest); unranked trades are full
// exits and get rank 0, the strongest conviction of all.
func convictionRank(rank int) int {
	if rank <= 0 {
		return 0
	}
	return rank
}
