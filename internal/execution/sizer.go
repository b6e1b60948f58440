package execution

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantfell/rotator/internal/contracts"
)

// SizerConfig holds position sizing parameters.
type SizerConfig struct {
	MinTradeThreshold float64 // min |delta| / equity to trigger a trade
	MinTradeShares    int
	MinTradeValue     float64
	ExitRankThreshold int // held instruments ranked below this are exited
}

// SizeTrades converts the signal's target weights and a portfolio
// snapshot into a proposed trade list, sells first then buys.
//
// It is a pure function: no side effects, no state, and deterministic
// for identical inputs. Dry-run and live runs over the same snapshot
// and signal therefore produce identical trade lists.
//
// For each instrument: target_value = target_weight * total_equity,
// delta_value = target_value - current_market_value. Deltas under
// MinTradeThreshold of equity are skipped; otherwise quantity is
// floor(|delta_value| / reference_price). A held instrument whose rank
// has dropped below ExitRankThreshold is exited in full before the
// delta threshold is considered.
func SizeTrades(
	signal *contracts.Signal,
	snapshot *contracts.PortfolioSnapshot,
	prices map[string]float64,
	cfg SizerConfig,
) []contracts.ProposedTrade {
	if snapshot.TotalEquity <= 0 {
		return nil
	}

	weights := signal.TargetWeights()

	// Union of signal universe and current holdings, sorted for
	// deterministic iteration.
	universe := make(map[string]struct{}, len(weights))
	for sym := range weights {
		universe[sym] = struct{}{}
	}
	for _, sym := range snapshot.Symbols() {
		universe[sym] = struct{}{}
	}
	symbols := make([]string, 0, len(universe))
	for sym := range universe {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var sells, buys []contracts.ProposedTrade

	for _, sym := range symbols {
		pos := snapshot.Position(sym)
		price := prices[sym]
		if price <= 0 {
			price = pos.MarketPrice
		}
		if price <= 0 {
			continue
		}

		target := weights[sym]
		currentValue := pos.MarketValue()
		currentWeight := currentValue / snapshot.TotalEquity
		rank := signal.RankOf(sym)

		// Rank-based early exit takes precedence over the delta
		// threshold: a held instrument that fell out of favor is
		// sold in full.
		if pos.Quantity > 0 && cfg.ExitRankThreshold > 0 && rank > cfg.ExitRankThreshold {
			sells = append(sells, contracts.ProposedTrade{
				Symbol:         sym,
				Side:           contracts.OrderSideSell,
				Quantity:       pos.Quantity,
				ReferencePrice: price,
				TargetWeight:   target,
				CurrentWeight:  currentWeight,
				Rank:           rank,
				Reason:         fmt.Sprintf("rank %d below exit threshold %d", rank, cfg.ExitRankThreshold),
			})
			continue
		}

		targetValue := target * snapshot.TotalEquity
		deltaValue := targetValue - currentValue

		if math.Abs(deltaValue)/snapshot.TotalEquity < cfg.MinTradeThreshold {
			continue
		}

		qty := int(math.Floor(math.Abs(deltaValue) / price))
		side := contracts.OrderSideBuy
		if deltaValue < 0 {
			side = contracts.OrderSideSell
			if qty > pos.Quantity {
				qty = pos.Quantity
			}
		}

		if qty < cfg.MinTradeShares || qty <= 0 {
			continue
		}
		if float64(qty)*price < cfg.MinTradeValue {
			continue
		}

		trade := contracts.ProposedTrade{
			Symbol:         sym,
			Side:           side,
			Quantity:       qty,
			ReferencePrice: price,
			TargetWeight:   target,
			CurrentWeight:  currentWeight,
			Rank:           rank,
			Reason:         fmt.Sprintf("weight %.1f%% -> %.1f%%", currentWeight*100, target*100),
		}
		if side == contracts.OrderSideSell {
			sells = append(sells, trade)
		} else {
			buys = append(buys, trade)
		}
	}

	// Larger sells first to free cash; buys by conviction (target
	// weight desc, then symbol for a stable order).
	sort.SliceStable(sells, func(i, j int) bool {
		if sells[i].Value() != sells[j].Value() {
			return sells[i].Value() > sells[j].Value()
		}
		return sells[i].Symbol < sells[j].Symbol
	})
	sort.SliceStable(buys, func(i, j int) bool {
		if buys[i].TargetWeight != buys[j].TargetWeight {
			return buys[i].TargetWeight > buys[j].TargetWeight
		}
		return buys[i].Symbol < buys[j].Symbol
	})

	buys = reduceBuysToCash(buys, snapshot.Cash+totalValue(sells), cfg)

	return append(sells, buys...)
}

// reduceBuysToCash clips the buy list so its cost fits within available
// cash (cash on hand plus sell proceeds). Buys are considered in
// conviction order; a buy that cannot be fully afforded is reduced to
// the affordable share count or dropped.
func reduceBuysToCash(buys []contracts.ProposedTrade, available float64, cfg SizerConfig) []contracts.ProposedTrade {
	result := make([]contracts.ProposedTrade, 0, len(buys))
	remaining := available

	for _, trade := range buys {
		if trade.Value() <= remaining {
			result = append(result, trade)
			remaining -= trade.Value()
			continue
		}

		affordable := int(math.Floor(remaining / trade.ReferencePrice))
		if affordable >= cfg.MinTradeShares && affordable > 0 &&
			float64(affordable)*trade.ReferencePrice >= cfg.MinTradeValue {
			reduced := trade
			reduced.Quantity = affordable
			reduced.Reason = trade.Reason + " (reduced to fit cash)"
			result = append(result, reduced)
			remaining -= reduced.Value()
		}
	}

	return result
}

func totalValue(trades []contracts.ProposedTrade) float64 {
	var sum float64
	for _, t := range trades {
		sum += t.Value()
	}
	return sum
}
