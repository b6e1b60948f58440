package contracts

import "time"

// Position is one holding inside a portfolio snapshot.
type Position struct {
	Symbol      string  `json:"symbol"`
	Quantity    int     `json:"quantity"`
	AvgCost     float64 `json:"avg_cost"`
	MarketPrice float64 `json:"market_price"`
}

// MarketValue returns the position's current market value.
func (p Position) MarketValue() float64 {
	return float64(p.Quantity) * p.MarketPrice
}

// PortfolioSnapshot is a point-in-time read of holdings, cash and equity.
// Snapshots are never mutated, only superseded by the next snapshot.
type PortfolioSnapshot struct {
	Timestamp   time.Time  `json:"timestamp"`
	TotalEquity float64    `json:"total_equity"`
	Cash        float64    `json:"cash"`
	Positions   []Position `json:"positions"`
}

// Position returns the holding for symbol, or a zero Position if not held.
func (s *PortfolioSnapshot) Position(symbol string) Position {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return Position{Symbol: symbol}
}

// Weight returns symbol's current portfolio weight (0 if not held or
// equity is zero).
func (s *PortfolioSnapshot) Weight(symbol string) float64 {
	if s.TotalEquity <= 0 {
		return 0
	}
	return s.Position(symbol).MarketValue() / s.TotalEquity
}

// Age returns how long ago the snapshot was taken.
func (s *PortfolioSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Symbols returns the symbols of all held positions.
func (s *PortfolioSnapshot) Symbols() []string {
	out := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		out = append(out, p.Symbol)
	}
	return out
}
