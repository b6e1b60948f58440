package contracts

import "time"

// RankedInstrument is one entry in the signal ranking. Rank 1 is best.
type RankedInstrument struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// Signal is the ranked output identifying which instruments are favored
// and at what weight. Produced once per pipeline run; immutable.
type Signal struct {
	AsOf         time.Time          `json:"as_of"`
	Ranked       []RankedInstrument `json:"ranked"`
	Selected     []string           `json:"selected"`
	TargetWeight float64            `json:"target_weight"` // per selected instrument
}

// TargetWeights expands the signal into a weight map: each selected
// instrument gets TargetWeight, everything else in the ranking gets 0.
func (s *Signal) TargetWeights() map[string]float64 {
	weights := make(map[string]float64, len(s.Ranked))
	for _, r := range s.Ranked {
		weights[r.Symbol] = 0
	}
	for _, sym := range s.Selected {
		weights[sym] = s.TargetWeight
	}
	return weights
}

// RankOf returns the rank for symbol, or 0 if the symbol is not ranked.
func (s *Signal) RankOf(symbol string) int {
	for _, r := range s.Ranked {
		if r.Symbol == symbol {
			return r.Rank
		}
	}
	return 0
}

// IsSelected reports whether symbol is in the selected subset.
func (s *Signal) IsSelected(symbol string) bool {
	for _, sym := range s.Selected {
		if sym == symbol {
			return true
		}
	}
	return false
}
