package contracts

// ProposedTrade is a trade the position sizer wants to make. It exists
// only within one pipeline run.
type ProposedTrade struct {
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Quantity       int       `json:"quantity"`
	ReferencePrice float64   `json:"reference_price"`
	TargetWeight   float64   `json:"target_weight"`
	CurrentWeight  float64   `json:"current_weight"`
	Rank           int       `json:"rank"` // signal rank; 0 = unranked exit
	Reason         string    `json:"reason"`
}

// Value returns the absolute trade value.
func (t ProposedTrade) Value() float64 {
	return float64(t.Quantity) * t.ReferencePrice
}

// RiskVerdict is the risk manager's decision for one proposed trade.
// Every blocked trade carries a human-readable reason; nothing is
// dropped silently.
type RiskVerdict struct {
	Trade   ProposedTrade `json:"trade"`
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
}
