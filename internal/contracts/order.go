package contracts

import "time"

// Order is an instruction passed to the broker gateway.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"` // reference price; 0 for market orders
	OrderType OrderType `json:"order_type"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the broker order type
type OrderType string

const (
	OrderTypeMarket        OrderType = "MKT"
	OrderTypeMarketOnClose OrderType = "MOC"
	OrderTypeLimit         OrderType = "LMT"
)

// OrderStatus represents the terminal outcome of a submission attempt.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusError    OrderStatus = "error"
)

// OrderResult is the per-order outcome recorded in the audit trail.
// A partial fill is recorded as filled with the filled quantity; the
// remainder is left for the next scheduled run.
type OrderResult struct {
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Quantity  int         `json:"quantity"`
	Status    OrderStatus `json:"status"`
	FillPrice float64     `json:"fill_price,omitempty"`
	FillTime  time.Time   `json:"fill_time,omitempty"`
	Message   string      `json:"message,omitempty"`
	Attempts  int         `json:"attempts"`
}

// IsFilled reports whether the order ended filled (fully or partially).
func (r *OrderResult) IsFilled() bool {
	return r.Status == OrderStatusFilled
}

// Execution is a single fill pulled from the broker for a trading day.
type Execution struct {
	ExecID   string    `json:"exec_id"`
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
	Time     time.Time `json:"time"`
}
