package contracts

import (
	"context"
	"time"
)

// Broker is the gateway to the brokerage. Implementations handle their
// own connection retries; callers treat Connect/Disconnect as a session
// bracket around portfolio reads and order submission.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect()

	GetPortfolio(ctx context.Context) (*PortfolioSnapshot, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	GetExecutions(ctx context.Context, date time.Time) ([]Execution, error)
	SubmitOrder(ctx context.Context, order Order) (*OrderResult, error)
}

// SignalSource produces the ranked instrument list for a date.
type SignalSource interface {
	Rank(ctx context.Context, universe []string, asOf time.Time) (*Signal, error)
}

// Notifier delivers out-of-band failure notifications.
type Notifier interface {
	NotifyFailure(ctx context.Context, subject, body string) error
}
