// Package broker provides broker gateway implementations. The production
// gateway is an external collaborator wired in at deployment; the paper
// broker here simulates the same contract for dry runs and tests.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfell/rotator/internal/contracts"
)

// PaperBroker is a deterministic in-memory broker. Orders fill
// immediately at the reference price unless scripted otherwise.
type PaperBroker struct {
	mu sync.Mutex

	cash      float64
	positions map[string]contracts.Position
	prices    map[string]float64
	fills     []contracts.Execution

	connected    bool
	connectFails int // remaining Connect attempts that fail

	transientFails map[string]int // per-symbol transient submit failures
	rejects        map[string]string
	partialFills   map[string]int // symbol -> quantity actually filled
}

// NewPaperBroker creates a paper broker with the given starting cash.
func NewPaperBroker(cash float64) *PaperBroker {
	return &PaperBroker{
		cash:           cash,
		positions:      make(map[string]contracts.Position),
		prices:         make(map[string]float64),
		transientFails: make(map[string]int),
		rejects:        make(map[string]string),
		partialFills:   make(map[string]int),
	}
}

// Connect establishes the simulated session.
func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connectFails > 0 {
		b.connectFails--
		return contracts.Transient(fmt.Errorf("paper broker connect refused"))
	}
	b.connected = true
	return nil
}

// Disconnect tears down the simulated session.
func (b *PaperBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// GetPortfolio returns a fresh snapshot of the simulated account.
func (b *PaperBroker) GetPortfolio(ctx context.Context) (*contracts.PortfolioSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &contracts.PortfolioSnapshot{
		Timestamp: time.Now().UTC(),
		Cash:      b.cash,
	}

	equity := b.cash
	for _, pos := range b.positions {
		if price, ok := b.prices[pos.Symbol]; ok {
			pos.MarketPrice = price
		}
		snap.Positions = append(snap.Positions, pos)
		equity += pos.MarketValue()
	}
	snap.TotalEquity = equity

	return snap, nil
}

// GetPrices returns the simulated book's last price for each requested
// symbol. Symbols without a price are omitted from the result.
func (b *PaperBroker) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, contracts.Transient(fmt.Errorf("not connected"))
	}

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if price, ok := b.prices[sym]; ok {
			out[sym] = price
		}
	}
	return out, nil
}

// GetExecutions returns fills recorded on the given date.
func (b *PaperBroker) GetExecutions(ctx context.Context, date time.Time) ([]contracts.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := date.UTC().Truncate(24 * time.Hour)
	var out []contracts.Execution
	for _, ex := range b.fills {
		if ex.Time.UTC().Truncate(24*time.Hour).Equal(day) {
			out = append(out, ex)
		}
	}
	return out, nil
}

// SubmitOrder fills the order against the simulated book.
func (b *PaperBroker) SubmitOrder(ctx context.Context, order contracts.Order) (*contracts.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, contracts.Transient(fmt.Errorf("not connected"))
	}

	if n := b.transientFails[order.Symbol]; n > 0 {
		b.transientFails[order.Symbol] = n - 1
		return nil, contracts.Transient(fmt.Errorf("simulated connectivity failure for %s", order.Symbol))
	}

	if reason, ok := b.rejects[order.Symbol]; ok {
		return &contracts.OrderResult{
			OrderID:  order.ID,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Quantity: order.Quantity,
			Status:   contracts.OrderStatusRejected,
			Message:  reason,
		}, nil
	}

	price := order.Price
	if p, ok := b.prices[order.Symbol]; ok {
		price = p
	}
	if price <= 0 {
		return &contracts.OrderResult{
			OrderID:  order.ID,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Quantity: order.Quantity,
			Status:   contracts.OrderStatusRejected,
			Message:  "no price available",
		}, nil
	}

	qty := order.Quantity
	if partial, ok := b.partialFills[order.Symbol]; ok && partial < qty {
		qty = partial
	}

	b.applyFill(order.Symbol, order.Side, qty, price)

	exec := contracts.Execution{
		ExecID:   uuid.NewString(),
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: qty,
		Price:    price,
		Time:     time.Now().UTC(),
	}
	b.fills = append(b.fills, exec)

	msg := "filled"
	if qty < order.Quantity {
		msg = fmt.Sprintf("partial fill: %d of %d", qty, order.Quantity)
	}

	return &contracts.OrderResult{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  qty,
		Status:    contracts.OrderStatusFilled,
		FillPrice: price,
		FillTime:  exec.Time,
		Message:   msg,
	}, nil
}

// applyFill mutates cash and positions for a fill. Caller holds the lock.
func (b *PaperBroker) applyFill(symbol string, side contracts.OrderSide, qty int, price float64) {
	pos := b.positions[symbol]
	pos.Symbol = symbol
	pos.MarketPrice = price

	value := float64(qty) * price
	if side == contracts.OrderSideBuy {
		pos.Quantity += qty
		b.cash -= value
	} else {
		pos.Quantity -= qty
		if pos.Quantity < 0 {
			pos.Quantity = 0
		}
		b.cash += value
	}

	if pos.Quantity == 0 {
		delete(b.positions, symbol)
		return
	}
	b.positions[symbol] = pos
}

// SetPrice sets the simulated market price for a symbol.
func (b *PaperBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
}

// SetPosition seeds a holding.
func (b *PaperBroker) SetPosition(pos contracts.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[pos.Symbol] = pos
	if pos.MarketPrice > 0 {
		b.prices[pos.Symbol] = pos.MarketPrice
	}
}

// FailConnects makes the next n Connect calls fail transiently.
func (b *PaperBroker) FailConnects(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectFails = n
}

// FailSubmits makes the next n submissions for symbol fail transiently.
func (b *PaperBroker) FailSubmits(symbol string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transientFails[symbol] = n
}

// RejectSymbol makes submissions for symbol reject outright.
func (b *PaperBroker) RejectSymbol(symbol, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejects[symbol] = reason
}

// PartialFill caps fills for symbol at qty shares.
func (b *PaperBroker) PartialFill(symbol string, qty int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partialFills[symbol] = qty
}
