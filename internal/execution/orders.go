package execution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/pkg/logger"
)

// OrderConfig holds submission parameters.
type OrderConfig struct {
	OrderType      contracts.OrderType
	LimitOffsetBps int // limit price offset from reference, LMT only
	SubmitRetries  int // retries after the first attempt, transient errors only
	RetryDelay     time.Duration
}

// OrderManager translates approved trades into broker orders. Sells are
// always submitted before buys so sale proceeds can fund purchases
// within the same run.
type OrderManager struct {
	broker contracts.Broker
	cfg    OrderConfig
	logger *logger.Logger
}

func NewOrderManager(broker contracts.Broker, cfg OrderConfig, log *logger.Logger) *OrderManager {
	return &OrderManager{broker: broker, cfg: cfg, logger: log}
}

// Submit sends the approved trades to the broker and returns one result
// per trade. A failed submission never aborts the batch; the failure is
// recorded in its result and the remaining orders proceed. Partial
// fills are recorded as filled with the actual quantity.
func (m *OrderManager) Submit(ctx context.Context, trades []contracts.ProposedTrade) []contracts.OrderResult {
	ordered := make([]contracts.ProposedTrade, 0, len(trades))
	for _, t := range trades {
		if t.Side == contracts.OrderSideSell {
			ordered = append(ordered, t)
		}
	}
	for _, t := range trades {
		if t.Side == contracts.OrderSideBuy {
			ordered = append(ordered, t)
		}
	}

	results := make([]contracts.OrderResult, 0, len(ordered))
	for _, trade := range ordered {
		results = append(results, m.submitOne(ctx, trade))
	}
	return results
}

func (m *OrderManager) submitOne(ctx context.Context, trade contracts.ProposedTrade) contracts.OrderResult {
	order := contracts.Order{
		ID:        uuid.NewString()[:8],
		Symbol:    trade.Symbol,
		Side:      trade.Side,
		Quantity:  trade.Quantity,
		OrderType: m.cfg.OrderType,
		CreatedAt: time.Now().UTC(),
	}
	if m.cfg.OrderType == contracts.OrderTypeLimit {
		order.Price = limitPrice(trade, m.cfg.LimitOffsetBps)
	}

	log := m.logger.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": order.Quantity,
	})

	var lastErr error
	attempts := 0
	for attempts < m.cfg.SubmitRetries+1 {
		attempts++
		result, err := m.broker.SubmitOrder(ctx, order)
		if err == nil {
			result.Attempts = attempts
			if result.Status == contracts.OrderStatusFilled && result.Quantity < order.Quantity {
				log.WithField("filled", result.Quantity).Warn("order partially filled")
			} else {
				log.WithField("status", result.Status).Info("order submitted")
			}
			return *result
		}

		lastErr = err
		// Only transient failures are retried; rejections and other
		// permanent errors are final on the first attempt.
		if !contracts.IsTransient(err) || attempts > m.cfg.SubmitRetries {
			break
		}
		log.WithError(err).WithField("attempt", attempts).Warn("transient submit failure, retrying")
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempts = m.cfg.SubmitRetries + 1
		case <-time.After(m.cfg.RetryDelay):
		}
	}

	log.WithError(lastErr).Error("order submission failed")
	return contracts.OrderResult{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: 0,
		Status:   contracts.OrderStatusError,
		Message:  lastErr.Error(),
		Attempts: attempts,
	}
}

// limitPrice offsets the reference price against the trade direction:
// buys pay up, sells give up, by LimitOffsetBps basis points.
func limitPrice(trade contracts.ProposedTrade, offsetBps int) float64 {
	offset := trade.ReferencePrice * float64(offsetBps) / 10000
	if trade.Side == contracts.OrderSideBuy {
		return trade.ReferencePrice + offset
	}
	return trade.ReferencePrice - offset
}
