package signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/pkg/logger"
)

// Close is one daily closing price.
type Close struct {
	Date  time.Time
	Price float64
}

// PriceFeed supplies daily closes for an instrument over a date range,
// oldest first.
type PriceFeed interface {
	Closes(ctx context.Context, symbol string, start, end time.Time) ([]Close, error)
}

// MomentumConfig holds the ranking parameters.
type MomentumConfig struct {
	TopN           int
	LookbackMonths int // total return window start, months before asOf
	SkipMonths     int // most recent months excluded from the window
}

// MomentumSource ranks a universe by 12-1 momentum: total return over
// the lookback window ending SkipMonths before the as-of date, so the
// most recent month's reversal noise is excluded. The top N instruments
// are selected at equal weight 1/N.
type MomentumSource struct {
	feed   PriceFeed
	cfg    MomentumConfig
	logger *logger.Logger
}

func NewMomentumSource(feed PriceFeed, cfg MomentumConfig, log *logger.Logger) *MomentumSource {
	return &MomentumSource{feed: feed, cfg: cfg, logger: log}
}

// Rank implements contracts.SignalSource. Instruments with insufficient
// price history are excluded from the ranking; the run fails only when
// fewer instruments remain than the selection needs.
func (m *MomentumSource) Rank(ctx context.Context, universe []string, asOf time.Time) (*contracts.Signal, error) {
	start := asOf.AddDate(0, -m.cfg.LookbackMonths, 0)
	end := asOf.AddDate(0, -m.cfg.SkipMonths, 0)

	type scored struct {
		symbol string
		score  float64
	}
	scores := make([]scored, 0, len(universe))

	for _, sym := range universe {
		closes, err := m.feed.Closes(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("price history for %s: %w", sym, err)
		}
		if len(closes) < 2 || closes[0].Price <= 0 {
			m.logger.WithField("symbol", sym).Warn("insufficient price history, excluding from ranking")
			continue
		}
		ret := closes[len(closes)-1].Price/closes[0].Price - 1
		scores = append(scores, scored{symbol: sym, score: ret})
	}

	if len(scores) < m.cfg.TopN {
		return nil, fmt.Errorf("only %d of %d instruments have usable history, need %d",
			len(scores), len(universe), m.cfg.TopN)
	}

	// Highest return first; ties broken by symbol so the ranking is
	// reproducible.
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].symbol < scores[j].symbol
	})

	signal := &contracts.Signal{
		AsOf:         asOf,
		Ranked:       make([]contracts.RankedInstrument, len(scores)),
		Selected:     make([]string, 0, m.cfg.TopN),
		TargetWeight: 1.0 / float64(m.cfg.TopN),
	}
	for i, s := range scores {
		signal.Ranked[i] = contracts.RankedInstrument{
			Symbol: s.symbol,
			Score:  s.score,
			Rank:   i + 1,
		}
		if i < m.cfg.TopN {
			signal.Selected = append(signal.Selected, s.symbol)
		}
	}
	return signal, nil
}
