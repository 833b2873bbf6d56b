package session

import (
	"fmt"
	"math"

	"mmsim/pkg/types"
)

// ExecModel selects how session orders are priced.
type ExecModel int8

const (
	// Naive fills at the last bar close, ignoring the book.
	Naive ExecModel = iota
	// Realistic fills at the opposite touch plus slippage and square-root
	// market impact. This is the default.
	Realistic
	// Conservative is Realistic with doubled slippage and impact.
	Conservative
)

func (m ExecModel) String() string {
	switch m {
	case Naive:
		return "naive"
	case Conservative:
		return "conservative"
	default:
		return "realistic"
	}
}

// ParseExecModel maps a config string to a model, defaulting to Realistic.
func ParseExecModel(s string) (ExecModel, error) {
	switch s {
	case "naive":
		return Naive, nil
	case "realistic", "":
		return Realistic, nil
	case "conservative":
		return Conservative, nil
	default:
		return Realistic, fmt.Errorf("unknown execution model %q", s)
	}
}

// ExecConfig holds the transaction-cost model parameters.
type ExecConfig struct {
	Model          ExecModel
	SlippageBps    float64
	ImpactFactor   float64
	CommissionRate float64 // fraction of notional charged per fill
}

// marketState is the pricing context captured at execution time.
type marketState struct {
	bestBid, bestAsk float64 // price units; valid per the Has flags
	hasBid, hasAsk   bool
	lastClose        float64 // last bar close in price units
	recentVolume     int64   // traded lots over the recent bar window
}

// fillPrice computes the effective execution price for a session order.
// It fails with ErrInsufficientLiquidity when the opposite side of the
// book is empty (or, for Naive, when no close has printed yet).
func (c ExecConfig) fillPrice(side types.Side, size int64, mkt marketState) (float64, error) {
	if c.Model == Naive {
		if mkt.lastClose <= 0 {
			return 0, fmt.Errorf("%w: no close price", types.ErrInsufficientLiquidity)
		}
		return mkt.lastClose, nil
	}

	var touch float64
	if side == types.Bid {
		if !mkt.hasAsk {
			return 0, fmt.Errorf("%w: ask side empty", types.ErrInsufficientLiquidity)
		}
		touch = mkt.bestAsk
	} else {
		if !mkt.hasBid {
			return 0, fmt.Errorf("%w: bid side empty", types.ErrInsufficientLiquidity)
		}
		touch = mkt.bestBid
	}

	slippage := c.SlippageBps
	impact := c.ImpactFactor
	if c.Model == Conservative {
		slippage *= 2
		impact *= 2
	}

	vol := mkt.recentVolume
	if vol < 1 {
		vol = 1
	}

	// Cost always works against the taker: buys pay up, sells give up.
	sign := float64(side.Sign())
	cost := slippage/1e4 + impact*math.Sqrt(float64(size)/float64(vol))
	return touch * (1 + sign*cost), nil
}
