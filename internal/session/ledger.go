// Package session implements the backtesting and live-session driver.
//
// A Session owns one simulator and one strategy. Each poll advances one
// tick through a fixed pipeline: participant intents, matching, bar close,
// strategy signal, driver trade, equity update. The Manager is the
// process-wide registry mapping opaque session ids to sessions behind a
// reader-writer lock; each session serializes its own operations, so
// session internals need no further locking.
//
// Money (cash, commissions, realized P&L) is tracked in decimals; the
// equity curve and analytics are plain float64 series derived from it.
package session

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mmsim/pkg/types"
)

// lot is one open position entry awaiting FIFO close.
type lot struct {
	price decimal.Decimal
	size  int64
}

// Ledger tracks cash, the signed position, and the open lot stack for a
// session. Buys close short lots before opening long ones and vice versa;
// realized P&L is attributed per lot consumed.
type Ledger struct {
	cash     decimal.Decimal
	position int64
	open     []lot // all entries share the sign of position

	realized  decimal.Decimal
	grossGain decimal.Decimal
	grossLoss decimal.Decimal // stored positive

	closedLots  int64
	winningLots int64
}

// NewLedger creates a ledger holding the initial capital in cash.
func NewLedger(initialCapital decimal.Decimal) *Ledger {
	return &Ledger{cash: initialCapital}
}

// Apply executes one fill against the ledger and returns the realized
// P&L of the lots it closed. A buy that cash cannot cover is rejected
// with ErrInsufficientLiquidity and leaves the ledger unchanged
// (leverage is disallowed).
func (l *Ledger) Apply(side types.Side, size int64, price, commission decimal.Decimal) (decimal.Decimal, error) {
	notional := price.Mul(decimal.NewFromInt(size))

	if side == types.Bid {
		cost := notional.Add(commission)
		if cost.GreaterThan(l.cash) {
			return decimal.Zero, fmt.Errorf("%w: cost %s exceeds cash %s",
				types.ErrInsufficientLiquidity, cost, l.cash)
		}
		l.cash = l.cash.Sub(cost)
	} else {
		l.cash = l.cash.Add(notional).Sub(commission)
	}

	realized := l.close(side, size, price)
	l.realized = l.realized.Add(realized)
	return realized, nil
}

// close consumes opposing open lots FIFO and pushes any remainder as a
// new open lot in the fill's direction.
func (l *Ledger) close(side types.Side, size int64, price decimal.Decimal) decimal.Decimal {
	dir := side.Sign() // +1 buy, -1 sell
	realized := decimal.Zero

	remaining := size
	for remaining > 0 && l.position*dir < 0 {
		entry := &l.open[0]
		closed := min(remaining, entry.size)

		// Long close: exit - entry. Short close: entry - exit.
		perUnit := price.Sub(entry.price)
		if dir > 0 {
			perUnit = entry.price.Sub(price)
		}
		pnl := perUnit.Mul(decimal.NewFromInt(closed))
		realized = realized.Add(pnl)

		l.closedLots += closed
		if pnl.IsPositive() {
			l.winningLots += closed
			l.grossGain = l.grossGain.Add(pnl)
		} else {
			l.grossLoss = l.grossLoss.Add(pnl.Neg())
		}

		entry.size -= closed
		remaining -= closed
		l.position += dir * closed
		if entry.size == 0 {
			l.open = l.open[1:]
		}
	}

	if remaining > 0 {
		l.open = append(l.open, lot{price: price, size: remaining})
		l.position += dir * remaining
	}
	return realized
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	return l.cash
}

// Position returns the signed position in lots.
func (l *Ledger) Position() int64 {
	return l.position
}

// Realized returns the cumulative realized P&L.
func (l *Ledger) Realized() decimal.Decimal {
	return l.realized
}

// OpenCost returns the total entry cost of the open lot stack, signed
// with the position direction.
func (l *Ledger) OpenCost() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.open {
		total = total.Add(e.price.Mul(decimal.NewFromInt(e.size)))
	}
	if l.position < 0 {
		return total.Neg()
	}
	return total
}

// Equity marks the position at the given price and returns cash plus
// position value as a float for the equity curve.
func (l *Ledger) Equity(mark float64) float64 {
	return l.cash.InexactFloat64() + float64(l.position)*mark
}

// WinRate returns closed winning lots over total closed lots, or 0 when
// nothing has closed.
func (l *Ledger) WinRate() float64 {
	if l.closedLots == 0 {
		return 0
	}
	return float64(l.winningLots) / float64(l.closedLots)
}

// ProfitFactor returns gross gains over gross losses. With zero losses
// it returns the gross gains directly rather than +Inf.
func (l *Ledger) ProfitFactor() float64 {
	gain := l.grossGain.InexactFloat64()
	loss := l.grossLoss.InexactFloat64()
	if loss == 0 {
		if gain == 0 {
			return 0
		}
		return gain
	}
	return gain / loss
}
