// Package risk enforces per-session loss limits.
//
// A Guard watches the equity stream a session produces and trips once a
// configured drawdown or absolute-loss limit is breached. The session
// driver checks the guard after every equity update and stops the session
// when it trips; a tripped guard stays tripped until the session resets.
package risk

import "fmt"

// Limits configures the guard. Zero values disable the respective check.
type Limits struct {
	MaxDrawdownPct float64 `mapstructure:"max_drawdown_pct"` // e.g. 0.25 stops at 25% drawdown
	MaxLossPct     float64 `mapstructure:"max_loss_pct"`     // stop when equity <= (1-pct) * initial
}

// Guard is the per-session kill switch. Not concurrency-safe; it lives
// inside a session and is only touched from the tick path.
type Guard struct {
	limits  Limits
	initial float64
	tripped string // non-empty once breached
}

// NewGuard creates a guard for a session starting at the given equity.
func NewGuard(limits Limits, initialEquity float64) *Guard {
	return &Guard{limits: limits, initial: initialEquity}
}

// Check evaluates the limits against the latest equity and drawdown.
// It returns the breach reason and true the first time a limit trips.
func (g *Guard) Check(equity, drawdown float64) (string, bool) {
	if g.tripped != "" {
		return g.tripped, false
	}

	if g.limits.MaxDrawdownPct > 0 && drawdown >= g.limits.MaxDrawdownPct {
		g.tripped = fmt.Sprintf("drawdown %.2f%% breached limit %.2f%%",
			drawdown*100, g.limits.MaxDrawdownPct*100)
		return g.tripped, true
	}
	if g.limits.MaxLossPct > 0 && g.initial > 0 {
		floor := g.initial * (1 - g.limits.MaxLossPct)
		if equity <= floor {
			g.tripped = fmt.Sprintf("equity %.2f fell through loss floor %.2f", equity, floor)
			return g.tripped, true
		}
	}
	return "", false
}

// Tripped reports whether the guard has fired.
func (g *Guard) Tripped() bool {
	return g.tripped != ""
}
