// Package strategy implements the fast market-making signal generator.
//
// The strategy consumes one close price per tick and emits Buy, Sell, or
// Hold. Internally it keeps a fixed-capacity ring buffer of recent closes
// and a two-state Kalman filter with diagonal covariance tracking the fair
// price and its per-tick velocity.
//
// Per-tick flow (GenerateSignal):
//  1. Push the close into the ring buffer; Hold until the warmup fills.
//  2. Predict and update the filter with the close and observed velocity.
//  3. Compute the deviation of the close from the filter's predicted
//     (pre-update) price in bps.
//  4. Shift both entry thresholds by current inventory (5 bps per lot):
//     up when long, down when short.
//  5. Decide with Hold checked first; the common case exits early.
//
// The whole path is scalar arithmetic over flat struct fields: no heap
// allocation after construction.
package strategy

import "mmsim/pkg/types"

// inventorySkewBps shifts both entry thresholds per lot of position: a
// long position raises them (buys trigger sooner, sells later), a short
// position lowers them.
const inventorySkewBps = 5.0

// MarketMaker is the EKF-driven signal generator. Not concurrency-safe;
// a session owns exactly one instance and drives it from its tick path.
type MarketMaker struct {
	params types.ParamBundle
	warmup int // effective lookback, clamped to RingCapacity

	filter ekf
	prices ring

	lastClose float64
	resets    uint64 // internal resets after a non-finite filter state
}

// New creates a strategy with the given (already validated) parameters.
func New(params types.ParamBundle) *MarketMaker {
	m := &MarketMaker{}
	m.SetParams(params)
	return m
}

// SetParams installs a new parameter bundle. A lookback beyond the
// compile-time ring capacity is clamped to RingCapacity. Filter noise
// changes apply to subsequent updates; state is retained.
func (m *MarketMaker) SetParams(params types.ParamBundle) {
	if params.Lookback > RingCapacity {
		params.Lookback = RingCapacity
	}
	m.params = params
	m.warmup = params.Lookback
	m.filter.configure(params.ProcessNoise, params.MeasurementNoise)
}

// Params returns the currently installed bundle (after clamping).
func (m *MarketMaker) Params() types.ParamBundle {
	return m.params
}

// GenerateSignal consumes one close observation and the session's current
// position, returning the trading signal for this tick.
func (m *MarketMaker) GenerateSignal(close float64, position int64) types.Signal {
	m.prices.push(close)

	if !m.filter.initialized {
		m.filter.init(close)
		m.lastClose = close
		return types.Hold
	}

	if m.prices.count() < m.warmup {
		m.lastClose = close
		return types.Hold
	}

	obsVelocity := close - m.lastClose
	m.lastClose = close

	predicted, ok := m.filter.step(close, obsVelocity)
	if !ok {
		// Corrupted filter state: clear and re-seed, keep trading.
		m.internalReset()
		return types.Hold
	}

	// Deviation is the innovation against the predicted estimate: how far
	// the print sits from where the filter expected it.
	deviationBps := (close - predicted) / predicted * 1e4
	adjustment := float64(position) * inventorySkewBps

	// Hold-first ordering: a position at the inventory cap returns
	// without reaching the entry comparisons.
	if position >= m.params.MaxInventory || -position >= m.params.MaxInventory {
		return types.Hold
	}
	if deviationBps < -m.params.EntryThresholdBps+adjustment {
		return types.Buy
	}
	if deviationBps > m.params.EntryThresholdBps+adjustment {
		return types.Sell
	}
	return types.Hold
}

// Reset clears all state: ring buffer, filter, and velocity anchor. The
// installed parameters are kept.
func (m *MarketMaker) Reset() {
	m.prices.reset()
	m.filter.initialized = false
	m.lastClose = 0
}

// internalReset is the automatic recovery path for a non-finite filter
// state. It differs from Reset only in bumping the diagnostic counter.
func (m *MarketMaker) internalReset() {
	m.Reset()
	m.resets++
}

// EKFPrice returns the filtered price estimate.
func (m *MarketMaker) EKFPrice() float64 {
	return m.filter.price
}

// EKFVelocity returns the filtered per-tick velocity estimate.
func (m *MarketMaker) EKFVelocity() float64 {
	return m.filter.velocity
}

// Resets returns how many internal filter resets have occurred.
func (m *MarketMaker) Resets() uint64 {
	return m.resets
}
