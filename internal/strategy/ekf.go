package strategy

import "math"

// initialVariance seeds the covariance diagonal at construction and after
// an internal reset. Large relative to any realistic price variance, so
// the first few updates weight observations heavily.
const initialVariance = 100.0

// ekf is a two-state (price, velocity) Kalman filter with a diagonal
// covariance. Treating the price and velocity errors as independent
// collapses the update to scalar operations per state: no matrix algebra
// in the per-tick path.
type ekf struct {
	price    float64
	velocity float64
	pVar     float64 // price error variance
	vVar     float64 // velocity error variance

	qPrice float64 // process noise, price
	qVel   float64 // process noise, velocity
	r      float64 // measurement noise
	dt     float64

	initialized bool
}

// configure installs filter parameters without touching the state.
func (f *ekf) configure(processNoise, measurementNoise float64) {
	f.qPrice = processNoise
	f.qVel = processNoise
	f.r = measurementNoise
	f.dt = 1
}

// init seeds the state from the first observed price.
func (f *ekf) init(price float64) {
	f.price = price
	f.velocity = 0
	f.pVar = initialVariance
	f.vVar = initialVariance
	f.initialized = true
}

// step runs one predict/update cycle against an observed close and the
// observed per-tick velocity. It returns the predicted (pre-update) price
// estimate, which is what the signal deviation is measured against, and
// false when the state went non-finite, signalling the caller to reset.
func (f *ekf) step(obsPrice, obsVelocity float64) (predicted float64, ok bool) {
	// Predict under constant-velocity dynamics.
	f.price += f.velocity * f.dt
	f.pVar += f.vVar*f.dt*f.dt + f.qPrice
	f.vVar += f.qVel
	predicted = f.price

	// Update each state independently: scalar gain, no inversion.
	sp := f.pVar + f.r
	kp := f.pVar / sp
	f.price += kp * (obsPrice - f.price)
	f.pVar *= 1 - kp

	sv := f.vVar + f.r
	kv := f.vVar / sv
	f.velocity += kv * (obsVelocity - f.velocity)
	f.vVar *= 1 - kv

	return predicted, f.finite()
}

// finite checks the positivity and finiteness invariants on the state.
func (f *ekf) finite() bool {
	return !math.IsNaN(f.price) && !math.IsInf(f.price, 0) &&
		!math.IsNaN(f.velocity) && !math.IsInf(f.velocity, 0) &&
		f.pVar > 0 && !math.IsInf(f.pVar, 0) &&
		f.vVar > 0 && !math.IsInf(f.vVar, 0)
}
