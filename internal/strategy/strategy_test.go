package strategy

import (
	"math"
	"math/rand"
	"testing"

	"mmsim/pkg/types"
)

func testParams() types.ParamBundle {
	return types.ParamBundle{
		MaxInventory:      5,
		EntryThresholdBps: 10,
		ProcessNoise:      0.01,
		MeasurementNoise:  0.5,
		Lookback:          60,
	}
}

// warm returns a strategy whose buffer is filled with flat closes at the
// given price, so the filter has converged there with zero velocity.
func warm(t *testing.T, price float64) *MarketMaker {
	t.Helper()
	m := New(testParams())
	for i := 0; i < RingCapacity+5; i++ {
		m.GenerateSignal(price, 0)
	}
	return m
}

func TestHoldUntilBufferFilled(t *testing.T) {
	t.Parallel()
	m := New(testParams())

	for i := 0; i < RingCapacity-1; i++ {
		if got := m.GenerateSignal(100+float64(i), 0); got != types.Hold {
			t.Fatalf("signal %d = %v, want HOLD during warmup", i, got)
		}
	}
}

func TestEKFConvergence(t *testing.T) {
	t.Parallel()
	m := warm(t, 100.0)

	if got := math.Abs(m.EKFPrice() - 100.0); got >= 0.1 {
		t.Errorf("|price_est - 100| = %v, want < 0.1", got)
	}
	if got := math.Abs(m.EKFVelocity()); got >= 0.01 {
		t.Errorf("|velocity_est| = %v, want ~0", got)
	}
}

func TestSignals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		close float64
		want  types.Signal
	}{
		{"undervalued", 99.85, types.Buy},  // -15 bps vs 10 bps threshold
		{"overvalued", 100.15, types.Sell}, // +15 bps
		{"inside band", 100.05, types.Hold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := warm(t, 100.0)
			if got := m.GenerateSignal(tt.close, 0); got != tt.want {
				t.Errorf("GenerateSignal(%v, 0) = %v, want %v", tt.close, got, tt.want)
			}
		})
	}
}

func TestInventorySkew(t *testing.T) {
	t.Parallel()

	// Long 3 lots: adjustment = +15 bps, buy trigger moves to dev < +5.
	m := warm(t, 100.0)
	if got := m.GenerateSignal(99.80, 3); got != types.Buy {
		t.Errorf("GenerateSignal(99.80, +3) = %v, want BUY", got)
	}

	// At the inventory cap every signal collapses to Hold.
	m = warm(t, 100.0)
	if got := m.GenerateSignal(99.0, 5); got != types.Hold {
		t.Errorf("GenerateSignal(99.0, +5) = %v, want HOLD at max inventory", got)
	}
	m = warm(t, 100.0)
	if got := m.GenerateSignal(101.0, -5); got != types.Hold {
		t.Errorf("GenerateSignal(101.0, -5) = %v, want HOLD at max inventory", got)
	}
}

// TestPurity replays the same observation sequence from reset and expects
// an identical signal sequence.
func TestPurity(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	obs := make([]float64, 500)
	for i := range obs {
		obs[i] = 100 * (1 + 0.002*rng.NormFloat64())
	}

	run := func() []types.Signal {
		m := New(testParams())
		out := make([]types.Signal, len(obs))
		for i, o := range obs {
			out[i] = m.GenerateSignal(o, 0)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("signal sequence diverges at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// TestEKFStability drives the filter with bounded noisy observations and
// checks the covariance invariants hold throughout.
func TestEKFStability(t *testing.T) {
	t.Parallel()

	m := New(testParams())
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 5000; i++ {
		m.GenerateSignal(100+10*rng.Float64(), 0)

		f := &m.filter
		if !f.initialized {
			continue
		}
		if f.pVar <= 0 || f.vVar <= 0 ||
			math.IsNaN(f.pVar) || math.IsInf(f.pVar, 0) ||
			math.IsNaN(f.vVar) || math.IsInf(f.vVar, 0) {
			t.Fatalf("covariance invariant broken at %d: pVar=%v vVar=%v", i, f.pVar, f.vVar)
		}
	}
	if m.Resets() != 0 {
		t.Errorf("Resets() = %d, want 0 for bounded input", m.Resets())
	}
}

func TestInternalResetOnNonFinite(t *testing.T) {
	t.Parallel()

	m := warm(t, 100.0)
	if got := m.GenerateSignal(math.Inf(1), 0); got != types.Hold {
		t.Errorf("signal on Inf observation = %v, want HOLD", got)
	}
	if m.Resets() != 1 {
		t.Errorf("Resets() = %d, want 1", m.Resets())
	}

	// The strategy keeps working after the automatic reset.
	for i := 0; i < RingCapacity+5; i++ {
		m.GenerateSignal(100.0, 0)
	}
	if got := m.GenerateSignal(99.85, 0); got != types.Buy {
		t.Errorf("signal after recovery = %v, want BUY", got)
	}
}

func TestLookbackClamp(t *testing.T) {
	t.Parallel()

	p := testParams()
	p.Lookback = 200
	m := New(p)
	if got := m.Params().Lookback; got != RingCapacity {
		t.Errorf("Lookback = %d, want clamped to %d", got, RingCapacity)
	}
}

func TestZeroAllocationHotPath(t *testing.T) {
	m := warm(t, 100.0)

	allocs := testing.AllocsPerRun(1000, func() {
		m.GenerateSignal(100.02, 1)
	})
	if allocs != 0 {
		t.Errorf("GenerateSignal allocates %v per call, want 0", allocs)
	}
}

func BenchmarkGenerateSignal(b *testing.B) {
	m := New(testParams())
	for i := 0; i < RingCapacity+5; i++ {
		m.GenerateSignal(100.0, 0)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.GenerateSignal(100.01, 1)
	}
}
