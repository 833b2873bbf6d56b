package risk

import "testing"

func TestGuardDisabledByZeroLimits(t *testing.T) {
	t.Parallel()
	g := NewGuard(Limits{}, 10000)

	if _, tripped := g.Check(1, 0.99); tripped {
		t.Errorf("zero limits tripped the guard")
	}
}

func TestGuardDrawdownLimit(t *testing.T) {
	t.Parallel()
	g := NewGuard(Limits{MaxDrawdownPct: 0.25}, 10000)

	if _, tripped := g.Check(9000, 0.10); tripped {
		t.Fatalf("tripped below the limit")
	}
	reason, tripped := g.Check(7000, 0.30)
	if !tripped || reason == "" {
		t.Fatalf("Check(dd=0.30) = (%q, %v), want trip", reason, tripped)
	}

	// A tripped guard fires only once.
	if _, again := g.Check(6000, 0.40); again {
		t.Errorf("guard fired twice")
	}
	if !g.Tripped() {
		t.Errorf("Tripped() = false after breach")
	}
}

func TestGuardLossFloor(t *testing.T) {
	t.Parallel()
	g := NewGuard(Limits{MaxLossPct: 0.10}, 10000)

	if _, tripped := g.Check(9500, 0.05); tripped {
		t.Fatalf("tripped above the floor")
	}
	if _, tripped := g.Check(8999, 0.11); !tripped {
		t.Fatalf("did not trip below the floor")
	}
}
