package types

import (
	"encoding/json"
	"testing"
)

func TestSideJSONRoundTrip(t *testing.T) {
	t.Parallel()

	for _, side := range []Side{Bid, Ask} {
		data, err := json.Marshal(side)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", side, err)
		}
		var back Side
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if back != side {
			t.Errorf("round trip %v -> %s -> %v", side, data, back)
		}
	}

	var bad Side
	if err := json.Unmarshal([]byte(`"SIDEWAYS"`), &bad); err == nil {
		t.Errorf("Unmarshal of unknown side succeeded")
	}
}

func TestTicksFromPriceHalfToEven(t *testing.T) {
	t.Parallel()

	tests := []struct {
		price float64
		want  int64
	}{
		{100.00, 10000},
		{100.005, 10000}, // half rounds to even neighbor
		{100.015, 10002},
		{100.02, 10002},
		{99.994, 9999},
	}
	for _, tt := range tests {
		if got := TicksFromPrice(tt.price, 0.01); got != tt.want {
			t.Errorf("TicksFromPrice(%v) = %d, want %d", tt.price, got, tt.want)
		}
	}
}

func TestParamBundleValidate(t *testing.T) {
	t.Parallel()

	valid := ParamBundle{
		MaxInventory:      5,
		EntryThresholdBps: 10,
		ProcessNoise:      0.01,
		MeasurementNoise:  0.5,
		Lookback:          60,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*ParamBundle)
	}{
		{"inventory too high", func(p *ParamBundle) { p.MaxInventory = 11 }},
		{"inventory zero", func(p *ParamBundle) { p.MaxInventory = 0 }},
		{"threshold too low", func(p *ParamBundle) { p.EntryThresholdBps = 4 }},
		{"process noise too high", func(p *ParamBundle) { p.ProcessNoise = 0.5 }},
		{"measurement noise too low", func(p *ParamBundle) { p.MeasurementNoise = 0.01 }},
		{"lookback too long", func(p *ParamBundle) { p.Lookback = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}
