package session

import (
	"errors"
	"math"
	"testing"

	"mmsim/pkg/types"
)

func twoSided() marketState {
	return marketState{
		bestBid: 99.9, hasBid: true,
		bestAsk: 100.1, hasAsk: true,
		lastClose:    100.0,
		recentVolume: 400,
	}
}

func TestNaiveFillsAtLastClose(t *testing.T) {
	t.Parallel()
	cfg := ExecConfig{Model: Naive, SlippageBps: 50, ImpactFactor: 1}

	price, err := cfg.fillPrice(types.Bid, 10, twoSided())
	if err != nil {
		t.Fatalf("fillPrice: %v", err)
	}
	if price != 100.0 {
		t.Errorf("price = %v, want last close 100.0", price)
	}

	if _, err := cfg.fillPrice(types.Bid, 1, marketState{}); !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Errorf("err = %v, want ErrInsufficientLiquidity with no close", err)
	}
}

func TestRealisticFillAddsSlippageAndImpact(t *testing.T) {
	t.Parallel()
	cfg := ExecConfig{Model: Realistic, SlippageBps: 5, ImpactFactor: 0.01}
	mkt := twoSided()

	buy, err := cfg.fillPrice(types.Bid, 4, mkt)
	if err != nil {
		t.Fatalf("fillPrice: %v", err)
	}
	wantBuy := 100.1 * (1 + 5.0/1e4 + 0.01*math.Sqrt(4.0/400.0))
	if math.Abs(buy-wantBuy) > 1e-12 {
		t.Errorf("buy price = %v, want %v", buy, wantBuy)
	}

	sell, err := cfg.fillPrice(types.Ask, 4, mkt)
	if err != nil {
		t.Fatalf("fillPrice: %v", err)
	}
	wantSell := 99.9 * (1 - 5.0/1e4 - 0.01*math.Sqrt(4.0/400.0))
	if math.Abs(sell-wantSell) > 1e-12 {
		t.Errorf("sell price = %v, want %v", sell, wantSell)
	}

	if buy <= mkt.bestAsk {
		t.Errorf("buy fill %v not worse than touch %v", buy, mkt.bestAsk)
	}
	if sell >= mkt.bestBid {
		t.Errorf("sell fill %v not worse than touch %v", sell, mkt.bestBid)
	}
}

func TestConservativeDoublesCosts(t *testing.T) {
	t.Parallel()
	mkt := twoSided()
	realistic := ExecConfig{Model: Realistic, SlippageBps: 5, ImpactFactor: 0.01}
	conservative := ExecConfig{Model: Conservative, SlippageBps: 5, ImpactFactor: 0.01}

	r, _ := realistic.fillPrice(types.Bid, 4, mkt)
	c, _ := conservative.fillPrice(types.Bid, 4, mkt)

	wantExtra := 2 * (r - mkt.bestAsk)
	if math.Abs((c-mkt.bestAsk)-wantExtra) > 1e-12 {
		t.Errorf("conservative cost = %v, want doubled %v", c-mkt.bestAsk, wantExtra)
	}
}

func TestFillRequiresOppositeTouch(t *testing.T) {
	t.Parallel()
	cfg := ExecConfig{Model: Realistic}

	onlyBid := marketState{bestBid: 99.9, hasBid: true, lastClose: 100}
	if _, err := cfg.fillPrice(types.Bid, 1, onlyBid); !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Errorf("buy into empty ask side: err = %v, want ErrInsufficientLiquidity", err)
	}
	if _, err := cfg.fillPrice(types.Ask, 1, onlyBid); err != nil {
		t.Errorf("sell into present bid side: err = %v, want nil", err)
	}
}

func TestParseExecModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ExecModel
		wantErr bool
	}{
		{"naive", Naive, false},
		{"realistic", Realistic, false},
		{"conservative", Conservative, false},
		{"", Realistic, false},
		{"bogus", Realistic, true},
	}
	for _, tt := range tests {
		got, err := ParseExecModel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseExecModel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
