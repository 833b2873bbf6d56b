package sim

import (
	"testing"

	"mmsim/pkg/types"
)

func testView() View {
	return View{
		Tick:    10,
		BestBid: 9998, HasBid: true,
		BestAsk: 10002, HasAsk: true,
		Mid:  10000,
		Last: 10000,
		Fair: 10000,
	}
}

func TestMarketMakerQuotesBothSides(t *testing.T) {
	t.Parallel()
	p := newParticipant(MarketMaker, 1)

	intents := p.Decide(testView())
	var bids, asks int
	for _, in := range intents {
		if in.Cancel {
			continue
		}
		if in.Side == types.Bid {
			bids++
		} else {
			asks++
		}
		if in.Kind != types.Limit {
			t.Errorf("market maker submitted %v, want limit", in.Kind)
		}
	}
	if bids != 1 || asks != 1 {
		t.Errorf("quotes = %d bids, %d asks, want 1 and 1", bids, asks)
	}
}

func TestMarketMakerRefreshCancelsOldQuotes(t *testing.T) {
	t.Parallel()
	p := newParticipant(MarketMaker, 1)

	p.Decide(testView())
	p.noteResting(101)
	p.noteResting(102)

	intents := p.Decide(testView())
	cancels := 0
	for _, in := range intents {
		if in.Cancel {
			cancels++
		}
	}
	if cancels != 2 {
		t.Errorf("cancels = %d, want 2 (full re-quote each tick)", cancels)
	}
}

func TestHFTPullsQuotesWhenMidMoves(t *testing.T) {
	t.Parallel()
	p := newParticipant(HFT, 3)

	// Establish quotes at mid 10000.
	first := p.Decide(testView())
	if len(first) != 2 {
		t.Fatalf("initial quote count = %d, want 2", len(first))
	}
	p.noteResting(7)
	p.noteResting(8)

	// Mid jumps far beyond any epsilon draw (1..3 ticks).
	moved := testView()
	moved.BestBid, moved.BestAsk = 10048, 10052
	moved.Mid = 10050

	intents := p.Decide(moved)
	cancels := 0
	for _, in := range intents {
		if in.Cancel {
			cancels++
		}
	}
	if cancels != 2 {
		t.Errorf("cancels after mid move = %d, want 2", cancels)
	}
}

func TestArbitrageurTradesOnMispricing(t *testing.T) {
	t.Parallel()
	p := newParticipant(Arbitrageur, 5)
	p.activity = 1 // force the decision path
	p.fairBias = 1 // pin the private estimate for a deterministic check
	p.thetaBps = 50

	// Mid 100 bps above the private fair estimate: sell into the bid.
	rich := testView()
	rich.Fair = 9900
	intents := p.Decide(rich)
	if len(intents) != 1 || intents[0].Side != types.Ask {
		t.Fatalf("rich market intents = %+v, want single sell", intents)
	}
	if intents[0].Price != rich.BestBid {
		t.Errorf("sell price = %d, want marketable at bid %d", intents[0].Price, rich.BestBid)
	}

	// Fairly priced: no trade.
	if intents := p.Decide(testView()); len(intents) != 0 {
		t.Errorf("fair market intents = %+v, want none", intents)
	}
}

func TestMomentumFollowsReturnSign(t *testing.T) {
	t.Parallel()
	p := newParticipant(Momentum, 9)
	p.activity = 1

	// Rising mids fill the window, then the next decision buys.
	v := testView()
	for i := 0; i < len(p.mids); i++ {
		v.Mid = 10000 + 10*float64(i)
		v.BestBid, v.BestAsk = int64(v.Mid)-2, int64(v.Mid)+2
		p.Decide(v)
	}

	v.Mid += 10
	intents := p.Decide(v)
	if len(intents) != 1 || intents[0].Side != types.Bid || intents[0].Kind != types.Market {
		t.Errorf("intents in uptrend = %+v, want single market buy", intents)
	}
}

func TestWhaleOrdersAreLargeAndAggressive(t *testing.T) {
	t.Parallel()
	p := newParticipant(Whale, 11)
	p.activity = 1

	intents := p.Decide(testView())
	if len(intents) != 1 {
		t.Fatalf("intents = %+v, want exactly one", intents)
	}
	if intents[0].Kind != types.Market || intents[0].Size < 50 {
		t.Errorf("whale order = %+v, want market order of at least 50 lots", intents[0])
	}
}

func TestRetailRestingCap(t *testing.T) {
	t.Parallel()
	p := newParticipant(Retail, 13)
	p.activity = 1
	p.aggression = 0 // force limit orders

	for id := uint64(1); id <= maxResting; id++ {
		p.noteResting(id)
	}

	intents := p.Decide(testView())
	if len(intents) == 0 {
		t.Fatalf("no intents from forced retail decision")
	}
	if !intents[0].Cancel || intents[0].CancelID != 1 {
		t.Errorf("first intent = %+v, want cancel of oldest resting order", intents[0])
	}
}
