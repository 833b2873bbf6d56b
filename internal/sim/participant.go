// Package sim generates synthetic market activity against an owned order
// book.
//
// A Simulator advances discrete ticks. Each tick it perturbs a public fair
// value, polls a fixed roster of participants in deterministic order,
// submits their order intents, and accumulates trades into OHLCV bars.
// All randomness flows from per-participant generators seeded off one
// master seed, so a run is bit-identical given the same seed, parameters,
// and tick count.
//
// Participants are a tagged variant dispatched by a single switch per
// tick rather than an interface, keeping the poll loop branch-predictable.
package sim

import (
	"math"
	"math/rand"

	"mmsim/pkg/types"
)

// Behavior tags the trading style of a participant.
type Behavior int8

const (
	Retail Behavior = iota
	Institutional
	HFT
	MarketMaker
	Whale
	Momentum
	Arbitrageur
)

func (b Behavior) String() string {
	switch b {
	case Retail:
		return "retail"
	case Institutional:
		return "institutional"
	case HFT:
		return "hft"
	case MarketMaker:
		return "market_maker"
	case Whale:
		return "whale"
	case Momentum:
		return "momentum"
	case Arbitrageur:
		return "arbitrageur"
	default:
		return "unknown"
	}
}

// Intent is a single order action a participant wants this tick: either a
// cancel of one of its resting orders or a new order.
type Intent struct {
	Cancel   bool
	CancelID uint64

	Side  types.Side
	Kind  types.OrderKind
	Price int64
	Size  int64
}

// View is the public book snapshot handed to each participant when polled.
type View struct {
	Tick    int64
	BestBid int64
	BestAsk int64
	HasBid  bool
	HasAsk  bool
	Mid     float64 // fractional ticks; valid only when HasBid && HasAsk
	Last    int64   // last trade price; 0 until the first trade
	Fair    float64 // public fair value in fractional ticks
}

// mid falls back to fair value when one side of the book is empty, so
// participants can keep quoting through a thin book.
func (v View) mid() float64 {
	if v.HasBid && v.HasAsk {
		return v.Mid
	}
	return v.Fair
}

// Participant is one synthetic trader. All state outside the RNG is small
// internal memory: recent mids, an inventory estimate maintained by the
// simulator, and the ids of its resting orders.
type Participant struct {
	Behavior Behavior

	rng *rand.Rand

	// Behavior-specific knobs, drawn once at construction.
	activity   float64 // probability of acting on a given tick
	aggression float64 // behavior-dependent meaning (see Decide)
	sizeBase   int64
	invLimit   int64
	epsTicks   int64   // HFT re-quote threshold
	thetaBps   float64 // Arbitrageur mispricing threshold
	fairBias   float64 // Arbitrageur private fair-value multiplier
	windowLen  int     // Momentum return lookback

	inventory int64 // net filled lots, attributed by the simulator

	// Small rolling memory of recent mids (Momentum, HFT).
	mids    [8]float64
	midN    int
	lastMid float64

	active []uint64 // resting order ids, oldest first
}

// maxResting caps how many resting orders a participant keeps alive;
// beyond it, the oldest is canceled before placing new ones.
const maxResting = 4

// newParticipant draws behavior parameters from the participant's own RNG
// so the roster is reproducible from the master seed alone.
func newParticipant(b Behavior, seed int64) *Participant {
	rng := rand.New(rand.NewSource(seed))
	p := &Participant{Behavior: b, rng: rng}

	switch b {
	case Retail:
		p.activity = 0.02
		p.aggression = 0.1 + 0.4*rng.Float64() // probability of a market order
		p.sizeBase = 1 + rng.Int63n(3)
	case Institutional:
		p.activity = 0.01
		p.aggression = 0.05 // rarely crosses
		p.sizeBase = 10 + rng.Int63n(30)
		p.invLimit = 200
	case HFT:
		p.activity = 1.0
		p.sizeBase = 1 + rng.Int63n(2)
		p.epsTicks = 1 + rng.Int63n(3)
	case MarketMaker:
		p.activity = 1.0
		p.sizeBase = 5 + rng.Int63n(6)
		p.invLimit = 30 + rng.Int63n(40)
	case Whale:
		p.activity = 0.002
		p.sizeBase = 50 + rng.Int63n(100)
	case Momentum:
		p.activity = 0.05
		p.sizeBase = 2 + rng.Int63n(5)
		p.windowLen = 4 + rng.Intn(4)
	case Arbitrageur:
		p.activity = 0.10
		p.sizeBase = 2 + rng.Int63n(4)
		p.thetaBps = 10 + 20*rng.Float64()
		// Private fair-value estimate deviates from the public one by a
		// fixed bias of a few bps.
		p.fairBias = 1 + rng.NormFloat64()*5e-4
	}
	return p
}

// Decide is the single per-tick decision operation. It returns zero or
// more intents; the simulator submits them in order.
func (p *Participant) Decide(v View) []Intent {
	p.observeMid(v)

	if p.activity < 1.0 && p.rng.Float64() >= p.activity {
		return nil
	}

	switch p.Behavior {
	case Retail:
		return p.decideRetail(v)
	case Institutional:
		return p.decideInstitutional(v)
	case HFT:
		return p.decideHFT(v)
	case MarketMaker:
		return p.decideMarketMaker(v)
	case Whale:
		return p.decideWhale(v)
	case Momentum:
		return p.decideMomentum(v)
	case Arbitrageur:
		return p.decideArbitrageur(v)
	}
	return nil
}

func (p *Participant) observeMid(v View) {
	m := v.mid()
	if m <= 0 {
		return
	}
	copy(p.mids[1:], p.mids[:len(p.mids)-1])
	p.mids[0] = m
	if p.midN < len(p.mids) {
		p.midN++
	}
}

// decideRetail places a market order with probability aggression,
// otherwise a limit a uniform 1..4 ticks off mid on a random side.
func (p *Participant) decideRetail(v View) []Intent {
	side := types.Bid
	if p.rng.Intn(2) == 0 {
		side = types.Ask
	}
	size := 1 + p.rng.Int63n(p.sizeBase)

	if p.rng.Float64() < p.aggression {
		return []Intent{{Side: side, Kind: types.Market, Size: size}}
	}

	offset := 1 + p.rng.Int63n(4)
	price := int64(v.mid()) - side.Sign()*offset
	if price <= 0 {
		return nil
	}
	return p.withRestingCap(Intent{Side: side, Kind: types.Limit, Price: price, Size: size})
}

// decideInstitutional works large orders passively: it joins the book at
// or one tick behind the touch, split across two levels, and leans
// against its accumulated inventory.
func (p *Participant) decideInstitutional(v View) []Intent {
	side := types.Bid
	if p.inventory > 0 {
		side = types.Ask // work the position back down
	} else if p.inventory == 0 && p.rng.Intn(2) == 0 {
		side = types.Ask
	}
	if p.invLimit > 0 && side == types.Bid && p.inventory >= p.invLimit {
		return nil
	}

	var touch int64
	switch {
	case side == types.Bid && v.HasBid:
		touch = v.BestBid
	case side == types.Ask && v.HasAsk:
		touch = v.BestAsk
	default:
		touch = int64(v.mid())
	}

	half := max(p.sizeBase/2, 1)
	out := make([]Intent, 0, 2)
	for i := int64(0); i < 2; i++ {
		price := touch - side.Sign()*i
		if price <= 0 {
			continue
		}
		out = append(out, Intent{Side: side, Kind: types.Limit, Price: price, Size: half})
	}
	return p.withRestingCaps(out)
}

// decideHFT keeps tight two-sided quotes around mid (bid one tick below
// the truncated mid, ask two ticks above it) and pulls them whenever the mid has moved more than epsTicks since the last quote.
func (p *Participant) decideHFT(v View) []Intent {
	m := v.mid()
	if m <= 0 {
		return nil
	}

	var out []Intent
	moved := p.lastMid > 0 && math.Abs(m-p.lastMid) > float64(p.epsTicks)
	if moved || len(p.active) >= maxResting {
		for _, id := range p.active {
			out = append(out, Intent{Cancel: true, CancelID: id})
		}
		p.active = p.active[:0]
	}
	if len(p.active) > 0 {
		return out // quotes still in place and mid hasn't moved
	}

	p.lastMid = m
	bid := int64(m) - 1
	ask := int64(m) + 2
	if bid <= 0 {
		return out
	}
	out = append(out,
		Intent{Side: types.Bid, Kind: types.Limit, Price: bid, Size: p.sizeBase},
		Intent{Side: types.Ask, Kind: types.Limit, Price: ask, Size: p.sizeBase},
	)
	return out
}

// decideMarketMaker re-centers a two-sided quote on the public fair value
// every tick, skewed against inventory once it exceeds the limit. This is
// the roster's liquidity anchor: it keeps the book from emptying and ties
// resting depth to F.
func (p *Participant) decideMarketMaker(v View) []Intent {
	out := make([]Intent, 0, len(p.active)+2)
	for _, id := range p.active {
		out = append(out, Intent{Cancel: true, CancelID: id})
	}
	p.active = p.active[:0]

	center := v.Fair
	if p.invLimit > 0 && p.inventory > p.invLimit {
		center -= 1 // lean offers lower to shed length
	} else if p.invLimit > 0 && p.inventory < -p.invLimit {
		center += 1
	}

	halfSpread := int64(2)
	bid := int64(center) - halfSpread
	ask := int64(center) + halfSpread
	if bid <= 0 {
		return out
	}
	out = append(out,
		Intent{Side: types.Bid, Kind: types.Limit, Price: bid, Size: p.sizeBase},
		Intent{Side: types.Ask, Kind: types.Limit, Price: ask, Size: p.sizeBase},
	)
	return out
}

// decideWhale fires a rare oversized market order that sweeps levels.
func (p *Participant) decideWhale(_ View) []Intent {
	side := types.Bid
	if p.rng.Intn(2) == 0 {
		side = types.Ask
	}
	return []Intent{{Side: side, Kind: types.Market, Size: p.sizeBase}}
}

// decideMomentum trades the sign of the return over its lookback window
// with amplified size.
func (p *Participant) decideMomentum(_ View) []Intent {
	if p.midN < p.windowLen {
		return nil
	}
	ret := p.mids[0] - p.mids[p.windowLen-1]
	if ret == 0 {
		return nil
	}

	side := types.Bid
	if ret < 0 {
		side = types.Ask
	}
	amp := 1 + p.rng.Int63n(3)
	return []Intent{{Side: side, Kind: types.Market, Size: p.sizeBase * amp}}
}

// decideArbitrageur submits a marketable order whenever the mid deviates
// from its private fair-value estimate by more than thetaBps.
func (p *Participant) decideArbitrageur(v View) []Intent {
	if !v.HasBid || !v.HasAsk {
		return nil
	}
	private := v.Fair * p.fairBias
	devBps := (v.Mid - private) / private * 1e4

	if devBps > p.thetaBps {
		// Market rich vs fair: sell into the bid.
		return []Intent{{Side: types.Ask, Kind: types.Limit, Price: v.BestBid, Size: p.sizeBase}}
	}
	if devBps < -p.thetaBps {
		return []Intent{{Side: types.Bid, Kind: types.Limit, Price: v.BestAsk, Size: p.sizeBase}}
	}
	return nil
}

// withRestingCap prepends a cancel of the oldest resting order when the
// participant is at its resting-order cap.
func (p *Participant) withRestingCap(in Intent) []Intent {
	return p.withRestingCaps([]Intent{in})
}

func (p *Participant) withRestingCaps(in []Intent) []Intent {
	var out []Intent
	for over := len(p.active) + len(in) - maxResting; over > 0 && len(p.active) > 0; over-- {
		out = append(out, Intent{Cancel: true, CancelID: p.active[0]})
		p.active = p.active[1:]
	}
	return append(out, in...)
}

// noteResting records an accepted resting order id. Called by the
// simulator after submission so cancels reference real ids.
func (p *Participant) noteResting(id uint64) {
	p.active = append(p.active, id)
}

// onFill adjusts the participant's inventory estimate.
func (p *Participant) onFill(delta int64) {
	p.inventory += delta
}
