package sim

import (
	"log/slog"
	"math/rand"

	"mmsim/internal/book"
	"mmsim/pkg/types"
)

// Config holds the simulator parameters.
type Config struct {
	Participants int     // roster size, DefaultPopulation if zero
	Seed         int64   // master seed for fair value and roster
	TickValue    float64 // price per tick, e.g. 0.01
	InitialFair  float64 // starting fair value in price units
	SigmaFvBps   float64 // fair-value perturbation std dev, bps of F
	BarWindow    int     // ticks per bar, 1 if zero
}

// Simulator advances discrete market ticks against an owned order book.
type Simulator struct {
	cfg    Config
	book   *book.OrderBook
	roster []*Participant

	// owner maps live order ids to the submitting participant so fills
	// can be attributed back to inventories. Pruned as orders die.
	owner map[uint64]*Participant

	fair      float64 // fair value in fractional ticks
	tick      int64
	rng       *rand.Rand // fair-value noise, independent of participants
	bar       barAccum
	prevClose int64
	dropped   uint64

	logger *slog.Logger
}

type barAccum struct {
	open, high, low, close int64
	volume                 int64
	hasTrade               bool
}

// New constructs a simulator with a fresh book and roster. The same
// (cfg, seed) always produces an identical event sequence.
func New(cfg Config, logger *slog.Logger) *Simulator {
	if cfg.BarWindow <= 0 {
		cfg.BarWindow = 1
	}
	if cfg.TickValue <= 0 {
		cfg.TickValue = 0.01
	}

	fair := cfg.InitialFair / cfg.TickValue
	return &Simulator{
		cfg:       cfg,
		book:      book.New(),
		roster:    NewRoster(cfg.Participants, cfg.Seed),
		owner:     make(map[uint64]*Participant),
		fair:      fair,
		rng:       rand.New(rand.NewSource(cfg.Seed ^ 0x5f3759df)),
		prevClose: int64(fair),
		logger:    logger.With("component", "sim"),
	}
}

// Book exposes the owned order book for read-side queries.
func (s *Simulator) Book() *book.OrderBook {
	return s.book
}

// Tick returns the current tick index.
func (s *Simulator) Tick() int64 {
	return s.tick
}

// TickValue returns the price-per-tick conversion factor.
func (s *Simulator) TickValue() float64 {
	return s.cfg.TickValue
}

// Fair returns the current fair value in price units.
func (s *Simulator) Fair() float64 {
	return s.fair * s.cfg.TickValue
}

// DroppedIntents returns how many participant intents were rejected by
// the book and silently discarded.
func (s *Simulator) DroppedIntents() uint64 {
	return s.dropped
}

// Step advances one tick: perturb fair value, poll participants, submit
// intents, accumulate trades into the current bar. Returns the closed bar
// and true when the bar window completed this tick.
func (s *Simulator) Step() (types.Bar, bool) {
	s.tick++

	// 1. Fair value random walk, sigma expressed in bps of F.
	s.fair += s.rng.NormFloat64() * s.fair * s.cfg.SigmaFvBps / 1e4

	// 2-3. Poll the roster in deterministic order and submit in arrival
	// order; matching runs synchronously inside Submit.
	v := s.view()
	tradesBefore := len(s.book.Trades())
	for _, p := range s.roster {
		for _, intent := range p.Decide(v) {
			s.apply(p, intent)
		}
	}

	// 4. Fold this tick's trades into the bar.
	for _, tr := range s.book.Trades()[tradesBefore:] {
		s.bar.addTrade(tr)
	}

	// 5. Close the bar every BarWindow ticks.
	if s.tick%int64(s.cfg.BarWindow) != 0 {
		return types.Bar{}, false
	}
	return s.closeBar(), true
}

func (s *Simulator) apply(p *Participant, intent Intent) {
	if intent.Cancel {
		if s.book.Cancel(intent.CancelID) {
			delete(s.owner, intent.CancelID)
		}
		return
	}

	id, trades, err := s.book.Submit(intent.Side, intent.Kind, intent.Price, intent.Size)
	if err != nil {
		// A bad intent is dropped; the participant is not notified.
		s.dropped++
		return
	}

	// Attribute fills: the taker is p, each maker is looked up by id.
	for _, tr := range trades {
		p.onFill(intent.Side.Sign() * tr.Size)
		if maker, ok := s.owner[tr.MakerID]; ok {
			maker.onFill(-intent.Side.Sign() * tr.Size)
			if !s.book.IsLive(tr.MakerID) {
				delete(s.owner, tr.MakerID)
			}
		}
	}

	if intent.Kind == types.Limit && s.book.IsLive(id) {
		s.owner[id] = p
		p.noteResting(id)
	}
}

func (s *Simulator) view() View {
	v := View{
		Tick: s.tick,
		Fair: s.fair,
	}
	if bid, ok := s.book.BestBid(); ok {
		v.BestBid, v.HasBid = bid, true
	}
	if ask, ok := s.book.BestAsk(); ok {
		v.BestAsk, v.HasAsk = ask, true
	}
	if v.HasBid && v.HasAsk {
		v.Mid = float64(v.BestBid+v.BestAsk) / 2
	}
	if last, ok := s.book.LastTrade(); ok {
		v.Last = last.Price
	}
	return v
}

func (a *barAccum) addTrade(tr types.Trade) {
	if !a.hasTrade {
		a.open, a.high, a.low = tr.Price, tr.Price, tr.Price
		a.hasTrade = true
	}
	if tr.Price > a.high {
		a.high = tr.Price
	}
	if tr.Price < a.low {
		a.low = tr.Price
	}
	a.close = tr.Price
	a.volume += tr.Size
}

// closeBar emits the finished bar and starts the next one. A windowless
// bar carries the prior close through all four prices.
func (s *Simulator) closeBar() types.Bar {
	bar := types.Bar{Tick: s.tick}
	if s.bar.hasTrade {
		bar.Open = s.bar.open
		bar.High = s.bar.high
		bar.Low = s.bar.low
		bar.Close = s.bar.close
		bar.Volume = s.bar.volume
		s.prevClose = bar.Close
	} else {
		bar.Open, bar.High, bar.Low, bar.Close = s.prevClose, s.prevClose, s.prevClose, s.prevClose
	}
	s.bar = barAccum{}
	return bar
}
