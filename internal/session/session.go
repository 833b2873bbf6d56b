package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mmsim/internal/metrics"
	"mmsim/internal/risk"
	"mmsim/internal/sim"
	"mmsim/internal/strategy"
	"mmsim/pkg/types"
)

// Config carries everything needed to build a session besides the
// per-session parameter bundle, capital, and seed.
type Config struct {
	Sim          sim.Config
	Exec         ExecConfig
	Risk         risk.Limits
	TicksPerYear float64
	RiskFreeRate float64
	RecentTrades int // how many trailing session trades a snapshot carries
	VolumeWindow int // bars of traded volume backing the impact model
}

// Session owns one simulator, one strategy, and the accounting around
// them. All operations go through the mutex; the tick pipeline itself is
// single-threaded.
type Session struct {
	mu sync.Mutex

	id     string
	cfg    Config
	params types.ParamBundle
	// pending is the bundle installed by update_params, applied at the
	// next tick boundary.
	pending *types.ParamBundle

	initialCapital decimal.Decimal
	seed           int64

	market *sim.Simulator
	strat  *strategy.MarketMaker
	ledger *Ledger
	guard  *risk.Guard

	curve      []EquityPoint
	peak       float64
	maxDD      float64
	lastEquity float64

	trades         []types.SessionTrade
	lastManualTick int64

	running   bool
	latencyUs float64
	lastClose float64 // last bar close in price units

	volWindow []int64 // recent bar volumes, oldest first
	volSum    int64

	logger *slog.Logger
	mets   *metrics.Metrics
}

func newSession(id string, cfg Config, params types.ParamBundle, initialCapital float64, seed int64, logger *slog.Logger, mets *metrics.Metrics) *Session {
	s := &Session{
		id:             id,
		cfg:            cfg,
		params:         params,
		initialCapital: decimal.NewFromFloat(initialCapital),
		seed:           seed,
		logger:         logger.With("component", "session", "session", id),
		mets:           mets,
	}
	s.build()
	return s
}

// build constructs the owned components from the stored configuration.
// Called at creation and again on reset.
func (s *Session) build() {
	simCfg := s.cfg.Sim
	simCfg.Seed = s.seed

	s.market = sim.New(simCfg, s.logger)
	s.strat = strategy.New(s.params)
	s.ledger = NewLedger(s.initialCapital)

	initial := s.initialCapital.InexactFloat64()
	s.guard = risk.NewGuard(s.cfg.Risk, initial)
	s.peak = initial
	s.lastEquity = initial
	s.maxDD = 0
	s.curve = nil
	s.trades = nil
	s.pending = nil
	s.lastManualTick = -1
	s.lastClose = 0
	s.volWindow = nil
	s.volSum = 0
	s.latencyUs = 0
	s.running = true
}

// Poll advances one tick when the session is running and returns the
// tick-boundary snapshot.
func (s *Session) Poll() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.advance()
	}
	return s.snapshot()
}

// Snapshot returns the current view without advancing time.
func (s *Session) Snapshot() types.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Stop flags the session stopped. State is retained for inspection.
func (s *Session) Stop() FinalReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.finalReport()
}

// Reset discards all session state and rebuilds it from the stored
// parameters and seed. The final report of the old run is returned.
func (s *Session) Reset() FinalReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.finalReport()
	s.build()
	return final
}

// finalReport packages the run summary for persistence. Callers hold the
// session lock.
func (s *Session) finalReport() FinalReport {
	return FinalReport{
		SessionID:      s.id,
		Params:         s.params,
		InitialCapital: s.initialCapital.InexactFloat64(),
		Seed:           s.seed,
		FinishedAt:     time.Now(),
		Report:         s.report(),
	}
}

// UpdateParams stages a validated bundle; it takes effect next tick.
func (s *Session) UpdateParams(p types.ParamBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
}

// Trade executes a manual market order on the session's behalf. At most
// one manual trade is accepted per tick; later submissions in the same
// tick are rejected with ErrBusy.
func (s *Session) Trade(side types.Side, size int64) (types.SessionTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size <= 0 {
		size = 1
	}
	if s.lastManualTick == s.market.Tick() {
		return types.SessionTrade{}, types.ErrBusy
	}

	tr, err := s.execute(side, size, "manual")
	if err != nil {
		return types.SessionTrade{}, err
	}
	s.lastManualTick = s.market.Tick()
	s.markEquity(false)
	return tr, nil
}

// Report computes the analytics summary for the current run.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report()
}

// advance runs one tick through the fixed pipeline: (1-2) participant
// intents and matching inside the simulator, (3) bar close, (4) strategy
// signal, (5) driver trade, (6) equity update.
func (s *Session) advance() {
	if s.pending != nil {
		s.params = *s.pending
		s.strat.SetParams(s.params)
		s.pending = nil
	}

	bar, closed := s.market.Step()
	if s.mets != nil {
		s.mets.TicksTotal.Inc()
	}

	if closed {
		closePx := types.PriceFromTicks(bar.Close, s.market.TickValue())
		s.lastClose = closePx
		s.pushVolume(bar.Volume)

		start := time.Now()
		signal := s.strat.GenerateSignal(closePx, s.ledger.Position())
		elapsed := time.Since(start)
		s.latencyUs = float64(elapsed.Nanoseconds()) / 1e3
		if s.mets != nil {
			s.mets.SignalLatency.Observe(elapsed.Seconds())
		}

		if s.params.AutoTrade && signal != types.Hold {
			side := types.Bid
			if signal == types.Sell {
				side = types.Ask
			}
			if _, err := s.execute(side, 1, "auto"); err != nil {
				// Auto trades that cannot fill are skipped, not surfaced.
				s.logger.Debug("auto trade skipped", "signal", signal, "error", err)
			}
		}
	}

	s.markEquity(true)
}

// execute prices and books one session order.
func (s *Session) execute(side types.Side, size int64, origin string) (types.SessionTrade, error) {
	price, err := s.cfg.Exec.fillPrice(side, size, s.marketState())
	if err != nil {
		return types.SessionTrade{}, err
	}

	pd := decimal.NewFromFloat(price)
	notional := pd.Mul(decimal.NewFromInt(size))
	commission := notional.Mul(decimal.NewFromFloat(s.cfg.Exec.CommissionRate))

	realized, err := s.ledger.Apply(side, size, pd, commission)
	if err != nil {
		return types.SessionTrade{}, err
	}

	tr := types.SessionTrade{
		Side:        side,
		Size:        size,
		Price:       price,
		Commission:  commission.InexactFloat64(),
		RealizedPnL: realized.InexactFloat64(),
		Tick:        s.market.Tick(),
	}
	s.trades = append(s.trades, tr)
	if s.mets != nil {
		s.mets.TradesTotal.WithLabelValues(origin).Inc()
	}
	return tr, nil
}

// marketState captures the pricing context for the execution model.
func (s *Session) marketState() marketState {
	tv := s.market.TickValue()
	mkt := marketState{
		lastClose:    s.lastClose,
		recentVolume: s.volSum,
	}
	if bid, ok := s.market.Book().BestBid(); ok {
		mkt.bestBid = types.PriceFromTicks(bid, tv)
		mkt.hasBid = true
	}
	if ask, ok := s.market.Book().BestAsk(); ok {
		mkt.bestAsk = types.PriceFromTicks(ask, tv)
		mkt.hasAsk = true
	}
	return mkt
}

// markPrice is the valuation price for equity: the mid when the book is
// two-sided, otherwise the last close.
func (s *Session) markPrice() float64 {
	if mid, ok := s.market.Book().Mid(); ok {
		return mid * s.market.TickValue()
	}
	return s.lastClose
}

// markEquity refreshes equity, the peak watermark, drawdown, and the
// risk guard. Curve points are appended only on tick boundaries.
func (s *Session) markEquity(appendPoint bool) {
	eq := s.ledger.Equity(s.markPrice())
	s.lastEquity = eq
	if appendPoint {
		s.curve = append(s.curve, EquityPoint{Tick: s.market.Tick(), Equity: eq})
	}
	if eq > s.peak {
		s.peak = eq
	}

	var dd float64
	if s.peak > 0 {
		dd = (s.peak - eq) / s.peak
	}
	if dd > s.maxDD {
		s.maxDD = dd
	}

	if s.mets != nil {
		s.mets.EquityGauge.WithLabelValues(s.id).Set(eq)
	}
	if reason, tripped := s.guard.Check(eq, dd); tripped {
		s.running = false
		s.logger.Warn("risk guard tripped, session stopped", "reason", reason)
	}
}

func (s *Session) pushVolume(v int64) {
	window := s.cfg.VolumeWindow
	if window <= 0 {
		window = 20
	}
	s.volWindow = append(s.volWindow, v)
	s.volSum += v
	if len(s.volWindow) > window {
		s.volSum -= s.volWindow[0]
		s.volWindow = s.volWindow[1:]
	}
}

func (s *Session) snapshot() types.SessionSnapshot {
	tv := s.market.TickValue()
	initial := s.initialCapital.InexactFloat64()

	snap := types.SessionSnapshot{
		SessionID:      s.id,
		Running:        s.running,
		Tick:           s.market.Tick(),
		EKFPrice:       s.strat.EKFPrice(),
		EKFVelocity:    s.strat.EKFVelocity(),
		Position:       s.ledger.Position(),
		Cash:           s.ledger.Cash().InexactFloat64(),
		Equity:         s.lastEquity,
		LatencyUs:      s.latencyUs,
		DroppedIntents: s.market.DroppedIntents(),
		EKFResets:      s.strat.Resets(),
	}
	if initial > 0 {
		snap.Return = (s.lastEquity - initial) / initial
	}
	if s.peak > 0 {
		snap.Drawdown = (s.peak - s.lastEquity) / s.peak
	}

	book := s.market.Book()
	if bid, ok := book.BestBid(); ok {
		snap.BestBid = types.PriceFromTicks(bid, tv)
	}
	if ask, ok := book.BestAsk(); ok {
		snap.BestAsk = types.PriceFromTicks(ask, tv)
	}
	if mid, ok := book.Mid(); ok {
		snap.Mid = mid * tv
	}
	if last, ok := book.LastTrade(); ok {
		snap.Last = types.PriceFromTicks(last.Price, tv)
	}

	k := s.cfg.RecentTrades
	if k <= 0 {
		k = 10
	}
	if n := len(s.trades); n > 0 {
		if n > k {
			snap.RecentTrades = append([]types.SessionTrade(nil), s.trades[n-k:]...)
		} else {
			snap.RecentTrades = append([]types.SessionTrade(nil), s.trades...)
		}
	}
	return snap
}

func (s *Session) report() Report {
	return computeReport(s.curve, s.initialCapital.InexactFloat64(),
		s.cfg.TicksPerYear, s.cfg.RiskFreeRate, s.ledger, len(s.trades))
}
