// Package tracker resolves open signals against the live candle flow.
// Resolution is exactly-once per signal id: a signal is removed from the
// open set in the same critical section that decides its outcome, so a
// duplicate candle or a replayed feed cannot resolve it twice.
package tracker

import (
	"sync"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	xlogger "SMCFlow/pkg/logger"
)

// pnlEpsilon separates a genuine win or loss from a flat trailing exit.
const pnlEpsilon = 1e-9

// Config holds tracker tuning parameters.
type Config struct {
	// MaxHolding force-closes an open signal flat after this duration.
	// Zero disables the limit.
	MaxHolding time.Duration
	// Expiry marks an open signal EXPIRED (no trade recorded) after this
	// duration. Zero disables expiry. When both are set, the shorter one
	// fires first.
	Expiry time.Duration
	// RiskPercent is the capital percentage risked per trade under the
	// fixed-fractional model. A full stop-out costs exactly this much.
	RiskPercent float64
}

func (c *Config) setDefaults() {
	if c.RiskPercent <= 0 {
		c.RiskPercent = 1.0
	}
}

// Sink receives every closed signal exactly once, outside the tracker lock.
// trade is nil when the signal expired unresolved.
type Sink func(s *models.Signal, trade *models.Trade)

type tracked struct {
	signal *models.Signal
	risk   float64 // planned stop distance at registration, trailing basis
	opened time.Time
}

type closed struct {
	signal *models.Signal
	trade  *models.Trade
}

// Tracker holds the open signal set for all assets.
type Tracker struct {
	mu      sync.Mutex
	cfg     Config
	open    map[string]*tracked
	sink    Sink
	logger  *xlogger.Logger
	metrics drepo.Metrics
}

func New(cfg Config, sink Sink, lgr *xlogger.Logger, metrics drepo.Metrics) *Tracker {
	cfg.setDefaults()
	return &Tracker{
		cfg:     cfg,
		open:    make(map[string]*tracked),
		sink:    sink,
		logger:  lgr,
		metrics: metrics,
	}
}

// Track registers an accepted signal as OPEN. Returns false when the id is
// already tracked or the signal carries no usable risk distance.
func (t *Tracker) Track(s *models.Signal) bool {
	risk := s.Risk()
	if risk <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.open[s.ID]; dup {
		return false
	}
	s.Status = models.StatusOpen
	t.open[s.ID] = &tracked{signal: s, risk: risk, opened: s.CreatedAt}
	return true
}

// OpenSignals returns a snapshot of the currently open signals.
func (t *Tracker) OpenSignals() []*models.Signal {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*models.Signal, 0, len(t.open))
	for _, tr := range t.open {
		out = append(out, tr.signal)
	}
	return out
}

// OnCandle evaluates every open signal on the candle's asset. Checks run
// against the stop as it stood before this candle; the trailing ratchet
// advances afterwards, so an intra-candle ordering ambiguity always resolves
// conservatively.
func (t *Tracker) OnCandle(c *models.Candle) {
	closedAt := c.OpenTime.Add(c.Timeframe.Duration())

	t.mu.Lock()
	var done []closed
	for id, tr := range t.open {
		if tr.signal.Asset != c.Asset {
			continue
		}
		if out := t.evaluate(tr, c, closedAt); out != nil {
			delete(t.open, id)
			done = append(done, *out)
		}
	}
	t.mu.Unlock()

	for _, d := range done {
		t.report(d)
	}
}

// OnTick evaluates open signals on a single traded price, for feeds that
// deliver ticks between candle closes. The tick is treated as a degenerate
// candle at that price.
func (t *Tracker) OnTick(asset string, price float64, ts time.Time) {
	t.mu.Lock()
	var done []closed
	for id, tr := range t.open {
		if tr.signal.Asset != asset {
			continue
		}
		c := &models.Candle{
			Asset: asset,
			Open:  price, High: price, Low: price, Close: price,
			OpenTime: ts,
		}
		if out := t.evaluate(tr, c, ts); out != nil {
			delete(t.open, id)
			done = append(done, *out)
		}
	}
	t.mu.Unlock()

	for _, d := range done {
		t.report(d)
	}
}

// CloseFlat resolves an open signal BREAKEVEN on external instruction.
// Returns false when the id is unknown or already resolved.
func (t *Tracker) CloseFlat(id string, at time.Time) bool {
	t.mu.Lock()
	tr, ok := t.open[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.open, id)
	d := t.resolve(tr, models.StatusBreakeven, 0, at)
	t.mu.Unlock()

	t.report(d)
	return true
}

func (t *Tracker) evaluate(tr *tracked, c *models.Candle, closedAt time.Time) *closed {
	s := tr.signal

	if t.cfg.Expiry > 0 && closedAt.Sub(tr.opened) >= t.cfg.Expiry {
		d := t.resolveExpired(tr)
		return &d
	}
	if t.cfg.MaxHolding > 0 && closedAt.Sub(tr.opened) >= t.cfg.MaxHolding {
		d := t.resolve(tr, models.StatusBreakeven, 0, closedAt)
		return &d
	}

	stopHit, targetHit := t.touches(s, c)

	// stop before target within one candle: without tick data the adverse
	// path cannot be ruled out
	if stopHit {
		d := t.resolve(tr, t.stopResult(tr), t.stopPnl(tr), closedAt)
		return &d
	}
	if targetHit {
		d := t.resolve(tr, models.StatusWin, t.targetPnl(tr), closedAt)
		return &d
	}

	if s.Model.Trailing() {
		t.ratchet(tr, c)
	}
	return nil
}

func (t *Tracker) touches(s *models.Signal, c *models.Candle) (stopHit, targetHit bool) {
	if s.Direction == models.Long {
		return c.Low <= s.Stop, c.High >= s.Target()
	}
	return c.High >= s.Stop, c.Low <= s.Target()
}

// ratchet advances a trailing stop toward price, keeping the registration
// risk distance from the candle's favorable extreme. It never retreats.
func (t *Tracker) ratchet(tr *tracked, c *models.Candle) {
	s := tr.signal
	if s.Direction == models.Long {
		if next := c.High - tr.risk; next > s.Stop {
			s.Stop = next
		}
		return
	}
	if next := c.Low + tr.risk; next < s.Stop {
		s.Stop = next
	}
}

// stopResult classifies a stop touch. A fixed stop is always a loss; a
// trailing stop may have ratcheted past entry, so it resolves by sign.
func (t *Tracker) stopResult(tr *tracked) models.SignalStatus {
	pnl := t.stopPnl(tr)
	switch {
	case pnl > pnlEpsilon:
		return models.StatusWin
	case pnl < -pnlEpsilon:
		return models.StatusLoss
	default:
		return models.StatusBreakeven
	}
}

// stopPnl is the capital percentage realized when the stop is filled,
// capped so one trade never loses more than the configured risk.
func (t *Tracker) stopPnl(tr *tracked) float64 {
	s := tr.signal
	move := s.Stop - s.Entry
	if s.Direction == models.Short {
		move = s.Entry - s.Stop
	}
	pnl := t.cfg.RiskPercent * (move / tr.risk)
	if pnl < -t.cfg.RiskPercent {
		pnl = -t.cfg.RiskPercent
	}
	return pnl
}

func (t *Tracker) targetPnl(tr *tracked) float64 {
	s := tr.signal
	move := s.Target() - s.Entry
	if s.Direction == models.Short {
		move = s.Entry - s.Target()
	}
	return t.cfg.RiskPercent * (move / tr.risk)
}

func (t *Tracker) resolve(tr *tracked, result models.SignalStatus, pnl float64, at time.Time) closed {
	s := tr.signal
	s.Status = result
	return closed{
		signal: s,
		trade: &models.Trade{
			SignalID:   s.ID,
			Asset:      s.Asset,
			Timeframe:  s.Timeframe,
			Model:      s.Model,
			Direction:  s.Direction,
			Result:     result,
			PnlPercent: pnl,
			OpenedAt:   tr.opened,
			ClosedAt:   at,
			Holding:    at.Sub(tr.opened),
		},
	}
}

func (t *Tracker) resolveExpired(tr *tracked) closed {
	tr.signal.Status = models.StatusExpired
	return closed{signal: tr.signal}
}

func (t *Tracker) report(d closed) {
	if d.trade == nil {
		t.metrics.RecordResolution(string(models.StatusExpired))
		t.logger.Info("signal expired",
			xlogger.String("id", d.signal.ID),
			xlogger.String("asset", d.signal.Asset),
		)
	} else {
		t.metrics.RecordResolution(string(d.trade.Result))
		t.logger.Info("signal resolved",
			xlogger.String("id", d.signal.ID),
			xlogger.String("asset", d.signal.Asset),
			xlogger.String("result", string(d.trade.Result)),
			xlogger.Float64("pnl_percent", d.trade.PnlPercent),
		)
	}
	if t.sink != nil {
		t.sink(d.signal, d.trade)
	}
}
