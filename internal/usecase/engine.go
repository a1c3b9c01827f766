package usecase

import (
	"context"
	"sync"
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	"SMCFlow/internal/entitlement"
	"SMCFlow/internal/equity"
	"SMCFlow/internal/strategy"
	"SMCFlow/internal/structure"
	"SMCFlow/internal/tracker"
	xlogger "SMCFlow/pkg/logger"
)

// EngineConfig wires the per-asset processing chain.
type EngineConfig struct {
	Timeframes      []models.Timeframe
	Detector        structure.Config
	Generator       strategy.GeneratorConfig
	Tracker         tracker.Config
	StartingCapital float64
	QueueSize       int
}

func (c *EngineConfig) setDefaults() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = []models.Timeframe{models.DefaultTimeframe()}
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.StartingCapital <= 0 {
		c.StartingCapital = equity.DefaultStartingCapital
	}
}

// EngineStores groups the persistence dependencies of the engine.
type EngineStores struct {
	Signals drepo.SignalStore
	Trades  drepo.TradeStore
	Grants  drepo.GrantStore
	Equity  drepo.EquityStore
}

type detectorKey struct {
	asset string
	tf    models.Timeframe
}

// Engine drives structure detection, signal generation, gating and outcome
// tracking. Each asset gets one worker goroutine with its own queue, so all
// state machines for an asset step strictly sequentially while different
// assets run in parallel.
type Engine struct {
	cfg       EngineConfig
	plans     []*models.UserPlan
	gate      *entitlement.Gate
	trk       *tracker.Tracker
	publisher drepo.SignalPublisher
	stores    EngineStores
	logger    *xlogger.Logger
	metrics   drepo.Metrics

	mu         sync.Mutex
	queues     map[string]chan *models.Candle
	detectors  map[detectorKey]*structure.Detector
	generators map[string]*strategy.Generator
	sims       map[string]*equity.Simulator
	granted    map[string][]string // signalID -> user ids
	started    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(
	cfg EngineConfig,
	plans []*models.UserPlan,
	gate *entitlement.Gate,
	publisher drepo.SignalPublisher,
	stores EngineStores,
	lgr *xlogger.Logger,
	metrics drepo.Metrics,
) *Engine {
	cfg.setDefaults()
	e := &Engine{
		cfg:        cfg,
		plans:      plans,
		gate:       gate,
		publisher:  publisher,
		stores:     stores,
		logger:     lgr,
		metrics:    metrics,
		queues:     make(map[string]chan *models.Candle),
		detectors:  make(map[detectorKey]*structure.Detector),
		generators: make(map[string]*strategy.Generator),
		sims:       make(map[string]*equity.Simulator),
		granted:    make(map[string][]string),
	}
	e.trk = tracker.New(cfg.Tracker, e.onClosed, lgr, metrics)
	for _, p := range plans {
		e.sims[p.UserID] = equity.NewSimulator(p.UserID, cfg.StartingCapital)
	}
	return e
}

// Start recovers open signals from the store and begins accepting candles.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	return e.recover(ctx)
}

// Stop drains the workers.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
}

// recover re-tracks signals that were OPEN when the process last stopped and
// rebuilds the grant index and the per-user equity state.
func (e *Engine) recover(ctx context.Context) error {
	open, err := e.stores.Signals.ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, s := range open {
		e.trk.Track(s)
	}

	for _, p := range e.plans {
		ids, err := e.stores.Grants.ListSignalIDs(ctx, p.UserID)
		if err != nil {
			return err
		}
		granted := make(map[string]bool, len(ids))
		for _, id := range ids {
			granted[id] = true
			e.granted[id] = append(e.granted[id], p.UserID)
		}

		trades, err := e.stores.Trades.List(ctx, time.Time{})
		if err != nil {
			return err
		}
		mine := trades[:0:0]
		for _, tr := range trades {
			if granted[tr.SignalID] {
				mine = append(mine, tr)
			}
		}
		e.sims[p.UserID].Replay(mine)
	}

	e.logger.Info("engine recovered",
		xlogger.Int("open_signals", len(open)),
		xlogger.Int("users", len(e.plans)),
	)
	return nil
}

// Process enqueues one validated candle for its asset's worker. It never
// blocks the caller; when the queue is full the candle is dropped and
// counted, the detector catches up from the next one.
func (e *Engine) Process(_ context.Context, c *models.Candle) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	q, ok := e.queues[c.Asset]
	if !ok {
		q = make(chan *models.Candle, e.cfg.QueueSize)
		e.queues[c.Asset] = q
		e.wg.Add(1)
		go e.worker(c.Asset, q)
	}
	e.mu.Unlock()

	select {
	case q <- c:
	default:
		e.metrics.RecordError("engine_queue_full")
	}
	return nil
}

func (e *Engine) worker(asset string, q <-chan *models.Candle) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case c := <-q:
			e.step(asset, c)
		}
	}
}

// step runs the full chain for one candle: resolve open signals first, then
// update structure and let the machines look for new setups.
func (e *Engine) step(asset string, c *models.Candle) {
	e.trk.OnCandle(c)

	// the maps are shared across asset workers and need the lock; the
	// detector and generator instances themselves are only ever stepped by
	// their own asset's worker
	dk := detectorKey{asset: asset, tf: c.Timeframe}
	e.mu.Lock()
	det, ok := e.detectors[dk]
	if !ok {
		det = structure.NewDetector(asset, c.Timeframe, e.cfg.Detector)
		e.detectors[dk] = det
	}
	gen, ok := e.generators[asset]
	if !ok {
		gen = strategy.NewGenerator(e.cfg.Generator, e.logger, e.metrics)
		e.generators[asset] = gen
	}
	e.mu.Unlock()

	ms, err := det.OnCandle(c)
	if err != nil {
		// duplicates and stale candles are dropped upstream; anything that
		// still reaches here is counted, never applied
		e.metrics.RecordInvalidCandle("detector")
		return
	}
	e.metrics.RecordLastPrice(asset, c.Close)

	for _, s := range gen.OnStructure(ms, c) {
		e.emit(s)
	}
}

// emit gates the signal per user and routes it: accepted by anyone means it
// goes to distribution and tracking, rejected by everyone marks it REJECTED
// and it never reaches the tracker.
func (e *Engine) emit(s *models.Signal) {
	ctx := e.ctx
	if err := e.stores.Signals.Save(ctx, s); err != nil {
		e.metrics.RecordError("persist_signal")
		e.logger.Error("persist signal failed", xlogger.String("id", s.ID), xlogger.Error(err))
	}

	var accepted []string
	for _, p := range e.plans {
		d, err := e.gate.Check(ctx, p, s)
		if err != nil {
			// fail closed for this user, the quota state is unknown
			e.metrics.RecordError("gate_check")
			e.logger.Error("gate check failed",
				xlogger.String("user", p.UserID),
				xlogger.String("signal", s.ID),
				xlogger.Error(err),
			)
			continue
		}
		if !d.Allowed {
			e.logger.Debug("signal withheld",
				xlogger.String("user", p.UserID),
				xlogger.String("signal", s.ID),
				xlogger.String("reason", d.Reason),
			)
			continue
		}
		if err := e.stores.Grants.Save(ctx, p.UserID, s.ID); err != nil {
			e.metrics.RecordError("persist_grant")
		}
		accepted = append(accepted, p.UserID)
	}

	if len(accepted) == 0 {
		s.Status = models.StatusRejected
		if err := e.stores.Signals.UpdateStatus(ctx, s.ID, models.StatusRejected, s.Stop); err != nil {
			e.metrics.RecordError("persist_signal")
		}
		e.metrics.RecordSignal(string(s.Model), string(models.StatusRejected))
		return
	}

	e.mu.Lock()
	e.granted[s.ID] = accepted
	e.mu.Unlock()

	e.trk.Track(s)
	if err := e.stores.Signals.UpdateStatus(ctx, s.ID, models.StatusOpen, s.Stop); err != nil {
		e.metrics.RecordError("persist_signal")
	}
	if err := e.publisher.Publish(ctx, s); err != nil {
		e.metrics.RecordError("publish_signal")
		e.logger.Error("publish signal failed", xlogger.String("id", s.ID), xlogger.Error(err))
	}
}

// onClosed handles tracker resolutions: persist the trade once, advance
// every granted user's equity simulation, persist the snapshots.
func (e *Engine) onClosed(s *models.Signal, tr *models.Trade) {
	ctx := e.ctx
	if err := e.stores.Signals.UpdateStatus(ctx, s.ID, s.Status, s.Stop); err != nil {
		e.metrics.RecordError("persist_signal")
	}
	if tr == nil {
		return
	}
	if err := e.stores.Trades.Save(ctx, tr); err != nil {
		e.metrics.RecordError("persist_trade")
		e.logger.Error("persist trade failed", xlogger.String("signal", tr.SignalID), xlogger.Error(err))
	}

	e.mu.Lock()
	users := e.granted[s.ID]
	delete(e.granted, s.ID)
	e.mu.Unlock()

	for _, userID := range users {
		sim, ok := e.sims[userID]
		if !ok {
			continue
		}
		// persist backfilled quiet-day rows too, so a curve served from the
		// store matches the in-memory one
		for _, snap := range sim.OnTrade(tr) {
			if err := e.stores.Equity.Save(ctx, &snap); err != nil {
				e.metrics.RecordError("persist_equity")
			}
		}
	}
}

// CloseFlat force-closes an open signal at breakeven on user instruction.
func (e *Engine) CloseFlat(id string) bool {
	return e.trk.CloseFlat(id, time.Now().UTC())
}

// Simulator returns the equity simulation for a configured user.
func (e *Engine) Simulator(userID string) (*equity.Simulator, bool) {
	sim, ok := e.sims[userID]
	return sim, ok
}

// OpenSignals lists the signals currently under tracking.
func (e *Engine) OpenSignals() []*models.Signal {
	return e.trk.OpenSignals()
}
