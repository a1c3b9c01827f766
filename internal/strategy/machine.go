package strategy

import (
	"time"

	"SMCFlow/internal/domain/models"
)

// State is the lifecycle position of one machine.
type State string

const (
	StateWaitingSetup  State = "WAITING_SETUP"
	StateSetupDetected State = "SETUP_DETECTED"
	StateConfirmed     State = "CONFIRMED"
	StateEmitted       State = "EMITTED"
	StateInvalidated   State = "INVALIDATED"
)

// sweepMaxAge limits how many candles back a marked sweep still counts as a
// live setup condition.
const sweepMaxAge = 3

// setup captures the structural precondition a machine is watching. The zone
// is the price range whose full violation invalidates the setup.
type setup struct {
	direction  models.Direction
	zoneHigh   float64
	zoneLow    float64
	detectedAt time.Time
}

// Machine is the per (asset, timeframe, model) signal state machine.
// Transitions are pure functions of (state, snapshot, candle); the engine
// drives each machine from a single goroutine, so no locking here.
type Machine struct {
	asset string
	tf    models.Timeframe
	model models.SMCModel
	state State
	setup *setup
}

// NewMachine creates a machine in WAITING_SETUP.
func NewMachine(asset string, tf models.Timeframe, model models.SMCModel) *Machine {
	return &Machine{asset: asset, tf: tf, model: model, state: StateWaitingSetup}
}

// State returns the current machine state.
func (m *Machine) State() State { return m.state }

// Reset abandons any setup in progress and returns to WAITING_SETUP.
func (m *Machine) Reset() {
	m.state = StateWaitingSetup
	m.setup = nil
}

// Step advances the machine on one closed candle and its structure snapshot.
// allowSetup gates the WAITING_SETUP -> SETUP_DETECTED transition (cooldown).
// A non-nil return is a signal draft: direction and prices are final, id and
// status are assigned by the generator.
func (m *Machine) Step(ms *models.MarketStructure, c *models.Candle, allowSetup bool) *models.Signal {
	// EMITTED and INVALIDATED end the lifetime of one setup; the machine
	// itself lives on and waits for the next one.
	if m.state == StateEmitted || m.state == StateInvalidated {
		m.Reset()
	}

	switch m.state {
	case StateWaitingSetup:
		if !allowSetup {
			return nil
		}
		if s := m.detectSetup(ms, c); s != nil {
			m.setup = s
			m.state = StateSetupDetected
		}
		return nil

	case StateSetupDetected:
		// confirmation requires a candle after the one that formed the setup
		if !c.OpenTime.After(m.setup.detectedAt) {
			return nil
		}
		if m.violated(c) {
			m.state = StateInvalidated
			return nil
		}
		if !m.confirmed(c) {
			return nil
		}
		m.state = StateConfirmed
		draft := m.buildSignal(ms, c)
		m.state = StateEmitted
		return draft
	}
	return nil
}

// violated reports whether price fully closed through the setup zone against
// the setup direction.
func (m *Machine) violated(c *models.Candle) bool {
	if m.setup.direction == models.Long {
		return c.Close < m.setup.zoneLow
	}
	return c.Close > m.setup.zoneHigh
}

func (m *Machine) detectSetup(ms *models.MarketStructure, c *models.Candle) *setup {
	switch m.model {
	case models.ModelOrderBlockRetest:
		if ob, ok := touchedBlock(ms.Blocks, c); ok {
			return &setup{direction: ob.Direction, zoneHigh: ob.High, zoneLow: ob.Low, detectedAt: c.OpenTime}
		}

	case models.ModelFVGFill:
		for i := len(ms.Gaps) - 1; i >= 0; i-- {
			g := ms.Gaps[i]
			if c.Low <= g.Upper && c.High >= g.Lower {
				return &setup{direction: g.Direction, zoneHigh: g.Upper, zoneLow: g.Lower, detectedAt: c.OpenTime}
			}
		}

	case models.ModelSweepReversal:
		if sw := recentSweep(ms, c, m.tf); sw != nil {
			hi, lo := sw.Level, sw.Extreme
			if sw.Direction == models.Short {
				hi, lo = sw.Extreme, sw.Level
			}
			return &setup{direction: sw.Direction, zoneHigh: hi, zoneLow: lo, detectedAt: c.OpenTime}
		}

	case models.ModelBreakOfStructure:
		if high, ok := ms.LastSwingHigh(); ok && c.Close > high.Price {
			return &setup{direction: models.Long, zoneHigh: high.Price, zoneLow: high.Price, detectedAt: c.OpenTime}
		}
		if low, ok := ms.LastSwingLow(); ok && c.Close < low.Price {
			return &setup{direction: models.Short, zoneHigh: low.Price, zoneLow: low.Price, detectedAt: c.OpenTime}
		}

	case models.ModelOBFVGConfluence:
		for _, ob := range ms.Blocks {
			for _, g := range ms.Gaps {
				if ob.Direction != g.Direction {
					continue
				}
				hi := min64(ob.High, g.Upper)
				lo := max64(ob.Low, g.Lower)
				if hi < lo {
					continue // no overlap
				}
				if c.Low <= hi && c.High >= lo {
					return &setup{direction: ob.Direction, zoneHigh: hi, zoneLow: lo, detectedAt: c.OpenTime}
				}
			}
		}

	case models.ModelSweepIntoBlock:
		sw := recentSweep(ms, c, m.tf)
		if sw == nil {
			return nil
		}
		for _, ob := range ms.Blocks {
			if ob.Direction == sw.Direction && ob.Contains(sw.Extreme) && c.Low <= ob.High && c.High >= ob.Low {
				return &setup{direction: ob.Direction, zoneHigh: ob.High, zoneLow: ob.Low, detectedAt: c.OpenTime}
			}
		}
	}
	return nil
}

func (m *Machine) confirmed(c *models.Candle) bool {
	s := m.setup
	switch m.model {
	case models.ModelOrderBlockRetest, models.ModelOBFVGConfluence, models.ModelSweepIntoBlock:
		// rejection wick closing beyond the zone
		if c.Range() <= 0 {
			return false
		}
		if s.direction == models.Long {
			return c.LowerWick() >= 0.5*c.Range() && c.Close > s.zoneHigh
		}
		return c.UpperWick() >= 0.5*c.Range() && c.Close < s.zoneLow

	case models.ModelFVGFill:
		if s.direction == models.Long {
			return c.Close > s.zoneHigh
		}
		return c.Close < s.zoneLow

	case models.ModelSweepReversal:
		mid := (s.zoneHigh + s.zoneLow) / 2
		if s.direction == models.Long {
			return c.Close > mid
		}
		return c.Close < mid

	case models.ModelBreakOfStructure:
		if s.direction == models.Long {
			return c.Close > s.zoneHigh
		}
		return c.Close < s.zoneLow
	}
	return false
}

// buildSignal prices the trade from the snapshot at confirmation time:
// entry at the confirming close, stop beyond the zone extreme with a small
// ATR buffer, targets at one and two times the planned risk.
func (m *Machine) buildSignal(ms *models.MarketStructure, c *models.Candle) *models.Signal {
	buffer := 0.1 * ms.ATR
	entry := c.Close

	var stop float64
	var targets []float64
	if m.setup.direction == models.Long {
		stop = m.setup.zoneLow - buffer
		risk := entry - stop
		targets = []float64{entry + risk, entry + 2*risk}
	} else {
		stop = m.setup.zoneHigh + buffer
		risk := stop - entry
		targets = []float64{entry - risk, entry - 2*risk}
	}

	return &models.Signal{
		Asset:      m.asset,
		Timeframe:  m.tf,
		Model:      m.model,
		Direction:  m.setup.direction,
		Entry:      entry,
		Stop:       stop,
		Targets:    targets,
		Confidence: m.confidence(ms, c),
	}
}

// confidence is a bounded heuristic: wick quality and an aligned sweep both
// raise it above the base.
func (m *Machine) confidence(ms *models.MarketStructure, c *models.Candle) float64 {
	score := 0.5
	if r := c.Range(); r > 0 {
		wick := c.UpperWick()
		if m.setup.direction == models.Long {
			wick = c.LowerWick()
		}
		if wick >= 0.6*r {
			score += 0.15
		}
	}
	if ms.Sweep != nil && ms.Sweep.Direction == m.setup.direction {
		score += 0.15
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

func touchedBlock(blocks []models.OrderBlock, c *models.Candle) (models.OrderBlock, bool) {
	for i := len(blocks) - 1; i >= 0; i-- {
		ob := blocks[i]
		if c.Low <= ob.High && c.High >= ob.Low {
			return ob, true
		}
	}
	return models.OrderBlock{}, false
}

func recentSweep(ms *models.MarketStructure, c *models.Candle, tf models.Timeframe) *models.LiquiditySweep {
	if ms.Sweep == nil {
		return nil
	}
	if c.OpenTime.Sub(ms.Sweep.Time) > time.Duration(sweepMaxAge)*tf.Duration() {
		return nil
	}
	return ms.Sweep
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
