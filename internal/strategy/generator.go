package strategy

import (
	"time"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	xlogger "SMCFlow/pkg/logger"

	"github.com/oklog/ulid/v2"
)

// GeneratorConfig holds generator tuning parameters.
type GeneratorConfig struct {
	Cooldown time.Duration     // per (asset, model) suppression after an emission
	Models   []models.SMCModel // enabled models; empty means all
}

type machineKey struct {
	asset string
	tf    models.Timeframe
	model models.SMCModel
}

type cooldownKey struct {
	asset string
	model models.SMCModel
}

// Generator owns the state machines for every (asset, timeframe, model)
// triple and finalizes their drafts into emitted signals. It is driven
// per-asset from a single goroutine; machines for different assets never
// share state, so no locking is needed beyond that discipline.
type Generator struct {
	cfg      GeneratorConfig
	machines map[machineKey]*Machine
	lastEmit map[cooldownKey]time.Time
	logger   *xlogger.Logger
	metrics  drepo.Metrics
}

// NewGenerator creates a generator.
func NewGenerator(cfg GeneratorConfig, lgr *xlogger.Logger, metrics drepo.Metrics) *Generator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 4 * time.Hour
	}
	if len(cfg.Models) == 0 {
		cfg.Models = models.AllModels()
	}
	return &Generator{
		cfg:      cfg,
		machines: make(map[machineKey]*Machine),
		lastEmit: make(map[cooldownKey]time.Time),
		logger:   lgr,
		metrics:  metrics,
	}
}

// OnStructure steps every enabled model machine for the snapshot's (asset,
// timeframe) with the candle that produced it. Multiple models may emit on
// the same candle; they are tagged separately and never deduplicated across
// models.
func (g *Generator) OnStructure(ms *models.MarketStructure, c *models.Candle) []*models.Signal {
	closedAt := c.OpenTime.Add(c.Timeframe.Duration())
	var emitted []*models.Signal

	for _, model := range g.cfg.Models {
		mk := machineKey{asset: ms.Asset, tf: ms.Timeframe, model: model}
		machine, ok := g.machines[mk]
		if !ok {
			machine = NewMachine(ms.Asset, ms.Timeframe, model)
			g.machines[mk] = machine
		}

		ck := cooldownKey{asset: ms.Asset, model: model}
		allowSetup := g.cooldownOver(ck, closedAt)

		draft := machine.Step(ms, c, allowSetup)
		if draft == nil {
			continue
		}

		// machines on other timeframes share the (asset, model) cooldown and
		// may confirm a setup that predates an emission; suppress those too
		if !g.cooldownOver(ck, closedAt) {
			machine.Reset()
			g.metrics.RecordSignal(string(model), "COOLDOWN")
			continue
		}

		draft.ID = ulid.Make().String()
		draft.CreatedAt = closedAt
		draft.Status = models.StatusEmitted
		g.lastEmit[ck] = closedAt

		g.metrics.RecordSignal(string(model), string(models.StatusEmitted))
		g.logger.Info("signal emitted",
			xlogger.String("id", draft.ID),
			xlogger.String("asset", draft.Asset),
			xlogger.String("timeframe", string(draft.Timeframe)),
			xlogger.String("model", string(draft.Model)),
			xlogger.String("direction", string(draft.Direction)),
		)
		emitted = append(emitted, draft)
	}
	return emitted
}

func (g *Generator) cooldownOver(ck cooldownKey, now time.Time) bool {
	last, ok := g.lastEmit[ck]
	if !ok {
		return true
	}
	return now.Sub(last) >= g.cfg.Cooldown
}
