package strategy

import (
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	"SMCFlow/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(cooldown time.Duration) *Generator {
	return NewGenerator(GeneratorConfig{
		Cooldown: cooldown,
		Models:   []models.SMCModel{models.ModelOrderBlockRetest},
	}, logger.Nop(), repository.NopMetrics{})
}

// driveRetest walks one order block retest from setup to confirmation,
// starting at candle index i, and returns whatever the generator emitted.
func driveRetest(g *Generator, i int) []*models.Signal {
	out := g.OnStructure(blockStructure(i), tfCandle(i, 1.02, 1.025, 1.005, 1.012))
	out = append(out, g.OnStructure(blockStructure(i+1), tfCandle(i+1, 1.008, 1.02, 0.996, 1.018))...)
	return out
}

func TestGeneratorEmitsFinalizedSignal(t *testing.T) {
	g := newTestGenerator(4 * time.Hour)

	emitted := driveRetest(g, 0)
	require.Len(t, emitted, 1)

	s := emitted[0]
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.StatusEmitted, s.Status)
	assert.Equal(t, "EURUSD", s.Asset)
	assert.Equal(t, models.TF15m, s.Timeframe)
	assert.Equal(t, models.ModelOrderBlockRetest, s.Model)
	// creation time is the close of the confirming candle
	assert.Equal(t, t0.Add(2*15*time.Minute), s.CreatedAt)
}

func TestGeneratorCooldownSuppressesRepeatEmissions(t *testing.T) {
	cooldown := 4 * time.Hour
	g := newTestGenerator(cooldown)

	first := driveRetest(g, 0)
	require.Len(t, first, 1)

	// an identical setup right after the emission stays silent
	suppressed := driveRetest(g, 2)
	assert.Empty(t, suppressed)

	// well past the cooldown the same setup emits again
	later := driveRetest(g, 40) // 40 * 15m = 10h after the window start
	require.Len(t, later, 1)

	gap := later[0].CreatedAt.Sub(first[0].CreatedAt)
	assert.GreaterOrEqual(t, gap, cooldown)
}

func TestGeneratorUniqueIDs(t *testing.T) {
	g := newTestGenerator(time.Minute)

	first := driveRetest(g, 0)
	second := driveRetest(g, 40)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}
