package entitlement

import (
	"context"
	"testing"
	"time"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignal(asset string, model models.SMCModel) *models.Signal {
	return &models.Signal{
		ID:        "sig-1",
		Asset:     asset,
		Timeframe: models.TF15m,
		Model:     model,
		Direction: models.Long,
		CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Status:    models.StatusEmitted,
	}
}

func TestGateAssetEntitlement(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{UserID: "u1", AssetEntitlements: []string{"BTCUSD"}}

	d, err := g.Check(context.Background(), plan, testSignal("EURUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonAssetNotEntitled, d.Reason)
}

func TestGateModelEntitlement(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{UserID: "u1", ModelEntitlements: []models.SMCModel{models.ModelFVGFill}}

	d, err := g.Check(context.Background(), plan, testSignal("EURUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonModelNotEntitled, d.Reason)
}

func TestGateEmptyEntitlementsMeanAll(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{UserID: "u1", DailySignalQuota: 10}

	d, err := g.Check(context.Background(), plan, testSignal("EURUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGateDailyQuota(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{UserID: "u1", DailySignalQuota: 5}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := g.Check(ctx, plan, testSignal("EURUSD", models.ModelBreakOfStructure))
		require.NoError(t, err)
		require.True(t, d.Allowed, "signal %d should pass", i+1)
	}

	d, err := g.Check(ctx, plan, testSignal("EURUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, d.Reason)
}

func TestGateQuotaResetsNextDay(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{UserID: "u1", DailySignalQuota: 1}
	ctx := context.Background()

	s := testSignal("EURUSD", models.ModelBreakOfStructure)
	d, err := g.Check(ctx, plan, s)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = g.Check(ctx, plan, s)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	next := testSignal("EURUSD", models.ModelBreakOfStructure)
	next.CreatedAt = s.CreatedAt.Add(24 * time.Hour)
	d, err = g.Check(ctx, plan, next)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGateUnentitledAssetDoesNotBurnQuota(t *testing.T) {
	g := NewGate(NewMemoryQuotaStore(), repository.NopMetrics{})
	plan := &models.UserPlan{
		UserID:            "u1",
		AssetEntitlements: []string{"BTCUSD"},
		DailySignalQuota:  1,
	}
	ctx := context.Background()

	d, err := g.Check(ctx, plan, testSignal("EURUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = g.Check(ctx, plan, testSignal("BTCUSD", models.ModelBreakOfStructure))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
