// Package entitlement decides, per user, whether an emitted signal may be
// distributed. The decision order is fixed: asset entitlement, model
// entitlement, then daily quota. Quota is only consumed once the cheaper
// checks pass, so a rejection for an unentitled asset never burns quota.
package entitlement

import (
	"context"

	"SMCFlow/internal/domain/models"
	drepo "SMCFlow/internal/domain/repository"
	"SMCFlow/pkg/util"
)

// Rejection reasons carried on the decision and into grant records.
const (
	ReasonAssetNotEntitled = "ASSET_NOT_ENTITLED"
	ReasonModelNotEntitled = "MODEL_NOT_ENTITLED"
	ReasonQuotaExceeded    = "QUOTA_EXCEEDED"
)

// Decision is the gate verdict for one (user, signal) pair.
type Decision struct {
	Allowed bool
	Reason  string // empty when allowed
}

// Gate evaluates signals against user plans.
type Gate struct {
	quotas  drepo.QuotaStore
	metrics drepo.Metrics
}

func NewGate(quotas drepo.QuotaStore, metrics drepo.Metrics) *Gate {
	return &Gate{quotas: quotas, metrics: metrics}
}

// Check runs the entitlement pipeline for one user. A quota store failure is
// returned as an error; the caller decides whether to fail open or closed.
func (g *Gate) Check(ctx context.Context, plan *models.UserPlan, s *models.Signal) (Decision, error) {
	if !plan.EntitledAsset(s.Asset) {
		g.metrics.RecordSignal(string(s.Model), ReasonAssetNotEntitled)
		return Decision{Reason: ReasonAssetNotEntitled}, nil
	}
	if !plan.EntitledModel(s.Model) {
		g.metrics.RecordSignal(string(s.Model), ReasonModelNotEntitled)
		return Decision{Reason: ReasonModelNotEntitled}, nil
	}
	if plan.DailySignalQuota > 0 {
		ok, err := g.quotas.Take(ctx, plan.UserID, util.DayKey(s.CreatedAt), plan.DailySignalQuota)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			g.metrics.RecordSignal(string(s.Model), ReasonQuotaExceeded)
			return Decision{Reason: ReasonQuotaExceeded}, nil
		}
	}
	return Decision{Allowed: true}, nil
}
