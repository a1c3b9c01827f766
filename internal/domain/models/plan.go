package models

// UserPlan is the read-only entitlement view of a user's subscription.
// Owned by the external billing collaborator; consumed by the gate.
type UserPlan struct {
	UserID            string     `json:"user_id"`
	PlanTier          string     `json:"plan_tier"`
	AssetEntitlements []string   `json:"asset_entitlements"`
	ModelEntitlements []SMCModel `json:"model_entitlements"`
	DailySignalQuota  int        `json:"daily_signal_quota"`
}

// EntitledAsset reports whether the plan covers the asset.
// An empty entitlement list means all assets.
func (p *UserPlan) EntitledAsset(asset string) bool {
	if len(p.AssetEntitlements) == 0 {
		return true
	}
	for _, a := range p.AssetEntitlements {
		if a == asset {
			return true
		}
	}
	return false
}

// EntitledModel reports whether the plan covers the model.
// An empty entitlement list means all models.
func (p *UserPlan) EntitledModel(m SMCModel) bool {
	if len(p.ModelEntitlements) == 0 {
		return true
	}
	for _, known := range p.ModelEntitlements {
		if known == m {
			return true
		}
	}
	return false
}
