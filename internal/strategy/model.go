// Package strategy runs one signal state machine per (asset, timeframe,
// model) and turns confirmed structural setups into signals.
//
// Each model pairs a setup condition with a confirmation rule:
//
//	OB_RETEST          price trades back into an active order block; confirmed
//	                   by a rejection wick (>= half the candle range) closing
//	                   beyond the block.
//	FVG_FILL           price enters an unfilled fair-value gap; confirmed by a
//	                   close back outside the gap in the gap's direction.
//	SWEEP_REVERSAL     a liquidity sweep was marked; confirmed by a close past
//	                   the midpoint of the swept range against the sweep.
//	BOS                close beyond the latest swing extreme; confirmed when a
//	                   following candle holds beyond the broken level.
//	OB_FVG_CONFLUENCE  an order block overlapping a fair-value gap; confirmed
//	                   like OB_RETEST inside the overlap.
//	SWEEP_INTO_OB      a sweep whose excursion tags an active order block;
//	                   confirmed by a rejection wick off the block.
package strategy

import "SMCFlow/internal/domain/models"

// ModelSpec describes one strategy variant.
type ModelSpec struct {
	Model       models.SMCModel `json:"model"`
	Trailing    bool            `json:"trailing"`
	Description string          `json:"description"`
}

// Specs returns the model catalogue in a stable order.
func Specs() []ModelSpec {
	return []ModelSpec{
		{Model: models.ModelOrderBlockRetest, Trailing: models.ModelOrderBlockRetest.Trailing(), Description: "retest of an active order block with wick rejection"},
		{Model: models.ModelFVGFill, Trailing: models.ModelFVGFill.Trailing(), Description: "fair-value gap fill and continuation"},
		{Model: models.ModelSweepReversal, Trailing: models.ModelSweepReversal.Trailing(), Description: "reversal after a liquidity sweep"},
		{Model: models.ModelBreakOfStructure, Trailing: models.ModelBreakOfStructure.Trailing(), Description: "break of the latest swing extreme that holds"},
		{Model: models.ModelOBFVGConfluence, Trailing: models.ModelOBFVGConfluence.Trailing(), Description: "order block and gap confluence retest"},
		{Model: models.ModelSweepIntoBlock, Trailing: models.ModelSweepIntoBlock.Trailing(), Description: "liquidity sweep into an active order block"},
	}
}
