package models

import "time"

// SMCModel names one strategy variant. Models are stateless definitions used
// as keys; each one pairs a structural setup with a confirmation rule.
type SMCModel string

const (
	ModelOrderBlockRetest SMCModel = "OB_RETEST"
	ModelFVGFill          SMCModel = "FVG_FILL"
	ModelSweepReversal    SMCModel = "SWEEP_REVERSAL"
	ModelBreakOfStructure SMCModel = "BOS"
	ModelOBFVGConfluence  SMCModel = "OB_FVG_CONFLUENCE"
	ModelSweepIntoBlock   SMCModel = "SWEEP_INTO_OB"
)

// AllModels returns the enumerated model set in a stable order.
func AllModels() []SMCModel {
	return []SMCModel{
		ModelOrderBlockRetest,
		ModelFVGFill,
		ModelSweepReversal,
		ModelBreakOfStructure,
		ModelOBFVGConfluence,
		ModelSweepIntoBlock,
	}
}

// IsValidModel returns true if m is one of the enumerated models.
func IsValidModel(m SMCModel) bool {
	for _, known := range AllModels() {
		if m == known {
			return true
		}
	}
	return false
}

// Trailing reports whether the model attaches a trailing-stop rule to its
// open signals. Continuation models trail; reversal models hold a fixed stop.
func (m SMCModel) Trailing() bool {
	return m == ModelBreakOfStructure || m == ModelSweepReversal
}

// SignalStatus is the lifecycle state of a signal. WIN, LOSS, BREAKEVEN,
// EXPIRED and REJECTED are terminal.
type SignalStatus string

const (
	StatusEmitted   SignalStatus = "EMITTED"
	StatusOpen      SignalStatus = "OPEN"
	StatusWin       SignalStatus = "WIN"
	StatusLoss      SignalStatus = "LOSS"
	StatusBreakeven SignalStatus = "BREAKEVEN"
	StatusExpired   SignalStatus = "EXPIRED"
	StatusRejected  SignalStatus = "REJECTED"
)

// Terminal reports whether the status admits no further mutation.
func (s SignalStatus) Terminal() bool {
	switch s {
	case StatusWin, StatusLoss, StatusBreakeven, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Signal is an emitted trade setup. Immutable except for Status and, while
// OPEN with a trailing rule attached, Stop.
type Signal struct {
	ID         string       `json:"id"`
	Asset      string       `json:"asset"`
	Timeframe  Timeframe    `json:"timeframe"`
	Model      SMCModel     `json:"model"`
	Direction  Direction    `json:"direction"`
	Entry      float64      `json:"entry"`
	Stop       float64      `json:"stop"`
	Targets    []float64    `json:"targets"`
	Confidence float64      `json:"confidence"`
	CreatedAt  time.Time    `json:"created_at"`
	Status     SignalStatus `json:"status"`
}

// Risk returns the planned stop distance.
func (s *Signal) Risk() float64 {
	if s.Direction == Long {
		return s.Entry - s.Stop
	}
	return s.Stop - s.Entry
}

// Target returns the primary (first) target used for outcome resolution.
func (s *Signal) Target() float64 {
	if len(s.Targets) == 0 {
		return s.Entry
	}
	return s.Targets[0]
}
