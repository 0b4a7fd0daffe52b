package models

import "time"

// MakerStatus is the PENDING maker order state machine. PENDING only
// transitions to FILLED, TAKER_FALLBACK, or CANCELLED — no other edges.
type MakerStatus string

const (
	MakerPending       MakerStatus = "PENDING"
	MakerFilled        MakerStatus = "FILLED"
	MakerCancelled     MakerStatus = "CANCELLED"
	MakerTakerFallback MakerStatus = "TAKER_FALLBACK"
)

// ExitReason enumerates why a SimulatedOrder was closed.
type ExitReason string

const (
	ExitTakeProfit        ExitReason = "TAKE_PROFIT"
	ExitStopLoss          ExitReason = "STOP_LOSS"
	ExitVPINProtectiveStop ExitReason = "VPIN_PROTECTIVE_STOP"
	ExitTrailingStop       ExitReason = "TRAILING_STOP"
	ExitTimeLimit          ExitReason = "TIME_LIMIT"
	ExitTimeStop           ExitReason = "TIME_STOP"
	ExitVPINLockProfit     ExitReason = "VPIN_LOCK_PROFIT"
	ExitReverseSignal      ExitReason = "REVERSE_SIGNAL"
	ExitAICutLoss          ExitReason = "AI CUT_LOSS"
	ExitAIFlip             ExitReason = "AI Flip"
	ExitAIStopLoss         ExitReason = "Stop Loss"
)

// SimulatedOrder owns all state for one simulated trade. Invariants:
// ExitTime is set iff ExitReason is set iff PnlUSDT is finalized; a PENDING
// maker has no EntryFee until it fills; PositionValue is fixed at creation.
type SimulatedOrder struct {
	OrderID   string
	Mode      string
	Direction Direction
	Leverage  float64
	// PositionValue is the USD notional, fixed at creation.
	PositionValue float64
	EntryTime     time.Time

	EntryPrice       float64 // reference price at decision time
	ActualEntryPrice float64 // with slippage, or maker fill price
	ExitPrice        float64
	ExitTime         time.Time
	ExitReason       ExitReason

	TakeProfitPct        float64
	StopLossPct          float64
	DynamicStopLossPct   float64
	TrailingStopPct       float64 // positive = ratio of TP, negative = absolute %
	MinHoldingSeconds     float64
	MaxHoldingHours       float64
	MinReverseExitSeconds float64

	MakerStatus             MakerStatus
	MakerLimitPrice         float64
	MakerTimeoutSeconds     float64
	MakerAllowTakerFallback bool
	MakerCreatedTime        time.Time
	MakerFilledTime         time.Time
	// EntryIsMaker records whether the fill used the maker fee rate — true
	// only when a PENDING maker order actually filled at its limit price;
	// false for taker fills and TAKER_FALLBACK entries. The exit fee uses
	// the same side.
	EntryIsMaker bool

	PeakPnlPct        float64
	VPINRiskMode      bool
	VPINRiskTriggerAt time.Time
	EntryOBI          float64
	EntryVPIN         float64
	EntrySpread       float64
	EntryReason       string

	EntryFee   float64
	ExitFee    float64
	FundingFee float64
	TotalFees  float64
	PnlUSDT    float64
	ROI        float64

	IsBlocked   bool
	BlockReason string

	// ApproachingMaxHold is set by the holding-time sweep once an open
	// order passes 90% of MaxHoldingHours, surfaced on the bridge status
	// block ahead of the hard TIME_LIMIT/TIME_STOP exit.
	ApproachingMaxHold bool
}

// IsOpen reports whether the order has not yet closed.
func (o *SimulatedOrder) IsOpen() bool {
	return o.ExitReason == "" && !o.IsBlocked
}

// HoldingSeconds returns how long the position (or pending maker) has been
// open as of now.
func (o *SimulatedOrder) HoldingSeconds(now time.Time) float64 {
	return now.Sub(o.EntryTime).Seconds()
}

// PriceChangeRatio returns the signed fractional price move from entry to
// mark: positive when the move favors the order's direction.
func (o *SimulatedOrder) PriceChangeRatio(mark float64) float64 {
	if o.ActualEntryPrice == 0 {
		return 0
	}

	change := (mark - o.ActualEntryPrice) / o.ActualEntryPrice
	if o.Direction == DirectionShort {
		change = -change
	}

	return change
}

// UnrealizedPnlPct computes the gross, fee-exclusive pnl percent for the
// given mark price.
func (o *SimulatedOrder) UnrealizedPnlPct(mark float64) float64 {
	return o.PriceChangeRatio(mark) * o.Leverage * 100
}
