package models

import "time"

// VPINLevel classifies order-flow toxicity using hard thresholds.
type VPINLevel string

const (
	VPINLow      VPINLevel = "LOW"
	VPINNormal   VPINLevel = "NORMAL"
	VPINElevated VPINLevel = "ELEVATED"
	VPINDanger   VPINLevel = "DANGER"
	VPINCritical VPINLevel = "CRITICAL"
)

// Regime is the last-60-bars market regime classification.
type Regime string

const (
	RegimeBull          Regime = "BULL"
	RegimeBear          Regime = "BEAR"
	RegimeNeutral       Regime = "NEUTRAL"
	RegimeConsolidation Regime = "CONSOLIDATION"
)

// TrendState is the multi-window consensus trend direction.
type TrendState string

const (
	TrendStrongUp   TrendState = "STRONG_UP"
	TrendLeanUp     TrendState = "LEAN_UP"
	TrendRange      TrendState = "RANGE"
	TrendLeanDown   TrendState = "LEAN_DOWN"
	TrendStrongDown TrendState = "STRONG_DOWN"
)

// StructureDirection is the swing-structure classification.
type StructureDirection string

const (
	StructureBullish StructureDirection = "BULLISH"
	StructureBearish StructureDirection = "BEARISH"
	StructureRange   StructureDirection = "RANGE"
)

// StructureState carries the swing-structure analysis for one tick.
type StructureState struct {
	Direction      StructureDirection
	Persistence    int
	StructureBreak bool
	PullbackReady  bool
}

// CascadeLevel classifies the 1-minute liquidation total.
type CascadeLevel string

const (
	CascadeQuiet       CascadeLevel = "QUIET"
	CascadeBuilding    CascadeLevel = "BUILDING"
	CascadeMinor       CascadeLevel = "MINOR"
	CascadeSignificant CascadeLevel = "SIGNIFICANT"
	CascadeMajor       CascadeLevel = "MAJOR"
	CascadeExtreme     CascadeLevel = "EXTREME"
)

// CascadeDirection classifies which side is being forced out.
type CascadeDirection string

const (
	CascadeLongLiquidation  CascadeDirection = "LONG_LIQUIDATION"
	CascadeShortLiquidation CascadeDirection = "SHORT_LIQUIDATION"
	CascadeMixed            CascadeDirection = "MIXED"
)

// CascadeAction is the actionable direction synthesized from a cascade.
type CascadeAction string

const (
	CascadeActionLong  CascadeAction = "LONG"
	CascadeActionShort CascadeAction = "SHORT"
	CascadeActionHold  CascadeAction = "HOLD"
)

// CascadeSignal is the per-tick synthesis produced by cascade.Detector.
type CascadeSignal struct {
	Active    bool
	Direction CascadeAction
	Strength  float64
	Level     CascadeLevel
	Cooling   bool
}

// PressureLevel classifies a liquidation-pressure score.
type PressureLevel string

const (
	PressureVeryLow PressureLevel = "VERY_LOW"
	PressureLow     PressureLevel = "LOW"
	PressureMedium  PressureLevel = "MEDIUM"
	PressureHigh    PressureLevel = "HIGH"
	PressureExtreme PressureLevel = "EXTREME"
)

// LiquidationPressure carries the two directional pressure scores derived
// from the externally collected snapshot (C7). Available is false until a
// snapshot has been parsed at least once.
type LiquidationPressure struct {
	Available  bool
	LongScore  float64
	ShortScore float64
	LongLevel  PressureLevel
	ShortLevel PressureLevel
}

// MarketSnapshot is immutable for the duration of one decision tick — see
// snapshot.Builder.Build.
type MarketSnapshot struct {
	TS time.Time

	Mid       float64
	BestBid   float64
	BestAsk   float64
	SpreadBps float64
	Spread    float64

	OBI                float64
	DepthImbalance     float64
	MicropricePressure float64
	SignedVolume       float64
	SignedVolumeRate   float64

	VPIN      float64
	VPINLevel VPINLevel

	FundingZScore float64
	SignalScore   float64

	Regime          Regime
	RegimeDetail    RegimeDetail
	TrendState      TrendState
	TrendConfidence float64
	Structure       StructureState
	Consolidating   bool

	MomentumPct   float64
	VolatilityPct float64

	RSI14      float64
	StochK     float64
	StochD     float64
	MA20       float64
	BollUpper  float64
	BollLower  float64

	Cascade  CascadeSignal
	Pressure LiquidationPressure

	RecentSwingHigh float64
	RecentSwingLow  float64
	RangePosition   float64
	LateEntryRisk   float64

	Whale *WhaleSignal
}

// RegimeDetail carries the numeric detail behind the Regime enum.
type RegimeDetail struct {
	MADistance  float64
	Volatility  float64
	VolumeRatio float64
}
