package decision

import "math"

// RiskConfig holds the dynamic leverage/sizing/TP/SL tuning shared by
// every non-AI style (§4.9 "Dynamic leverage/TP/SL computation").
type RiskConfig struct {
	MinLeverage float64
	MaxLeverage float64
	BaseTPPct   float64
	BaseSLPct   float64
}

// DefaultRiskConfig mirrors the teacher's risk defaults, rescaled from
// spot-style ATR multipliers to the futures leverage/percent terms this
// engine tracks per order.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MinLeverage: 3,
		MaxLeverage: 20,
		BaseTPPct:   3.0,
		BaseSLPct:   1.5,
	}
}

// RecommendLeverage scales leverage down as volatility rises and up as
// confidence rises, clamped to [MinLeverage, leverageCap].
func RecommendLeverage(cfg RiskConfig, volatilityPct, confidence, leverageCap float64) float64 {
	lev := cfg.MaxLeverage
	switch {
	case volatilityPct >= 3.0:
		lev = cfg.MinLeverage
	case volatilityPct >= 1.5:
		lev = cfg.MinLeverage * 2
	case confidence >= 0.85:
		lev = cfg.MaxLeverage
	default:
		lev = cfg.MaxLeverage * confidence
	}

	if lev < cfg.MinLeverage {
		lev = cfg.MinLeverage
	}
	if lev > leverageCap {
		lev = leverageCap
	}
	return lev
}

// PositionSizePercent scales a mode's base allocation by the decision's
// size multiplier and the current confidence, bounded to
// [0, maxSizeMultiplier * basePositionPct].
func PositionSizePercent(basePositionPct, sizeMultiplier, maxSizeMultiplier, confidence float64) float64 {
	mult := sizeMultiplier * confidence
	if mult > maxSizeMultiplier {
		mult = maxSizeMultiplier
	}
	if mult < 0 {
		mult = 0
	}
	return basePositionPct * mult
}

// QuantityFromAllocation computes contract quantity from an allocated
// notional (balance * pct/100 * leverage) at entryPrice.
func QuantityFromAllocation(balance, positionPct, leverage, entryPrice float64) float64 {
	if entryPrice <= 0 || leverage <= 0 || balance <= 0 || positionPct <= 0 {
		return 0
	}
	margin := balance * (positionPct / 100.0)
	return margin * leverage / entryPrice
}

// DynamicStopLoss widens the base stop when volatility is elevated, so a
// normal swing does not trip the stop prematurely.
func DynamicStopLoss(baseSLPct, volatilityPct float64) float64 {
	sl := baseSLPct
	if volatilityPct > 1.0 {
		sl = baseSLPct * (1 + (volatilityPct-1.0)*0.3)
	}
	return math.Min(sl, baseSLPct*3)
}
