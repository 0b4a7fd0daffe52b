// Package decision is the per-mode, per-tick decision engine (C10). It
// dispatches to a style-specific filter pipeline, applies the common
// sniper filters shared by every non-AI style, and folds in whale and
// liquidation-pressure signals before producing a models.Decision for the
// lifecycle engine to act on. The snapshot's cascade signal is not read.
package decision

import (
	"math"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/bridge"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

// Engine evaluates one mode against the current MarketSnapshot.
type Engine struct {
	risk RiskConfig

	fundingThreshold float64
	signalThreshold  float64
	feeCostMin       float64

	bridges map[string]*bridge.File
}

// New returns an Engine with the default risk configuration.
func New(feeCostMin float64, bridges map[string]*bridge.File) *Engine {
	return &Engine{
		risk:             DefaultRiskConfig(),
		fundingThreshold: 1.5,
		signalThreshold:  1.0,
		feeCostMin:       feeCostMin,
		bridges:          bridges,
	}
}

// Evaluate runs the full decision pipeline for one mode on one tick.
func (e *Engine) Evaluate(now time.Time, mode *models.ModeState, snap *models.MarketSnapshot) models.Decision {
	style := mode.EffectiveStyle(now)

	if mode.InLossCooldown(now) {
		return hold(mode, snap, "loss_cooldown")
	}

	if style.IsAI() {
		return e.evaluateAI(now, mode, snap, style)
	}

	if style.IsDirectionProbe() {
		return e.evaluateDirectionProbe(mode, snap, style)
	}

	if hold, reason := commonSniperFilters(mode, snap); hold {
		return holdStage(mode, snap, "common_filter", reason)
	}

	if holdEarly, reason := styleEarlyHold(style, snap); holdEarly {
		return holdStage(mode, snap, "style_early_hold", reason)
	}

	action, confidence, reason := formSignal(mode, snap, e.fundingThreshold, e.signalThreshold)
	if action == models.ActionHold {
		return holdStage(mode, snap, "signal_formation", reason)
	}

	if mode.Config.InvertSignal {
		action = invert(action)
	}

	if !microConfirm(style, action, snap) {
		return holdStage(mode, snap, "micro_confirmation", "micro_direction_mismatch")
	}

	expectedMovePct := math.Abs(snap.SignalScore) * 0.5
	feeCost := e.feeCostMin
	leverage := RecommendLeverage(e.risk, snap.VolatilityPct, confidence, mode.Config.BaseLeverageCap)
	expectedMoveLevered := expectedMovePct * leverage / 100

	if snap.VPIN > 0.75 && !aiExemptCostCheck(style) {
		if expectedMoveLevered <= 2*feeCost {
			return holdStage(mode, snap, "cost_aware_filter", "expected_move_below_2x_fee")
		}
	}

	action, confidence = applyPressureAdjustment(action, confidence, snap.Pressure)

	return models.Decision{
		Mode:           mode.Config.Name,
		Action:         action,
		Reason:         reason,
		Confidence:     confidence,
		SizeMultiplier: math.Min(confidence*1.2, mode.Config.MaxSizeMultiplier),
		Stage:          "entry_signal",
		Snapshot:       snap,
	}
}

func hold(mode *models.ModeState, snap *models.MarketSnapshot, reason string) models.Decision {
	return holdStage(mode, snap, "filter", reason)
}

func holdStage(mode *models.ModeState, snap *models.MarketSnapshot, stage, reason string) models.Decision {
	return models.Decision{
		Mode:     mode.Config.Name,
		Action:   models.ActionHold,
		Reason:   reason,
		Stage:    stage,
		Snapshot: snap,
	}
}

func invert(a models.Action) models.Action {
	switch a {
	case models.ActionLong:
		return models.ActionShort
	case models.ActionShort:
		return models.ActionLong
	default:
		return a
	}
}

// commonSniperFilters implements the HOLD gates shared by every non-AI,
// non-probe style (§4.7 step 4-6).
func commonSniperFilters(mode *models.ModeState, snap *models.MarketSnapshot) (bool, string) {
	if snap.SpreadBps > 3.0 {
		return true, "spread_too_wide"
	}
	if math.Abs(snap.OBI) < 0.1 {
		return true, "obi_too_flat"
	}
	if (snap.VPINLevel == models.VPINDanger || snap.VPINLevel == models.VPINCritical) && !mode.Config.AllowRelaxed {
		return true, "vpin_danger"
	}
	return false, ""
}

// styleEarlyHold implements the style-specific early HOLD conditions.
func styleEarlyHold(style models.StrategyStyle, snap *models.MarketSnapshot) (bool, string) {
	switch style {
	case models.StyleTrend:
		if snap.Structure.StructureBreak || snap.Structure.Persistence < 3 || math.Abs(snap.MomentumPct) < 3 || snap.Consolidating {
			return true, "trend_structure_weak"
		}
	case models.StyleScalper:
		if math.Abs(snap.SignedVolumeRate)+math.Abs(snap.MicropricePressure) < 4e-4 {
			return true, "no_micro_impulse"
		}
	case models.StyleReversion:
		rangeWidth := 0.0
		if snap.Mid > 0 {
			rangeWidth = (snap.RecentSwingHigh - snap.RecentSwingLow) / snap.Mid
		}
		inEdge := snap.RangePosition <= 0.22 || snap.RangePosition >= 0.78
		if rangeWidth < 0.0015 || !inEdge {
			return true, "range_not_extended"
		}
	}
	return false, ""
}

// formSignal derives the candidate action/confidence/reason using whale
// signals first, then the funding-bias path (§4.7 step 6).
func formSignal(mode *models.ModeState, snap *models.MarketSnapshot, fundingThreshold, signalThreshold float64) (models.Action, float64, string) {
	if snap.Whale != nil && time.Since(snap.Whale.TS) <= 60*time.Second && snap.VPIN <= 0.8 {
		action := models.ActionLong
		if snap.Whale.Direction == models.DirectionShort {
			action = models.ActionShort
		}
		return action, 0.75, "whale_signal"
	}

	if math.Abs(snap.FundingZScore) > fundingThreshold && snap.SignalScore > signalThreshold {
		action := models.ActionShort
		if snap.OBI >= 0 {
			action = models.ActionLong
		}
		confidence := math.Min(1, snap.SignalScore/signalThreshold)
		return action, confidence, "funding_bias"
	}

	return models.ActionHold, 0, "no_signal"
}

// microConfirm applies the microstructure confirmation gate (§4.7 step 7).
func microConfirm(style models.StrategyStyle, action models.Action, snap *models.MarketSnapshot) bool {
	if style == models.StyleLPWhaleBurst {
		return true
	}

	microDirection := models.ActionHold
	switch {
	case snap.OBI > 0.1 && snap.MicropricePressure > 0:
		microDirection = models.ActionLong
	case snap.OBI < -0.1 && snap.MicropricePressure < 0:
		microDirection = models.ActionShort
	}

	return microDirection == models.ActionHold || microDirection == action
}

func aiExemptCostCheck(style models.StrategyStyle) bool {
	return style == models.StyleWhale || style.IsDirectionProbe() || style.IsAI()
}

// applyPressureAdjustment boosts confidence when liquidation pressure
// agrees with the candidate direction. Disagreeing pressure leaves the
// confidence unchanged and never vetoes the action.
func applyPressureAdjustment(action models.Action, confidence float64, p models.LiquidationPressure) (models.Action, float64) {
	if !p.Available {
		return action, confidence
	}

	switch action {
	case models.ActionLong:
		if p.ShortLevel == models.PressureHigh || p.ShortLevel == models.PressureExtreme {
			confidence = math.Min(1, confidence*1.15)
		}
	case models.ActionShort:
		if p.LongLevel == models.PressureHigh || p.LongLevel == models.PressureExtreme {
			confidence = math.Min(1, confidence*1.15)
		}
	}
	return action, confidence
}

// evaluateDirectionProbe unconditionally signals one direction at low
// confidence, used to gather AI training data across every regime.
func (e *Engine) evaluateDirectionProbe(mode *models.ModeState, snap *models.MarketSnapshot, style models.StrategyStyle) models.Decision {
	action := models.ActionLong
	if style == models.StyleDirectionProbeShort {
		action = models.ActionShort
	}

	return models.Decision{
		Mode:           mode.Config.Name,
		Action:         action,
		Reason:         "direction_probe",
		Confidence:     0.5,
		SizeMultiplier: 1,
		Stage:          "direction_probe",
		Snapshot:       snap,
	}
}
