package lifecycle

import (
	"time"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// Loss-review and cooldown thresholds (§4.8 "Post-close hooks"): a review
// is requested either on a second consecutive loss or a single loss worse
// than 2% ROI, with a short cooldown; a 5-loss streak escalates to a
// 30-minute suspension regardless of any AI response.
const (
	lossReviewStreakThreshold  = 2
	singleLossROIThreshold     = -2.0
	lossCooldownShort          = 30 * time.Second
	lossSuspendStreakThreshold = 5
	lossCooldownSuspend        = 30 * time.Minute
)

// PostCloseHooks runs after CloseOrder: updates the consecutive-loss
// streak and cooldown, and requests an AI loss review once a threshold is
// breached (§4.8 "Post-close hooks").
func PostCloseHooks(mode *models.ModeState, order *models.SimulatedOrder, now time.Time) {
	mode.Balance += order.PnlUSDT

	if order.PnlUSDT >= 0 {
		mode.ConsecutiveLosses = 0
		mode.LossReviewRequested = false
		return
	}

	mode.ConsecutiveLosses++

	if mode.ConsecutiveLosses >= lossReviewStreakThreshold || order.ROI <= singleLossROIThreshold {
		mode.LossReviewRequested = true
		mode.LossReviewNote = "consecutive loss streak or single-loss ROI breached review threshold"
		mode.LossCooldownUntil = now.Add(lossCooldownShort)
	}

	if mode.ConsecutiveLosses >= lossSuspendStreakThreshold {
		mode.LossCooldownUntil = now.Add(lossCooldownSuspend)
	}
}

// ApplyAIAdjustments applies the cooldown and the bounded, time-limited
// strategy switch an AI advisor recommended in its feedback block, in
// response to a loss review. The leverage multiplier, confidence
// threshold delta and stop-loss fields of AIAdjustments are not applied.
func ApplyAIAdjustments(mode *models.ModeState, adj models.AIAdjustments, now time.Time) {
	if adj.CooldownMinutes > 0 {
		cooldown := now.Add(time.Duration(adj.CooldownMinutes) * time.Minute)
		if cooldown.After(mode.LossCooldownUntil) {
			mode.LossCooldownUntil = cooldown
		}
	}

	if adj.StrategySwitch != "" && mode.StrategySwitchCount < 3 {
		mode.StrategySwitchStyle = adj.StrategySwitch
		mode.StrategySwitchUntil = now.Add(30 * time.Minute)
		mode.StrategySwitchCount++
	}
}

// maxPyramidEntries bounds pyramiding additions regardless of mode config.
const maxPyramidEntries = 3

// CanPyramid reports whether mode may add to its current position in the
// given direction: pyramiding must be enabled, bounded by MaxPyramid (and
// the hard ceiling of 3), and only in the direction of the existing
// position.
func CanPyramid(mode *models.ModeState, direction models.Direction) bool {
	if !mode.Config.PyramidEnabled {
		return false
	}

	open := mode.OpenOrders()
	if len(open) == 0 || len(open) >= maxPyramidEntries || len(open) >= mode.Config.MaxPyramid {
		return false
	}

	for _, o := range open {
		if o.Direction != direction {
			return false
		}
	}
	return true
}

// holdingTimeSweepRatio is the fraction of MaxHoldingHours at which an
// open order gets flagged as approaching its hard time limit.
const holdingTimeSweepRatio = 0.9

// SweepHoldingTime flags every open order past 90% of its max holding
// time, returning the flagged order IDs for the bridge status's
// risk_indicators block. Cheap enough to run every tick; distinct from
// the hard TIME_LIMIT/TIME_STOP exit evaluated in EvaluateExit.
func SweepHoldingTime(mode *models.ModeState, now time.Time) []string {
	var flagged []string
	for _, o := range mode.OpenOrders() {
		if o.MaxHoldingHours <= 0 {
			continue
		}
		threshold := o.MaxHoldingHours * 3600 * holdingTimeSweepRatio
		o.ApproachingMaxHold = o.HoldingSeconds(now) >= threshold
		if o.ApproachingMaxHold {
			flagged = append(flagged, o.OrderID)
		}
	}
	return flagged
}
