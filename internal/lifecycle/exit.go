package lifecycle

import (
	"time"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// EvaluateExit checks every exit condition in priority order and returns
// the first one that fires: take-profit, stop-loss, trailing stop, time
// limit/stop, VPIN spike protection, reverse signal, then AI force exit.
// No exit is considered before max(order.MinHoldingSeconds, 60) seconds
// have elapsed. Returns ("", false) if the order should remain open.
func (e *Engine) EvaluateExit(order *models.SimulatedOrder, snap *models.MarketSnapshot, aiForceExit bool, now time.Time) (models.ExitReason, bool) {
	minHold := order.MinHoldingSeconds
	if minHold < 60 {
		minHold = 60
	}
	holdingSec := order.HoldingSeconds(now)
	if holdingSec < minHold {
		return "", false
	}

	pnlPct := unrealizedGrossPct(order, snap.Mid)

	if pnlPct > order.PeakPnlPct {
		order.PeakPnlPct = pnlPct
	}

	updateVPINRiskMode(order, snap, now)

	// 1. Take profit fires on net pnl, after the round-trip fee cost.
	netPnlPct := pnlPct - e.totalFeePct(order)
	if netPnlPct >= order.TakeProfitPct {
		return models.ExitTakeProfit, true
	}

	// 2. Stop loss (tightened stop while in VPIN-risk mode), on gross pnl.
	sl := order.DynamicStopLossPct
	if pnlPct <= -sl {
		if order.VPINRiskMode {
			return models.ExitVPINProtectiveStop, true
		}
		return models.ExitStopLoss, true
	}

	// 3. Trailing stop: once price has moved far enough past activation to
	// earn a trail, give back only the configured distance off the peak.
	if trailingTriggered(order, pnlPct) {
		return models.ExitTrailingStop, true
	}

	// 4. Time limit / time stop, classified by profitability at the
	// max-holding boundary.
	if holdingSec >= order.MaxHoldingHours*3600 {
		if pnlPct > 0 {
			return models.ExitTimeLimit, true
		}
		return models.ExitTimeStop, true
	}

	// 5. VPIN spike protection lock-in: exit once pnl reaches 80% of TP
	// while still in VPIN-risk mode and past the minimum reverse-exit
	// holding window.
	if order.VPINRiskMode && pnlPct >= 0.8*order.TakeProfitPct && holdingSec >= order.MinReverseExitSeconds {
		return models.ExitVPINLockProfit, true
	}

	// 6. Reverse signal: only after the minimum reverse-exit window, and
	// only while pnl hasn't yet reached 40% of TP.
	if holdingSec >= order.MinReverseExitSeconds && pnlPct < order.TakeProfitPct*0.4 {
		if order.Direction == models.DirectionLong && snap.OBI < -0.3 && order.EntryOBI > 0 {
			return models.ExitReverseSignal, true
		}
		if order.Direction == models.DirectionShort && snap.OBI > 0.3 && order.EntryOBI < 0 {
			return models.ExitReverseSignal, true
		}
	}

	// 7. AI force exit (AI-driven modes only; caller determines
	// applicability before passing aiForceExit=true).
	if aiForceExit {
		return models.ExitAIFlip, true
	}

	return "", false
}

// updateVPINRiskMode enters VPIN-risk mode above 0.85 and tightens the
// dynamic stop; leaves it after 120s of VPIN staying at or below 0.85,
// restoring the original stop-loss percent.
func updateVPINRiskMode(order *models.SimulatedOrder, snap *models.MarketSnapshot, now time.Time) {
	if snap.VPIN > 0.85 {
		if !order.VPINRiskMode {
			order.VPINRiskMode = true
			order.VPINRiskTriggerAt = now

			tightened := 0.7 * order.StopLossPct
			floor := 1.5
			if tightened < floor {
				tightened = floor
			}
			order.DynamicStopLossPct = tightened
		}
		return
	}

	if order.VPINRiskMode && now.Sub(order.VPINRiskTriggerAt).Seconds() >= 120 {
		order.VPINRiskMode = false
		order.DynamicStopLossPct = order.StopLossPct
	}
}

// trailingTriggered implements the trailing-stop rule. A positive
// TrailingStopPct is a ratio of TP (the common case), activating once peak
// pnl reaches 30% of TP; a negative value is an AI-driven mode's absolute
// percent giveback from peak (see the package's sign convention note in
// models.SimulatedOrder), activating at a flat 5% peak pnl.
func trailingTriggered(order *models.SimulatedOrder, pnlPct float64) bool {
	if order.TrailingStopPct == 0 {
		return false
	}

	var distance, activation float64
	if order.TrailingStopPct > 0 {
		distance = order.TakeProfitPct * order.TrailingStopPct
		activation = order.TakeProfitPct * 0.3
	} else {
		distance = -order.TrailingStopPct
		activation = 5
	}

	if order.PeakPnlPct < activation {
		return false
	}

	return order.PeakPnlPct-pnlPct >= distance
}
