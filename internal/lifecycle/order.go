// Package lifecycle owns the simulated order state machine (C11): order
// creation with dynamic leverage/TP/SL, the maker/taker fill simulation,
// priority-ordered exit evaluation, close accounting, and the post-trade
// feedback hooks that feed back into mode state and the AI bridge.
package lifecycle

import (
	"fmt"
	"math"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/config"
	"github.com/quantshift/btc-perp-engine/internal/decision"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

// Engine applies fee rates and risk config when creating, pricing and
// closing simulated orders.
type Engine struct {
	fees config.FeeConfig
	risk decision.RiskConfig

	seq int
}

// New returns an Engine using the given fee schedule.
func New(fees config.FeeConfig) *Engine {
	return &Engine{fees: fees, risk: decision.DefaultRiskConfig()}
}

// CreateOrder builds a new SimulatedOrder from a LONG/SHORT decision,
// choosing maker or taker execution per the mode's config, and recording
// the entry-time microstructure readings needed by later exit checks.
func (e *Engine) CreateOrder(mode *models.ModeState, d models.Decision, now time.Time) *models.SimulatedOrder {
	snap := d.Snapshot
	direction := models.DirectionLong
	if d.Action == models.ActionShort {
		direction = models.DirectionShort
	}

	leverage := decision.RecommendLeverage(e.risk, snap.VolatilityPct, d.Confidence, mode.Config.BaseLeverageCap)
	positionPct := decision.PositionSizePercent(mode.Config.BasePositionPct, d.SizeMultiplier, mode.Config.MaxSizeMultiplier, d.Confidence)

	entryPrice := snap.Mid
	positionValue := mode.Balance * positionPct / 100 * leverage

	e.seq++
	order := &models.SimulatedOrder{
		OrderID:       fmt.Sprintf("%s-%d-%d", mode.Config.Name, now.UnixNano(), e.seq),
		Mode:          mode.Config.Name,
		Direction:     direction,
		Leverage:      leverage,
		PositionValue: positionValue,
		EntryTime:     now,
		EntryPrice:    entryPrice,

		TakeProfitPct:         e.risk.BaseTPPct,
		StopLossPct:           e.risk.BaseSLPct,
		DynamicStopLossPct:    decision.DynamicStopLoss(e.risk.BaseSLPct, snap.VolatilityPct),
		TrailingStopPct:       0.5,
		MinHoldingSeconds:     60,
		MaxHoldingHours:       4,
		MinReverseExitSeconds: 120,

		EntryOBI:    snap.OBI,
		EntryVPIN:   snap.VPIN,
		EntrySpread: snap.SpreadBps,
		EntryReason: d.Reason,
	}

	if mode.Config.MakerEnabled {
		e.openMaker(order, mode, snap)
	} else {
		e.fillTaker(order, entryPrice)
	}

	return order
}

func (e *Engine) openMaker(order *models.SimulatedOrder, mode *models.ModeState, snap *models.MarketSnapshot) {
	offset := mode.Config.MakerOffsetBps / 1e4
	limitPrice := snap.Mid
	if order.Direction == models.DirectionLong {
		limitPrice = snap.Mid * (1 - offset)
	} else {
		limitPrice = snap.Mid * (1 + offset)
	}

	order.MakerStatus = models.MakerPending
	order.MakerLimitPrice = limitPrice
	order.MakerTimeoutSeconds = mode.Config.MakerTimeoutSeconds
	order.MakerAllowTakerFallback = true
	order.MakerCreatedTime = order.EntryTime
}

func (e *Engine) fillTaker(order *models.SimulatedOrder, entryPrice float64) {
	order.MakerStatus = models.MakerFilled
	order.ActualEntryPrice = entryPrice
	order.EntryFee = order.PositionValue * e.fees.TakerRate
	order.TotalFees += order.EntryFee
}

// makerTouchedByTrade reports whether a trade print crossed the limit
// price intrasecond — a secondary fill signal alongside the book-extreme
// touch rule, since depth snapshots can lag trades by up to one tick.
func makerTouchedByTrade(order *models.SimulatedOrder, lastTradePrice float64) bool {
	if lastTradePrice <= 0 {
		return false
	}
	if order.Direction == models.DirectionLong {
		return lastTradePrice <= order.MakerLimitPrice
	}
	return lastTradePrice >= order.MakerLimitPrice
}

// CheckPendingMaker advances a PENDING maker order: fills it if the
// market traded through the limit price — either the mid price or a
// trade print (lastTradePrice) touched it — falls back to taker or
// cancels on timeout.
func (e *Engine) CheckPendingMaker(order *models.SimulatedOrder, mid, lastTradePrice float64, now time.Time) *models.MakerTimeoutEvent {
	if order.MakerStatus != models.MakerPending {
		return nil
	}

	filled := (order.Direction == models.DirectionLong && mid <= order.MakerLimitPrice) ||
		(order.Direction == models.DirectionShort && mid >= order.MakerLimitPrice) ||
		makerTouchedByTrade(order, lastTradePrice)

	if filled {
		order.MakerStatus = models.MakerFilled
		order.MakerFilledTime = now
		order.ActualEntryPrice = order.MakerLimitPrice
		order.EntryIsMaker = true
		order.EntryFee = order.PositionValue * e.fees.MakerRate
		order.TotalFees += order.EntryFee
		return nil
	}

	if now.Sub(order.MakerCreatedTime).Seconds() < order.MakerTimeoutSeconds {
		return nil
	}

	ev := &models.MakerTimeoutEvent{OrderID: order.OrderID, Timestamp: now}

	if order.MakerAllowTakerFallback {
		order.MakerStatus = models.MakerTakerFallback
		order.ActualEntryPrice = mid
		order.EntryFee = order.PositionValue * e.fees.TakerRate
		order.TotalFees += order.EntryFee
		ev.Resolved = "TAKER_FALLBACK"
	} else {
		order.MakerStatus = models.MakerCancelled
		order.IsBlocked = true
		order.BlockReason = "maker_timeout_no_fallback"
		ev.Resolved = "CANCELLED"
	}

	return ev
}

// unrealizedGrossPct returns the fee-exclusive pnl percent for an
// already-filled order at the given mark price.
func unrealizedGrossPct(order *models.SimulatedOrder, mark float64) float64 {
	return order.UnrealizedPnlPct(mark)
}

// exitFeeRate returns the fee rate for the closing trade, matching the
// side the entry actually filled on.
func (e *Engine) exitFeeRate(order *models.SimulatedOrder) float64 {
	if order.EntryIsMaker {
		return e.fees.MakerRate
	}
	return e.fees.TakerRate
}

// totalFeePct estimates the round-trip fee cost so far as a percent of
// margin (the same ROI-like units as TakeProfitPct/pnlPct), combining the
// entry fee already charged, the exit fee at the matching maker/taker
// side, and funding accrued while the position was open.
func (e *Engine) totalFeePct(order *models.SimulatedOrder) float64 {
	if order.PositionValue == 0 || order.Leverage == 0 {
		return 0
	}
	margin := order.PositionValue / order.Leverage
	exitFee := order.PositionValue * e.exitFeeRate(order)
	return (order.EntryFee + exitFee + order.FundingFee) / margin * 100
}

// CloseOrder finalizes an order's accounting at the given exit price and
// reason. Fees and funding are charged exactly once; PnlUSDT is net of
// all fees. PositionValue is already the leveraged notional (leverage is
// baked in once, at order creation), so the gross pnl uses the raw price
// change ratio and must not reapply leverage.
func (e *Engine) CloseOrder(order *models.SimulatedOrder, exitPrice float64, reason models.ExitReason, now time.Time) {
	order.ExitPrice = exitPrice
	order.ExitTime = now
	order.ExitReason = reason

	order.ExitFee = order.PositionValue * e.exitFeeRate(order)
	order.TotalFees = order.EntryFee + order.ExitFee + order.FundingFee

	grossUSD := order.PositionValue * order.PriceChangeRatio(exitPrice)

	order.PnlUSDT = grossUSD - order.TotalFees
	if order.PositionValue > 0 && order.Leverage > 0 {
		order.ROI = order.PnlUSDT / (order.PositionValue / order.Leverage) * 100
	}
}

// ApplyFunding charges one funding interval's fee against the order,
// using the configured funding rate against the position notional.
func (e *Engine) ApplyFunding(order *models.SimulatedOrder) {
	order.FundingFee += order.PositionValue * math.Abs(e.fees.FundingRate)
}
