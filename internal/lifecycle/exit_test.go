package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

func baseOrder(entry time.Time) *models.SimulatedOrder {
	return &models.SimulatedOrder{
		OrderID:               "o1",
		Direction:             models.DirectionLong,
		Leverage:              1,
		EntryTime:             entry,
		ActualEntryPrice:      100,
		TakeProfitPct:         8,
		StopLossPct:           5,
		DynamicStopLossPct:    5,
		TrailingStopPct:       0.5,
		MinHoldingSeconds:     60,
		MaxHoldingHours:       4,
		MinReverseExitSeconds: 120,
	}
}

func TestEvaluateExitPriorityTakeProfitBeatsEverythingElse(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	snap := &models.MarketSnapshot{Mid: 109, VPIN: 0.9}

	reason, fire := eng.EvaluateExit(order, snap, false, entry.Add(200*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitTakeProfit, reason)
}

func TestEvaluateExitNoExitBeforeMinimumHoldingWindow(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	snap := &models.MarketSnapshot{Mid: 120} // way past TP, but too early

	reason, fire := eng.EvaluateExit(order, snap, true, entry.Add(30*time.Second))
	assert.False(t, fire, "no exit fires before max(min_holding_seconds, 60)")
	assert.Equal(t, models.ExitReason(""), reason)
}

func TestEvaluateExitMinimumHoldingFloorsAtSixtySeconds(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	order.MinHoldingSeconds = 5 // below the 60s floor
	snap := &models.MarketSnapshot{Mid: 120}

	_, fire := eng.EvaluateExit(order, snap, false, entry.Add(10*time.Second))
	assert.False(t, fire, "the 60s floor applies even when min_holding_seconds is configured lower")

	_, fire = eng.EvaluateExit(order, snap, false, entry.Add(61*time.Second))
	assert.True(t, fire)
}

func TestEvaluateExitTakeProfitFiresOnNetNotGrossPnl(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	order.PositionValue = 1000
	order.EntryFee = order.PositionValue * testFees().TakerRate

	// Gross pnl just clears TP at 8%, but round-trip fees push net pnl
	// below the 8% threshold.
	reason, fire := eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 108}, false, entry.Add(120*time.Second))
	assert.False(t, fire, "gross pnl alone must not satisfy take profit")
	assert.Equal(t, models.ExitReason(""), reason)

	// A larger move clears TP net of fees too.
	reason, fire = eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 112}, false, entry.Add(120*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitTakeProfit, reason)
}

func TestEvaluateExitVPINSpikeWorkedExample(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)

	// First tick: VPIN spikes to 0.88, pnl at 4.5% (TP=8% so the
	// VPIN_LOCK_PROFIT threshold is 6.4%); holding is only 100s, under
	// the 120s minimum reverse-exit window — must not exit yet.
	snap1 := &models.MarketSnapshot{Mid: 104.5, VPIN: 0.88}
	reason, fire := eng.EvaluateExit(order, snap1, false, entry.Add(100*time.Second))
	assert.False(t, fire, "must hold before the min reverse-exit window even with pnl under threshold")
	assert.Equal(t, models.ExitReason(""), reason)
	assert.True(t, order.VPINRiskMode)
	assert.InDelta(t, 3.5, order.DynamicStopLossPct, 1e-9, "stop should tighten to max(0.7*SL, 1.5%)")

	// Second tick: pnl has climbed to 6.5% (past the 6.4% lock-profit
	// threshold) and holding is now 230s, past the 120s window.
	snap2 := &models.MarketSnapshot{Mid: 106.5, VPIN: 0.88}
	reason, fire = eng.EvaluateExit(order, snap2, false, entry.Add(230*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitVPINLockProfit, reason)
}

func TestEvaluateExitStopLossUsesTightenedStopInRiskMode(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)

	// Enter VPIN risk mode first.
	eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 100.1, VPIN: 0.9}, false, entry.Add(65*time.Second))
	assert.True(t, order.VPINRiskMode)

	// -4% would not trip the base 5% stop, but does trip the tightened 3.5%.
	reason, fire := eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 96, VPIN: 0.9}, false, entry.Add(75*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitVPINProtectiveStop, reason)
}

func TestEvaluateExitTimeLimitClassifiesByProfitability(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	atMaxHold := entry.Add(4 * time.Hour)

	profitable := baseOrder(entry)
	reason, fire := eng.EvaluateExit(profitable, &models.MarketSnapshot{Mid: 101}, false, atMaxHold)
	assert.True(t, fire)
	assert.Equal(t, models.ExitTimeLimit, reason)

	unprofitable := baseOrder(entry)
	reason, fire = eng.EvaluateExit(unprofitable, &models.MarketSnapshot{Mid: 99}, false, atMaxHold)
	assert.True(t, fire)
	assert.Equal(t, models.ExitTimeStop, reason)
}

func TestEvaluateExitTrailingStopActivatesAtThirtyPercentOfTPForPositiveMode(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	order.TrailingStopPct = 0.5 // distance = TP * 0.5 = 4%; activation = TP * 0.3 = 2.4%

	// Peak never reaches the 2.4% activation threshold — no trail even
	// after a big giveback.
	eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 102}, false, entry.Add(65*time.Second))
	reason, fire := eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 100.5}, false, entry.Add(70*time.Second))
	assert.False(t, fire)
	assert.Equal(t, models.ExitReason(""), reason)

	// Peak clears activation (5% > 2.4%), then gives back more than the 4%
	// distance.
	order2 := baseOrder(entry)
	order2.TrailingStopPct = 0.5
	eng.EvaluateExit(order2, &models.MarketSnapshot{Mid: 105}, false, entry.Add(65*time.Second))
	reason, fire = eng.EvaluateExit(order2, &models.MarketSnapshot{Mid: 100.5}, false, entry.Add(70*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitTrailingStop, reason)
}

func TestEvaluateExitTrailingStopAbsoluteModeActivatesAtFivePercent(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	order.TrailingStopPct = -2 // absolute/AI mode: distance = 2%, activation = 5%

	// Peak at 4% never reaches the flat 5% activation.
	eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 104}, false, entry.Add(65*time.Second))
	reason, fire := eng.EvaluateExit(order, &models.MarketSnapshot{Mid: 101.5}, false, entry.Add(70*time.Second))
	assert.False(t, fire)
	assert.Equal(t, models.ExitReason(""), reason)

	order2 := baseOrder(entry)
	order2.TrailingStopPct = -2
	eng.EvaluateExit(order2, &models.MarketSnapshot{Mid: 106}, false, entry.Add(65*time.Second)) // peak 6% clears 5% activation
	reason, fire = eng.EvaluateExit(order2, &models.MarketSnapshot{Mid: 103.5}, false, entry.Add(70*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitTrailingStop, reason)
}

func TestEvaluateExitAIFlipOnlyFiresWhenRequested(t *testing.T) {
	eng := New(testFees())
	entry := time.Now()
	order := baseOrder(entry)
	snap := &models.MarketSnapshot{Mid: 100.2}

	_, fire := eng.EvaluateExit(order, snap, false, entry.Add(65*time.Second))
	assert.False(t, fire)

	reason, fire := eng.EvaluateExit(order, snap, true, entry.Add(65*time.Second))
	assert.True(t, fire)
	assert.Equal(t, models.ExitAIFlip, reason)
}
