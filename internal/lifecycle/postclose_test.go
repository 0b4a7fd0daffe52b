package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

func TestPostCloseHooksRequestsReviewAndShortCooldownOnSecondLoss(t *testing.T) {
	now := time.Now()
	mode := &models.ModeState{Balance: 1000}

	// First loss: small ROI, below the single-loss trigger, streak is 1 —
	// no review yet.
	PostCloseHooks(mode, &models.SimulatedOrder{PnlUSDT: -1, ROI: -0.5}, now)
	assert.Equal(t, 1, mode.ConsecutiveLosses)
	assert.False(t, mode.LossReviewRequested)

	// Second loss: streak reaches 2 — review requested, 30s cooldown.
	PostCloseHooks(mode, &models.SimulatedOrder{PnlUSDT: -1, ROI: -0.5}, now)
	assert.Equal(t, 2, mode.ConsecutiveLosses)
	assert.True(t, mode.LossReviewRequested)
	assert.NotEmpty(t, mode.LossReviewNote)
	assert.True(t, mode.InLossCooldown(now))
	assert.False(t, mode.InLossCooldown(now.Add(31*time.Second)))

	win := &models.SimulatedOrder{PnlUSDT: 25, ROI: 5}
	PostCloseHooks(mode, win, now)
	assert.Equal(t, 0, mode.ConsecutiveLosses)
	assert.False(t, mode.LossReviewRequested)
}

func TestPostCloseHooksRequestsReviewOnSingleLossOverTwoPercentROI(t *testing.T) {
	now := time.Now()
	mode := &models.ModeState{Balance: 1000}

	PostCloseHooks(mode, &models.SimulatedOrder{PnlUSDT: -23, ROI: -2.3}, now)
	assert.Equal(t, 1, mode.ConsecutiveLosses)
	assert.True(t, mode.LossReviewRequested, "a single loss worse than -2%% ROI triggers review even at streak 1")
	assert.True(t, mode.InLossCooldown(now))
}

func TestPostCloseHooksSuspendsThirtyMinutesAtFiveConsecutiveLosses(t *testing.T) {
	now := time.Now()
	mode := &models.ModeState{Balance: 1000}

	for i := 0; i < 5; i++ {
		PostCloseHooks(mode, &models.SimulatedOrder{PnlUSDT: -1, ROI: -0.5}, now)
	}

	assert.Equal(t, 5, mode.ConsecutiveLosses)
	assert.True(t, mode.InLossCooldown(now.Add(29*time.Minute)), "5 consecutive losses suspend for 30 minutes")
	assert.False(t, mode.InLossCooldown(now.Add(31*time.Minute)))
}

func TestCanPyramidRequiresSameDirectionAndBounds(t *testing.T) {
	mode := &models.ModeState{
		Config: models.ModeConfig{PyramidEnabled: true, MaxPyramid: 3},
		Orders: []*models.SimulatedOrder{{Direction: models.DirectionLong}},
	}

	assert.True(t, CanPyramid(mode, models.DirectionLong))
	assert.False(t, CanPyramid(mode, models.DirectionShort), "pyramiding must stay same-direction")

	mode.Config.PyramidEnabled = false
	assert.False(t, CanPyramid(mode, models.DirectionLong))
}

func TestCanPyramidHardCeilingOverridesConfig(t *testing.T) {
	mode := &models.ModeState{
		Config: models.ModeConfig{PyramidEnabled: true, MaxPyramid: 10},
		Orders: []*models.SimulatedOrder{
			{Direction: models.DirectionLong},
			{Direction: models.DirectionLong},
			{Direction: models.DirectionLong},
		},
	}

	assert.False(t, CanPyramid(mode, models.DirectionLong), "hard ceiling of 3 caps config's looser MaxPyramid")
}

func TestApplyAIAdjustmentsBoundsStrategySwitchCount(t *testing.T) {
	now := time.Now()
	mode := &models.ModeState{}

	for i := 0; i < 5; i++ {
		ApplyAIAdjustments(mode, models.AIAdjustments{StrategySwitch: models.StyleScalper}, now)
	}

	assert.Equal(t, 3, mode.StrategySwitchCount, "switch count must stay bounded at 3")
}

func TestSweepHoldingTimeFlagsOrdersPastNinetyPercent(t *testing.T) {
	now := time.Now()
	mode := &models.ModeState{
		Orders: []*models.SimulatedOrder{
			{OrderID: "fresh", EntryTime: now.Add(-time.Hour), MaxHoldingHours: 4},
			{OrderID: "stale", EntryTime: now.Add(-4 * time.Hour * 95 / 100), MaxHoldingHours: 4},
		},
	}

	flagged := SweepHoldingTime(mode, now)
	assert.Equal(t, []string{"stale"}, flagged)
	assert.False(t, mode.Orders[0].ApproachingMaxHold)
	assert.True(t, mode.Orders[1].ApproachingMaxHold)
}
