package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantshift/btc-perp-engine/internal/config"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

func testFees() config.FeeConfig {
	return config.FeeConfig{TakerRate: 0.0004, MakerRate: 0.0002, FundingRate: 0.0001}
}

func baseMode() *models.ModeState {
	return &models.ModeState{
		Config: models.ModeConfig{
			Name:              "test",
			BasePositionPct:   5,
			MaxSizeMultiplier: 1.5,
			BaseLeverageCap:   10,
		},
		Balance: 1000,
	}
}

func TestCreateOrderTakerPositionValueFixed(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())

	assert.Equal(t, models.MakerFilled, order.MakerStatus)
	assert.Greater(t, order.PositionValue, 0.0)
	assert.Greater(t, order.EntryFee, 0.0)
	assert.Equal(t, order.EntryFee, order.TotalFees)
}

func TestCloseOrderPnlMatchesFormula(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())
	exitPrice := order.ActualEntryPrice * 1.02

	eng.CloseOrder(order, exitPrice, models.ExitTakeProfit, time.Now())

	// PositionValue already bakes in leverage once (at creation); gross
	// pnl must not reapply it.
	expectedGrossUSD := order.PositionValue * order.PriceChangeRatio(exitPrice)
	expectedPnl := expectedGrossUSD - order.TotalFees

	assert.InDelta(t, expectedPnl, order.PnlUSDT, 1e-6)
	assert.False(t, order.ExitTime.Before(order.EntryTime))
}

func TestCloseOrderDoesNotDoubleCountLeverageInGrossPnl(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()
	mode.Config.BaseLeverageCap = 60

	snap := &models.MarketSnapshot{Mid: 87000, VolatilityPct: 0.01}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.95, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())
	exitPrice := order.ActualEntryPrice * 1.0118 // ~1.18% favorable move

	eng.CloseOrder(order, exitPrice, models.ExitTakeProfit, time.Now())

	// gross pnl as a fraction of PositionValue must equal the raw price
	// change, not the price change re-leveraged a second time.
	change := order.PriceChangeRatio(exitPrice)
	grossUSD := order.PnlUSDT + order.TotalFees
	assert.InDelta(t, change, grossUSD/order.PositionValue, 1e-9)

	margin := order.PositionValue / order.Leverage
	assert.Less(t, order.ROI, 100.0, "a ~1.2% favorable move must not produce a multi-thousand-percent ROI")
	assert.InDelta(t, order.PnlUSDT/margin*100, order.ROI, 1e-6)
}

func TestCloseOrderUsesMakerExitFeeWhenEntryWasMaker(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()
	mode.Config.MakerEnabled = true
	mode.Config.MakerOffsetBps = 5
	mode.Config.MakerTimeoutSeconds = 10

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())
	now := order.MakerCreatedTime
	eng.CheckPendingMaker(order, order.MakerLimitPrice, 0, now)
	assert.True(t, order.EntryIsMaker)

	eng.CloseOrder(order, order.ActualEntryPrice*1.01, models.ExitTakeProfit, now.Add(time.Minute))
	assert.InDelta(t, order.PositionValue*testFees().MakerRate, order.ExitFee, 1e-9)
}

func TestMakerFillAtOrBeyondLimit(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()
	mode.Config.MakerEnabled = true
	mode.Config.MakerOffsetBps = 5
	mode.Config.MakerTimeoutSeconds = 10

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())
	assert.Equal(t, models.MakerPending, order.MakerStatus)

	now := order.MakerCreatedTime
	ev := eng.CheckPendingMaker(order, order.MakerLimitPrice, 0, now)
	assert.Nil(t, ev)
	assert.Equal(t, models.MakerFilled, order.MakerStatus)
}

func TestMakerFillsOnTradeTouchEvenWhenMidHasNotCrossed(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()
	mode.Config.MakerEnabled = true
	mode.Config.MakerOffsetBps = 5
	mode.Config.MakerTimeoutSeconds = 10

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())
	assert.Equal(t, models.MakerPending, order.MakerStatus)

	now := order.MakerCreatedTime
	// mid has not touched the limit, but a trade print did.
	ev := eng.CheckPendingMaker(order, snap.Mid, order.MakerLimitPrice, now)
	assert.Nil(t, ev)
	assert.Equal(t, models.MakerFilled, order.MakerStatus)
}

func TestMakerTimeoutFallsBackToTaker(t *testing.T) {
	eng := New(testFees())
	mode := baseMode()
	mode.Config.MakerEnabled = true
	mode.Config.MakerOffsetBps = 5
	mode.Config.MakerTimeoutSeconds = 5

	snap := &models.MarketSnapshot{Mid: 60000, VolatilityPct: 1}
	d := models.Decision{Action: models.ActionLong, Confidence: 0.8, SizeMultiplier: 1, Snapshot: snap}

	order := eng.CreateOrder(mode, d, time.Now())

	later := order.MakerCreatedTime.Add(6 * time.Second)
	ev := eng.CheckPendingMaker(order, snap.Mid, 0, later)

	assert.NotNil(t, ev)
	assert.Equal(t, "TAKER_FALLBACK", ev.Resolved)
	assert.Equal(t, models.MakerTakerFallback, order.MakerStatus)
}
