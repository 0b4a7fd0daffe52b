package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

func barsOf(closes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Open: c, High: c * 1.001, Low: c * 0.999, Close: c}
	}
	return bars
}

func TestAnalyzeReturnsZeroResultWithFewerThanTwoBars(t *testing.T) {
	a := New()
	r := a.Analyze(barsOf([]float64{100}))
	assert.Equal(t, models.TrendState(""), r.TrendState)
}

func TestAnalyzeClassifiesSteadyUptrendAsStrongUp(t *testing.T) {
	a := New()

	closes := make([]float64, 320)
	price := 100.0
	for i := range closes {
		price *= 1.0015
		closes[i] = price
	}

	r := a.Analyze(barsOf(closes))
	assert.Equal(t, models.TrendStrongUp, r.TrendState)
	assert.Greater(t, r.TrendConfidence, 0.5)
	assert.Greater(t, r.MomentumPct, 0.0)
}

func TestAnalyzeSwingHighLowBoundCloses(t *testing.T) {
	a := New()
	closes := []float64{100, 102, 98, 105, 101, 103, 99, 104, 100, 102}
	r := a.Analyze(barsOf(closes))

	assert.Greater(t, r.SwingHigh, r.SwingLow)
	for _, c := range closes {
		assert.LessOrEqual(t, c*0.999, r.SwingHigh*1.001)
	}
}

func TestClassifyRegimeLowVolatilityIsConsolidation(t *testing.T) {
	assert.Equal(t, models.RegimeConsolidation, classifyRegime(0.01, 0.1))
}

func TestClassifyRegimeBullRequiresPositiveMADistanceAndVolatility(t *testing.T) {
	assert.Equal(t, models.RegimeBull, classifyRegime(0.01, 1))
	assert.Equal(t, models.RegimeBear, classifyRegime(-0.01, 1))
	assert.Equal(t, models.RegimeNeutral, classifyRegime(0, 1))
}
