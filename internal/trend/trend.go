// Package trend derives the multi-window trend state, swing structure and
// market regime from the closed bar series (C4).
package trend

import (
	"github.com/quantshift/btc-perp-engine/internal/models"
	"github.com/quantshift/btc-perp-engine/internal/talib"
)

// window durations expressed in number of 3s bars.
const (
	shortBars  = 15  // 45s
	mediumBars = 60  // 180s
	longBars   = 300 // 900s

	regimeLookback = 60
)

// Analyzer is stateless across ticks; Analyze takes the full closed-bar
// history each call.
type Analyzer struct{}

// New returns a ready Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Result bundles every value this package contributes to the snapshot.
type Result struct {
	TrendState      models.TrendState
	TrendConfidence float64
	Structure       models.StructureState
	Regime          models.Regime
	RegimeDetail    models.RegimeDetail
	Consolidating   bool
	MomentumPct     float64
	VolatilityPct   float64
	RSI14           float64
	StochK, StochD  float64
	MA20            float64
	BollUpper       float64
	BollLower       float64
	SwingHigh       float64
	SwingLow        float64
}

// Analyze computes the full trend/structure/regime bundle from closed
// bars, oldest first. Returns the zero Result if fewer than 2 bars exist.
func (a *Analyzer) Analyze(closedBars []models.Bar) Result {
	var r Result
	if len(closedBars) < 2 {
		return r
	}

	closes := closesOf(closedBars)
	highs := highsOf(closedBars)
	lows := lowsOf(closedBars)

	shortTrend := windowReturn(closes, shortBars)
	mediumTrend := windowReturn(closes, mediumBars)
	longTrend := windowReturn(closes, longBars)

	r.TrendState, r.TrendConfidence = classifyTrend(shortTrend, mediumTrend, longTrend)
	r.MomentumPct = shortTrend * 100

	lookback := closedBars
	if len(lookback) > regimeLookback {
		lookback = lookback[len(lookback)-regimeLookback:]
	}
	lcloses := closesOf(lookback)
	lhighs := highsOf(lookback)
	llows := lowsOf(lookback)

	sma := talib.Sma(20, lcloses)
	std := talib.StdDev(20, lcloses)
	_, upper, lower := talib.BollingerBands(20, 2.0, lcloses)
	atr := talib.ATR(14, lhighs, llows, lcloses)
	_, rsi := talib.RSIPeriod(14, lcloses)
	k, d, _ := talib.KDJ(9, 3, 3, lhighs, llows, lcloses)

	last := func(v []float64) float64 {
		if len(v) == 0 {
			return 0
		}
		return v[len(v)-1]
	}

	r.MA20 = last(sma)
	r.BollUpper = last(upper)
	r.BollLower = last(lower)
	r.RSI14 = last(rsi)
	r.StochK = last(k)
	r.StochD = last(d)

	mid := closes[len(closes)-1]
	volPct := 0.0
	if mid > 0 {
		volPct = last(std) / mid * 100
	}
	r.VolatilityPct = volPct

	atrVal := last(atr)
	madist := 0.0
	if r.MA20 > 0 {
		madist = (mid - r.MA20) / r.MA20
	}
	r.RegimeDetail = models.RegimeDetail{MADistance: madist, Volatility: volPct}
	r.Regime = classifyRegime(madist, r.VolatilityPct)

	bandWidth := 0.0
	if r.MA20 > 0 && r.BollUpper > r.BollLower {
		bandWidth = (r.BollUpper - r.BollLower) / r.MA20
	}
	r.Consolidating = bandWidth > 0 && bandWidth < 0.012

	r.Structure = analyzeStructure(lhighs, llows, atrVal)

	r.SwingHigh, r.SwingLow = recentSwing(highs, lows)

	return r
}

func closesOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highsOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// windowReturn is the close-to-close return over the last n bars (or the
// full series if shorter).
func windowReturn(closes []float64, n int) float64 {
	if len(closes) < 2 {
		return 0
	}
	if n > len(closes) {
		n = len(closes) - 1
	}
	start := closes[len(closes)-1-n]
	end := closes[len(closes)-1]
	if start == 0 {
		return 0
	}
	return (end - start) / start
}

func classifyTrend(short, medium, long float64) (models.TrendState, float64) {
	avg := (short + medium + long) / 3
	agreement := sameSign(short, medium) && sameSign(medium, long)

	confidence := 0.4
	if agreement {
		confidence = 0.85
	}

	switch {
	case avg > 0.01 && agreement:
		return models.TrendStrongUp, confidence
	case avg > 0.003:
		return models.TrendLeanUp, confidence
	case avg < -0.01 && agreement:
		return models.TrendStrongDown, confidence
	case avg < -0.003:
		return models.TrendLeanDown, confidence
	default:
		return models.TrendRange, confidence
	}
}

func sameSign(a, b float64) bool {
	return (a >= 0) == (b >= 0)
}

func classifyRegime(madist, volPct float64) models.Regime {
	if volPct < 0.15 {
		return models.RegimeConsolidation
	}
	switch {
	case madist > 0.003:
		return models.RegimeBull
	case madist < -0.003:
		return models.RegimeBear
	default:
		return models.RegimeNeutral
	}
}

// analyzeStructure derives HH/HL/LH/LL swing structure using pivots
// bracketed by 2-bar shoulders and a structure-break threshold of
// 0.35x ATR.
func analyzeStructure(highs, lows []float64, atr float64) models.StructureState {
	var st models.StructureState
	if len(highs) < 5 {
		st.Direction = models.StructureRange
		return st
	}

	type pivot struct {
		idx   int
		price float64
		high  bool
	}

	var pivots []pivot
	for i := 2; i < len(highs)-2; i++ {
		if isPivotHigh(highs, i) {
			pivots = append(pivots, pivot{i, highs[i], true})
		}
		if isPivotLow(lows, i) {
			pivots = append(pivots, pivot{i, lows[i], false})
		}
	}

	if len(pivots) < 2 {
		st.Direction = models.StructureRange
		return st
	}

	bullish, bearish := 0, 0
	for i := 1; i < len(pivots); i++ {
		prev, cur := pivots[i-1], pivots[i]
		if cur.high == prev.high {
			continue
		}
		if cur.price > prev.price {
			bullish++
		} else if cur.price < prev.price {
			bearish++
		}
	}

	switch {
	case bullish > bearish:
		st.Direction = models.StructureBullish
		st.Persistence = bullish
	case bearish > bullish:
		st.Direction = models.StructureBearish
		st.Persistence = bearish
	default:
		st.Direction = models.StructureRange
	}

	last := pivots[len(pivots)-1]
	if atr > 0 {
		move := highs[len(highs)-1] - last.price
		if move < 0 {
			move = -move
		}
		st.StructureBreak = move > 0.35*atr
	}

	st.PullbackReady = st.Persistence >= 2 && !st.StructureBreak
	return st
}

func isPivotHigh(highs []float64, i int) bool {
	return highs[i] > highs[i-1] && highs[i] > highs[i-2] && highs[i] > highs[i+1] && highs[i] > highs[i+2]
}

func isPivotLow(lows []float64, i int) bool {
	return lows[i] < lows[i-1] && lows[i] < lows[i-2] && lows[i] < lows[i+1] && lows[i] < lows[i+2]
}

func recentSwing(highs, lows []float64) (high, low float64) {
	n := 40
	if len(highs) < n {
		n = len(highs)
	}
	if n == 0 {
		return 0, 0
	}
	h := highs[len(highs)-n:]
	l := lows[len(lows)-n:]

	high, low = h[0], l[0]
	for i := 1; i < len(h); i++ {
		if h[i] > high {
			high = h[i]
		}
		if l[i] < low {
			low = l[i]
		}
	}
	return high, low
}
