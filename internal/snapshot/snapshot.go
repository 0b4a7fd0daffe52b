// Package snapshot assembles the immutable per-tick MarketSnapshot (C8)
// from the microstructure, bar, trend, whale, cascade and pressure
// components. It holds no state of its own.
package snapshot

import (
	"time"

	"github.com/quantshift/btc-perp-engine/internal/bars"
	"github.com/quantshift/btc-perp-engine/internal/cascade"
	"github.com/quantshift/btc-perp-engine/internal/microstructure"
	"github.com/quantshift/btc-perp-engine/internal/models"
	"github.com/quantshift/btc-perp-engine/internal/pressure"
	"github.com/quantshift/btc-perp-engine/internal/trend"
	"github.com/quantshift/btc-perp-engine/internal/whale"
)

// Builder merges one tick's worth of component state into a single
// MarketSnapshot. It is deliberately stateless: every field is read from
// the component it belongs to.
type Builder struct {
	book    *microstructure.Book
	bars    *bars.Aggregator
	trend   *trend.Analyzer
	whales  *whale.Tracker
	cascade *cascade.Detector
	pressure *pressure.Reader
}

// New wires a Builder to its component instances.
func New(book *microstructure.Book, barAgg *bars.Aggregator, trendAnalyzer *trend.Analyzer, whales *whale.Tracker, cascadeDetector *cascade.Detector, pressureReader *pressure.Reader) *Builder {
	return &Builder{
		book:     book,
		bars:     barAgg,
		trend:    trendAnalyzer,
		whales:   whales,
		cascade:  cascadeDetector,
		pressure: pressureReader,
	}
}

// Build assembles the full MarketSnapshot for now.
func (b *Builder) Build(now time.Time, fundingZScore, signalScore float64, pressureStaleAfter time.Duration) models.MarketSnapshot {
	feat := b.book.Compute(now)
	closed := b.bars.Closed(0)
	tr := b.trend.Analyze(closed)
	cascadeSig := b.cascade.Evaluate(now)
	pressureVal := models.LiquidationPressure{}
	if b.pressure != nil {
		pressureVal = b.pressure.Read(now, pressureStaleAfter)
	}

	whaleSig, hasWhale := b.whales.LastSignal(now, 60*time.Second)

	snap := models.MarketSnapshot{
		TS: now,

		Mid:       feat.Mid,
		BestBid:   feat.BestBid,
		BestAsk:   feat.BestAsk,
		SpreadBps: feat.SpreadBps,
		Spread:    feat.Spread,

		OBI:                feat.OBI,
		DepthImbalance:     feat.DepthImbalance,
		MicropricePressure: feat.MicropricePressure,
		SignedVolume:       feat.SignedVolume,
		SignedVolumeRate:   feat.SignedVolumeRate,

		VPIN:      feat.VPIN,
		VPINLevel: feat.VPINLevel,

		FundingZScore: fundingZScore,
		SignalScore:   signalScore,

		Regime:          tr.Regime,
		RegimeDetail:    tr.RegimeDetail,
		TrendState:      tr.TrendState,
		TrendConfidence: tr.TrendConfidence,
		Structure:       tr.Structure,
		Consolidating:   tr.Consolidating,

		MomentumPct:   tr.MomentumPct,
		VolatilityPct: tr.VolatilityPct,

		RSI14:     tr.RSI14,
		StochK:    tr.StochK,
		StochD:    tr.StochD,
		MA20:      tr.MA20,
		BollUpper: tr.BollUpper,
		BollLower: tr.BollLower,

		Cascade:  cascadeSig,
		Pressure: pressureVal,

		RecentSwingHigh: tr.SwingHigh,
		RecentSwingLow:  tr.SwingLow,
	}

	snap.RangePosition = rangePosition(snap.Mid, tr.SwingHigh, tr.SwingLow)
	snap.LateEntryRisk = lateEntryRisk(snap.RangePosition, tr.TrendState)

	if hasWhale {
		snap.Whale = &whaleSig
	}

	return snap
}

func rangePosition(mid, high, low float64) float64 {
	if high <= low {
		return 0.5
	}
	pos := (mid - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos
}

// lateEntryRisk climbs as price sits deep into a range in the direction
// already implied by the trend — chasing a STRONG_UP move near the top of
// its swing is a late entry.
func lateEntryRisk(rangePos float64, trendState models.TrendState) float64 {
	switch trendState {
	case models.TrendStrongUp, models.TrendLeanUp:
		return rangePos
	case models.TrendStrongDown, models.TrendLeanDown:
		return 1 - rangePos
	default:
		return 0.3
	}
}

// FundingZScoreProxy derives a dimensionless directional bias from OBI in
// the absence of a real funding-rate feed (see Open Question decisions in
// DESIGN.md): proxy = obi * 5, clamped to [-3, 3].
func FundingZScoreProxy(obi float64) float64 {
	z := obi * 5
	if z > 3 {
		z = 3
	}
	if z < -3 {
		z = -3
	}
	return z
}

// SignalScore derives the generic signal-strength score used by the
// funding-bias entry path: |obi| * 2, clamped to [0, 2].
func SignalScore(obi float64) float64 {
	s := obi * 2
	if s < 0 {
		s = -s
	}
	if s > 2 {
		s = 2
	}
	return s
}
