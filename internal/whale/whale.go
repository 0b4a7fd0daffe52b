// Package whale tracks large trades (C5): it maintains the short/long
// trade windows, emits WhaleSignal snapshots, tracks reversal risk after a
// signal fires, and scores signal quality using the teacher's bounded
// LPHeap to rank the highest-quality recent signals.
package whale

import (
	"fmt"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/libs/heap"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

const (
	// WhaleQtyBTC is the minimum trade size counted as a large trade.
	WhaleQtyBTC = 1.0

	shortWindow = 30 * time.Second
	longWindow  = 800 // max records retained in the long window

	minCount          = 3
	minTotalQty        = 3.0
	minDominanceRatio  = 0.6
)

// qualityItem adapts a scored whale signal to heap.Item.
type qualityItem struct {
	id    string
	score float64
	sig   models.WhaleSignal
}

func (q qualityItem) ID() string      { return q.id }
func (q qualityItem) Score() float64  { return q.score }

// Tracker owns the large-trade history and reversal-risk state.
type Tracker struct {
	long  []models.LargeTradeRecord
	short []models.LargeTradeRecord

	quality *heap.LPHeap

	lastSignal     *models.WhaleSignal
	lastSignalTime time.Time

	reversalPenaltyUntil map[int]time.Time // tier (minutes) -> expiry
	seq                  int
}

// New returns an empty Tracker with a 32-entry quality ranking heap.
func New() *Tracker {
	return &Tracker{
		quality:              heap.NewLPHeap(32),
		reversalPenaltyUntil: make(map[int]time.Time),
	}
}

// OnTrade records a trade, dropping anything below the whale-size
// threshold. Returns true if it was large enough to record.
func (t *Tracker) OnTrade(tr models.Trade, now time.Time) bool {
	if tr.Qty < WhaleQtyBTC {
		return false
	}

	rec := models.LargeTradeRecord{TS: now, Qty: tr.Qty, Price: tr.Price, Direction: tr.Direction()}

	t.long = append(t.long, rec)
	if len(t.long) > longWindow {
		t.long = t.long[len(t.long)-longWindow:]
	}

	t.short = append(t.short, rec)
	cut := now.Add(-shortWindow)
	i := 0
	for ; i < len(t.short); i++ {
		if t.short[i].TS.After(cut) {
			break
		}
	}
	t.short = t.short[i:]

	return true
}

// Evaluate emits a WhaleSignal from the short window if count/total/
// dominance bounds all hold simultaneously, otherwise nil.
func (t *Tracker) Evaluate(now time.Time, obi float64) *models.WhaleSignal {
	if len(t.short) < minCount {
		return nil
	}

	var longQty, shortQty, notional float64
	for _, r := range t.short {
		if r.Direction == models.DirectionLong {
			longQty += r.Qty
		} else {
			shortQty += r.Qty
		}
		notional += r.Qty * r.Price
	}

	total := longQty + shortQty
	if total < minTotalQty {
		return nil
	}

	net := longQty - shortQty
	dominance := 0.0
	direction := models.DirectionNone

	if longQty >= shortQty && total > 0 {
		dominance = longQty / total
		direction = models.DirectionLong
	} else if total > 0 {
		dominance = shortQty / total
		direction = models.DirectionShort
	}

	if dominance < minDominanceRatio {
		return nil
	}

	vwap := 0.0
	if total > 0 {
		vwap = notional / total
	}

	sig := models.WhaleSignal{
		Direction:      direction,
		TS:             now,
		NetQty:         net,
		DominanceRatio: dominance,
		LongQty:        longQty,
		ShortQty:       shortQty,
		TotalQty:       total,
		WhaleVWAP:      vwap,
	}

	t.lastSignal = &sig
	t.lastSignalTime = now

	t.seq++
	score := t.qualityScore(sig, obi)
	t.quality.Add(qualityItem{id: fmt.Sprintf("whale-%d", t.seq), score: score, sig: sig})

	return &sig
}

// LastSignal returns the most recently emitted signal and whether it
// fired within the given lookback.
func (t *Tracker) LastSignal(now time.Time, lookback time.Duration) (models.WhaleSignal, bool) {
	if t.lastSignal == nil || now.Sub(t.lastSignalTime) > lookback {
		return models.WhaleSignal{}, false
	}
	return *t.lastSignal, true
}

// RecordReversal marks the reversal tiers (2/5/10/20 minutes) that should
// now penalize re-entry in the whale's prior direction.
func (t *Tracker) RecordReversal(now time.Time) {
	for _, tier := range []int{2, 5, 10, 20} {
		t.reversalPenaltyUntil[tier] = now.Add(time.Duration(tier) * time.Minute)
	}
}

// ReversalPenaltyActive reports whether any reversal-tier penalty window
// is still open.
func (t *Tracker) ReversalPenaltyActive(now time.Time) bool {
	for _, until := range t.reversalPenaltyUntil {
		if now.Before(until) {
			return true
		}
	}
	return false
}

// QualityGrade classifies a 0-100 score.
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
	GradeD QualityGrade = "D"
)

// Recommendation is the action advice derived from a quality grade.
type Recommendation string

const (
	RecommendTrust    Recommendation = "TRUST"
	RecommendCautious Recommendation = "CAUTIOUS"
	RecommendWait     Recommendation = "WAIT"
	RecommendIgnore   Recommendation = "IGNORE"
)

// qualityScore is the weighted feature score for whale signal quality:
// continuity of the last 10 large trades, OBI alignment (a bonus, or a
// penalty when OBI does not agree), and size and dominance buckets taken
// from the signal itself, clamped to 0-100. VPIN, trade frequency and
// VWAP position are not scored.
func (t *Tracker) qualityScore(sig models.WhaleSignal, obi float64) float64 {
	score := 0.0

	continuity := continuityOfLast(t.long, 10, sig.Direction)
	score += continuity * 25

	aligned := (sig.Direction == models.DirectionLong && obi > 0) || (sig.Direction == models.DirectionShort && obi < 0)
	if aligned {
		score += 20
	} else {
		score -= 10
	}

	switch {
	case sig.TotalQty >= 10:
		score += 20
	case sig.TotalQty >= 5:
		score += 15
	default:
		score += 10
	}

	switch {
	case sig.DominanceRatio >= 0.85:
		score += 20
	case sig.DominanceRatio >= 0.7:
		score += 15
	default:
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func continuityOfLast(records []models.LargeTradeRecord, n int, dir models.Direction) float64 {
	if len(records) == 0 {
		return 0
	}
	if n > len(records) {
		n = len(records)
	}
	window := records[len(records)-n:]

	matches := 0
	for _, r := range window {
		if r.Direction == dir {
			matches++
		}
	}
	return float64(matches) / float64(len(window))
}

// Grade maps a 0-100 quality score to a letter grade and recommendation.
func Grade(score float64) (QualityGrade, Recommendation) {
	switch {
	case score >= 80:
		return GradeA, RecommendTrust
	case score >= 60:
		return GradeB, RecommendCautious
	case score >= 40:
		return GradeC, RecommendWait
	default:
		return GradeD, RecommendIgnore
	}
}

// TopQuality returns the highest-scoring signals currently retained.
func (t *Tracker) TopQuality() []models.WhaleSignal {
	items := t.quality.Items()
	out := make([]models.WhaleSignal, 0, len(items))
	for _, it := range items {
		if qi, ok := it.(qualityItem); ok {
			out = append(out, qi.sig)
		}
	}
	return out
}
