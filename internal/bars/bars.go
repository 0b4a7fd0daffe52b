// Package bars aggregates mid-price samples and trade volume into a
// fixed-interval OHLCV series (C3), kept in a bounded ring buffer for the
// trend analyzer and regime classifier to consume.
package bars

import (
	"time"

	"github.com/quantshift/btc-perp-engine/internal/libs/cache/circular"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

const (
	// BarInterval is the fixed bar width.
	BarInterval = 3 * time.Second
	// RingSize is how many completed bars are retained.
	RingSize = 200
)

// Aggregator builds bars from mid-price samples only — see the package
// doc on models.Bar: high/low must never be derived from bid or ask
// alone, or ATR degenerates into a spread measure.
type Aggregator struct {
	ring *circular.Cache

	cur        models.Bar
	curStart   time.Time
	curVolume  float64
	haveCur    bool
}

// New returns an Aggregator with an empty ring of RingSize bars.
func New() *Aggregator {
	return &Aggregator{ring: circular.New(RingSize)}
}

// OnSample feeds one mid-price observation plus the trade volume that
// occurred since the previous sample. Rolls the bar over on interval
// boundaries.
func (a *Aggregator) OnSample(now time.Time, mid float64, tradeVolume float64) {
	if mid <= 0 {
		return
	}

	bucketStart := now.Truncate(BarInterval)

	if !a.haveCur {
		a.startBar(bucketStart, mid)
	} else if bucketStart.After(a.curStart) {
		a.ring.Insert(a.cur)
		a.startBar(bucketStart, mid)
	}

	if mid > a.cur.High {
		a.cur.High = mid
	}
	if mid < a.cur.Low {
		a.cur.Low = mid
	}
	a.cur.Close = mid
	a.cur.Volume += tradeVolume
}

func (a *Aggregator) startBar(start time.Time, mid float64) {
	a.curStart = start
	a.haveCur = true
	a.cur = models.Bar{
		Open:    mid,
		High:    mid,
		Low:     mid,
		Close:   mid,
		StartTS: start,
	}
}

// Closed returns the last n completed bars, oldest first. The in-progress
// bar is never included.
func (a *Aggregator) Closed(n int) []models.Bar {
	all := a.ring.Sorted()
	bars := make([]models.Bar, 0, len(all))
	for _, v := range all {
		if bar, ok := v.(models.Bar); ok {
			bars = append(bars, bar)
		}
	}

	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars
}

// Current returns the bar still being built, and whether one exists yet.
func (a *Aggregator) Current() (models.Bar, bool) {
	return a.cur, a.haveCur
}
