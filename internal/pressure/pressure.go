// Package pressure parses the externally collected liquidation-pressure
// snapshot (C7) — a loosely-shaped JSON document produced by a separate
// collector process — and derives the two directional pressure scores fed
// into the decision engine's entry filter.
package pressure

import (
	"os"
	"time"

	"github.com/bitly/go-simplejson"
	"golang.org/x/time/rate"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// Reader rereads the pressure snapshot file off disk, throttled so a
// malformed or still-being-written file cannot be reparsed every tick.
type Reader struct {
	path    string
	limiter *rate.Limiter

	last    models.LiquidationPressure
	lastRead time.Time
}

// New returns a Reader that allows at most one reread every interval.
func New(path string, interval time.Duration) *Reader {
	return &Reader{
		path:    path,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Read returns the latest parsed LiquidationPressure. If the throttle
// denies a reread, or the file is missing or malformed, the previously
// cached value is returned unchanged, so a transient write race on the
// collector side does not surface as Available=false. When nothing has
// been parsed yet, or the cached value is older than staleAfter, the
// result has Available=false.
func (r *Reader) Read(now time.Time, staleAfter time.Duration) models.LiquidationPressure {
	if !r.limiter.AllowN(now, 1) {
		return r.withStaleness(now, staleAfter)
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return r.withStaleness(now, staleAfter)
	}

	js, err := simplejson.NewJson(raw)
	if err != nil {
		return r.withStaleness(now, staleAfter)
	}

	longScore := js.Get("long_score").MustFloat64(0)
	shortScore := js.Get("short_score").MustFloat64(0)

	r.last = models.LiquidationPressure{
		Available:  true,
		LongScore:  longScore,
		ShortScore: shortScore,
		LongLevel:  classify(longScore),
		ShortLevel: classify(shortScore),
	}
	r.lastRead = now

	return r.last
}

func (r *Reader) withStaleness(now time.Time, staleAfter time.Duration) models.LiquidationPressure {
	if r.lastRead.IsZero() || now.Sub(r.lastRead) > staleAfter {
		return models.LiquidationPressure{}
	}
	return r.last
}

func classify(score float64) models.PressureLevel {
	switch {
	case score >= 80:
		return models.PressureExtreme
	case score >= 60:
		return models.PressureHigh
	case score >= 35:
		return models.PressureMedium
	case score >= 15:
		return models.PressureLow
	default:
		return models.PressureVeryLow
	}
}

// Path returns the configured snapshot file path, for diagnostics.
func (r *Reader) Path() string {
	return r.path
}
