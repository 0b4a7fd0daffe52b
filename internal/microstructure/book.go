// Package microstructure maintains the live order book and derives the
// per-tick microstructure features consumed by the snapshot builder (C2):
// order book imbalance, spread, depth imbalance, microprice pressure,
// signed volume, and VPIN.
package microstructure

import (
	"sync"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

const (
	// obiDepthLevels is the top-N levels aggregated for OBI (§ "OBI").
	obiDepthLevels = 20

	// vpinBucketUSD is the fixed USD notional of one VPIN volume bucket.
	vpinBucketUSD = 20000.0
	// vpinNumBuckets is the trailing window of buckets averaged into VPIN.
	vpinNumBuckets = 40
)

// Book owns the current order book and the rolling state needed to derive
// OBI, spread, microprice pressure, signed volume and VPIN. The main loop
// is its only caller; it is not safe to share across goroutines beyond the
// single ingest handoff guarded by mu.
type Book struct {
	mu sync.Mutex

	book models.OrderBook

	lastOBI       float64
	signedVolume  float64
	signedVolWindow []signedVolSample

	buckets    []vpinBucket
	cur        vpinBucket
	curUSD     float64

	lastTradePrice float64
}

type signedVolSample struct {
	ts  time.Time
	vol float64
}

type vpinBucket struct {
	buy, sell float64
}

// New returns an empty Book.
func New() *Book {
	return &Book{}
}

// UpdateBook replaces the book with a freshly normalized depth snapshot.
func (b *Book) UpdateBook(ob models.OrderBook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.book = ob
}

// OnTrade feeds one normalized trade into the signed-volume tracker and
// the VPIN bucket accumulator.
func (b *Book) OnTrade(t models.Trade, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastTradePrice = t.Price

	signed := t.Qty
	if t.Direction() == models.DirectionShort {
		signed = -signed
	}
	b.signedVolume += signed
	b.signedVolWindow = append(b.signedVolWindow, signedVolSample{ts: now, vol: signed})
	b.pruneSignedVolume(now)

	usd := t.Qty * t.Price
	remaining := usd
	for remaining > 0 {
		room := vpinBucketUSD - b.curUSD
		take := remaining
		if take > room {
			take = room
		}

		if t.Direction() == models.DirectionLong {
			b.cur.buy += take
		} else {
			b.cur.sell += take
		}
		b.curUSD += take
		remaining -= take

		if b.curUSD >= vpinBucketUSD {
			b.buckets = append(b.buckets, b.cur)
			if len(b.buckets) > vpinNumBuckets {
				b.buckets = b.buckets[len(b.buckets)-vpinNumBuckets:]
			}
			b.cur = vpinBucket{}
			b.curUSD = 0
		}
	}
}

func (b *Book) pruneSignedVolume(now time.Time) {
	const window = 30 * time.Second
	cut := now.Add(-window)
	i := 0
	for ; i < len(b.signedVolWindow); i++ {
		if b.signedVolWindow[i].ts.After(cut) {
			break
		}
	}
	b.signedVolWindow = b.signedVolWindow[i:]
}

// Mid returns the current mid price, or 0 if the book is empty.
func (b *Book) Mid() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Mid()
}

// LastTradePrice returns the most recent trade print, used as a
// secondary maker-fill signal since depth snapshots can lag trades by
// up to one tick.
func (b *Book) LastTradePrice() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTradePrice
}

// Features is the per-tick snapshot of every microstructure value this
// package derives.
type Features struct {
	Mid                float64
	BestBid            float64
	BestAsk            float64
	Spread             float64
	SpreadBps          float64
	OBI                float64
	DepthImbalance     float64
	MicropricePressure float64
	SignedVolume       float64
	SignedVolumeRate   float64
	VPIN               float64
	VPINLevel          models.VPINLevel
}

// Compute derives the full Features set from the book's current state.
func (b *Book) Compute(now time.Time) Features {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid, ask := b.book.BestBid(), b.book.BestAsk()
	mid := b.book.Mid()

	var f Features
	f.Mid = mid
	f.BestBid = bid.Price
	f.BestAsk = ask.Price

	if bid.Price > 0 && ask.Price > 0 {
		f.Spread = ask.Price - bid.Price
		if mid > 0 {
			f.SpreadBps = f.Spread / mid * 1e4
		}
		if bid.Quantity+ask.Quantity > 0 {
			microprice := (bid.Price*ask.Quantity + ask.Price*bid.Quantity) / (bid.Quantity + ask.Quantity)
			if mid > 0 {
				f.MicropricePressure = (microprice - mid) / mid
			}
		}
	}

	f.OBI = topNOBI(b.book.Bids, b.book.Asks, obiDepthLevels)
	f.DepthImbalance = depthImbalance(b.book.Bids, b.book.Asks)

	f.SignedVolume = b.signedVolume
	f.SignedVolumeRate = windowedSignedVolume(b.signedVolWindow)

	f.VPIN = computeVPIN(b.buckets)
	f.VPINLevel = classifyVPIN(f.VPIN)

	return f
}

func topNOBI(bids, asks []models.PriceLevel, n int) float64 {
	var bidQty, askQty float64
	for i := 0; i < n && i < len(bids); i++ {
		bidQty += bids[i].Quantity
	}
	for i := 0; i < n && i < len(asks); i++ {
		askQty += asks[i].Quantity
	}
	if bidQty+askQty == 0 {
		return 0
	}
	return (bidQty - askQty) / (bidQty + askQty)
}

// depthImbalance uses only the top 5 levels, a tighter window than OBI's
// top 20, to surface near-touch pressure separately from deep-book skew.
func depthImbalance(bids, asks []models.PriceLevel) float64 {
	return topNOBI(bids, asks, 5)
}

func windowedSignedVolume(samples []signedVolSample) float64 {
	var total float64
	for _, s := range samples {
		total += s.vol
	}
	return total
}

func computeVPIN(buckets []vpinBucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	var sum float64
	for _, bk := range buckets {
		diff := bk.buy - bk.sell
		if diff < 0 {
			diff = -diff
		}
		sum += diff / vpinBucketUSD
	}
	return sum / float64(len(buckets))
}

func classifyVPIN(v float64) models.VPINLevel {
	switch {
	case v >= 0.85:
		return models.VPINCritical
	case v >= 0.75:
		return models.VPINDanger
	case v >= 0.6:
		return models.VPINElevated
	case v >= 0.4:
		return models.VPINNormal
	default:
		return models.VPINLow
	}
}
