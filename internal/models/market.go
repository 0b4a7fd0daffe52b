// Package models holds the shared data model for the decision engine: the
// order book and trade primitives (C1/C2), the bar and large-trade history
// (C3/C5), the liquidation record types (C6/C7), the immutable per-tick
// market snapshot (C8) and the simulated order (C11).
package models

import "time"

// Side mirrors the Binance futures wire convention: BUY lifts the ask,
// SELL hits the bid.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction is the canonical LONG/SHORT enum used across whale tracking,
// simulated orders and decisions. NONE is only valid for WhaleSignal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = "NONE"
)

// PriceLevel is one row of an order book side. Invariant: Price > 0,
// Quantity >= 0.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is fully overwritten on every depth snapshot; no delta
// merging. Bids are sorted descending by price, Asks ascending.
type OrderBook struct {
	Bids     []PriceLevel
	Asks     []PriceLevel
	UpdateTS time.Time
}

// BestBid returns the top bid level, or the zero value if the book is empty.
func (b *OrderBook) BestBid() PriceLevel {
	if b == nil || len(b.Bids) == 0 {
		return PriceLevel{}
	}
	return b.Bids[0]
}

// BestAsk returns the top ask level, or the zero value if the book is empty.
func (b *OrderBook) BestAsk() PriceLevel {
	if b == nil || len(b.Asks) == 0 {
		return PriceLevel{}
	}
	return b.Asks[0]
}

// Mid returns the mid price of the top of book, or 0 if either side is empty.
func (b *OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid.Price == 0 || ask.Price == 0 {
		return 0
	}
	return (bid.Price + ask.Price) / 2
}

// Bar is one fixed-interval OHLCV candle built from mid-price samples, not
// from bid or ask alone — see Invariant in bars.Aggregator.
type Bar struct {
	Open, High, Low, Close float64
	Volume                 float64
	StartTS                time.Time
}

// Trade is a normalized AggTrade. BuyerIsMaker=true means the aggressor is
// the seller (a short-initiated trade).
type Trade struct {
	Price        float64
	Qty          float64
	TsMs         int64
	BuyerIsMaker bool
}

// Direction classifies the aggressor side of the trade: a taker sell
// (BuyerIsMaker) is a short-initiated print.
func (t Trade) Direction() Direction {
	if t.BuyerIsMaker {
		return DirectionShort
	}
	return DirectionLong
}

// LiquidationEvent is a normalized ForceOrder. SELL means a long position
// was liquidated.
type LiquidationEvent struct {
	TsMs     int64
	Side     Side
	Qty      float64
	Price    float64
	USDValue float64
}

// LargeTradeRecord is kept for any trade with Qty >= the whale threshold
// (default 1.0 BTC).
type LargeTradeRecord struct {
	TS        time.Time
	Qty       float64
	Price     float64
	Direction Direction
}

// WhaleSignal is only produced when count/total/dominance bounds hold
// simultaneously — see whale.Tracker.Evaluate.
type WhaleSignal struct {
	Direction      Direction
	TS             time.Time
	NetQty         float64
	DominanceRatio float64
	LongQty        float64
	ShortQty       float64
	TotalQty       float64
	WhaleVWAP      float64
}
