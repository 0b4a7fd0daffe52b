// Package ingest is the sole writer of raw market-data event channels (C1).
// It subscribes to the exchange's combined futures websocket streams and
// normalizes each message into the models package's typed records before
// publishing them onto bounded channels that the main loop selects over.
package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/quantshift/btc-perp-engine/internal/libs/channel"
	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

const (
	// ChannelDepth carries normalized models.OrderBook snapshots.
	ChannelDepth = "ingest.depth"
	// ChannelTrade carries normalized models.Trade records.
	ChannelTrade = "ingest.trade"
	// ChannelBookTicker carries the latest best bid/ask as a models.OrderBook
	// with a single level per side.
	ChannelBookTicker = "ingest.book_ticker"
	// ChannelLiquidation carries normalized models.LiquidationEvent records.
	ChannelLiquidation = "ingest.liquidation"
)

// Intake owns the websocket subscriptions for one symbol and republishes
// normalized events onto a channel.Channel bus. It holds no decision logic.
type Intake struct {
	logger  *logger.Logger
	channel *channel.Channel
	symbol  string

	stopDepth       func()
	stopAggTrade    func()
	stopBookTicker  func()
	stopLiquidation func()

	quitChannel chan struct{}
}

// New wires up the bus topics this intake publishes to. Call Start to
// open the exchange subscriptions.
func New(log *logger.Logger, ch *channel.Channel, symbol string) *Intake {
	return &Intake{
		logger:      log,
		channel:     ch,
		symbol:      symbol,
		quitChannel: make(chan struct{}),
	}
}

// Start subscribes to the combined depth, aggTrade, bookTicker and
// forceOrder streams for the configured symbol. It is the only component
// in the engine that mutates websocket connection state; every event it
// receives is normalized and handed off via bounded channels.
func (in *Intake) Start(ctx context.Context) error {
	depthDone, depthStop, err := futures.WsDiffDepthServeWithRate(in.symbol, nil, in.onDepth, in.onErr)
	if err != nil {
		return fmt.Errorf("subscribe depth: %w", err)
	}
	in.stopDepth = depthStop

	tradeDone, tradeStop, err := futures.WsAggTradeServe(in.symbol, in.onAggTrade, in.onErr)
	if err != nil {
		depthStop()
		return fmt.Errorf("subscribe aggTrade: %w", err)
	}
	in.stopAggTrade = tradeStop

	tickerDone, tickerStop, err := futures.WsBookTickerServe(in.symbol, in.onBookTicker, in.onErr)
	if err != nil {
		depthStop()
		tradeStop()
		return fmt.Errorf("subscribe bookTicker: %w", err)
	}
	in.stopBookTicker = tickerStop

	liqDone, liqStop, err := futures.WsLiquidationOrderServe(in.symbol, in.onForceOrder, in.onErr)
	if err != nil {
		depthStop()
		tradeStop()
		tickerStop()
		return fmt.Errorf("subscribe forceOrder: %w", err)
	}
	in.stopLiquidation = liqStop

	go in.supervise(ctx, depthDone, tradeDone, tickerDone, liqDone)
	return nil
}

func (in *Intake) supervise(ctx context.Context, dones ...<-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("ingest supervisor panic", zap.Any("error", r), zap.String("stacktrace", string(debug.Stack())))
		}
	}()

	for _, done := range dones {
		go func(done <-chan struct{}) {
			select {
			case <-done:
				in.logger.Warn("ingest stream closed")
			case <-ctx.Done():
			case <-in.quitChannel:
			}
		}(done)
	}

	<-ctx.Done()
	in.Stop()
}

// Stop closes every open stream. Safe to call more than once.
func (in *Intake) Stop() {
	select {
	case <-in.quitChannel:
		return
	default:
		close(in.quitChannel)
	}

	for _, stop := range []func(){in.stopDepth, in.stopAggTrade, in.stopBookTicker, in.stopLiquidation} {
		if stop != nil {
			stop()
		}
	}
}

func (in *Intake) onErr(err error) {
	in.logger.Error("ingest stream error", zap.String("symbol", in.symbol), zap.Error(err))
}

func (in *Intake) onDepth(event *futures.WsDepthEvent) {
	book := &models.OrderBook{
		Bids:     parseBidLevels(event.Bids),
		Asks:     parseAskLevels(event.Asks),
		UpdateTS: time.UnixMilli(event.TransactionTime),
	}
	in.publish(ChannelDepth, book)
}

func (in *Intake) onBookTicker(event *futures.WsBookTickerEvent) {
	bidPrice, _ := strconv.ParseFloat(event.BestBidPrice, 64)
	bidQty, _ := strconv.ParseFloat(event.BestBidQty, 64)
	askPrice, _ := strconv.ParseFloat(event.BestAskPrice, 64)
	askQty, _ := strconv.ParseFloat(event.BestAskQty, 64)

	book := &models.OrderBook{
		Bids: []models.PriceLevel{{Price: bidPrice, Quantity: bidQty}},
		Asks: []models.PriceLevel{{Price: askPrice, Quantity: askQty}},
	}
	in.publish(ChannelBookTicker, book)
}

func (in *Intake) onAggTrade(event *futures.WsAggTradeEvent) {
	price, _ := strconv.ParseFloat(event.Price, 64)
	qty, _ := strconv.ParseFloat(event.Quantity, 64)

	trade := models.Trade{
		Price:        price,
		Qty:          qty,
		TsMs:         event.TradeTime,
		BuyerIsMaker: event.Maker,
	}
	in.publish(ChannelTrade, trade)
}

func (in *Intake) onForceOrder(event *futures.WsLiquidationOrderEvent) {
	qty, _ := strconv.ParseFloat(event.LiquidationOrder.OrigQuantity, 64)
	price, _ := strconv.ParseFloat(event.LiquidationOrder.AveragePrice, 64)

	liq := models.LiquidationEvent{
		TsMs:     event.LiquidationOrder.TradeTime,
		Side:     models.Side(event.LiquidationOrder.Side),
		Qty:      qty,
		Price:    price,
		USDValue: qty * price,
	}
	in.publish(ChannelLiquidation, liq)
}

func (in *Intake) publish(topic string, v interface{}) {
	select {
	case in.channel.Get(topic) <- v:
	default:
		in.logger.Warn("ingest channel full, dropping event", zap.String("topic", topic))
	}
}

func parseBidLevels(raw []futures.Bid) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, b := range raw {
		price, _ := strconv.ParseFloat(b.Price, 64)
		qty, _ := strconv.ParseFloat(b.Quantity, 64)
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}

func parseAskLevels(raw []futures.Ask) []models.PriceLevel {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, a := range raw {
		price, _ := strconv.ParseFloat(a.Price, 64)
		qty, _ := strconv.ParseFloat(a.Quantity, 64)
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
