// Package engine is the main loop (C13): one ingestion task runs
// alongside a 2s decision tick loop. The tick loop is the sole writer of
// every piece of derived state; the ingestion task only hands off raw
// normalized events via bounded channels.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantshift/btc-perp-engine/internal/bars"
	"github.com/quantshift/btc-perp-engine/internal/bridge"
	"github.com/quantshift/btc-perp-engine/internal/cascade"
	"github.com/quantshift/btc-perp-engine/internal/config"
	"github.com/quantshift/btc-perp-engine/internal/decision"
	"github.com/quantshift/btc-perp-engine/internal/ingest"
	"github.com/quantshift/btc-perp-engine/internal/libs/channel"
	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
	"github.com/quantshift/btc-perp-engine/internal/libs/worker"
	"github.com/quantshift/btc-perp-engine/internal/lifecycle"
	"github.com/quantshift/btc-perp-engine/internal/metrics"
	"github.com/quantshift/btc-perp-engine/internal/microstructure"
	"github.com/quantshift/btc-perp-engine/internal/mode"
	"github.com/quantshift/btc-perp-engine/internal/models"
	"github.com/quantshift/btc-perp-engine/internal/notify"
	"github.com/quantshift/btc-perp-engine/internal/pressure"
	"github.com/quantshift/btc-perp-engine/internal/snapshot"
	"github.com/quantshift/btc-perp-engine/internal/store"
	"github.com/quantshift/btc-perp-engine/internal/trend"
	"github.com/quantshift/btc-perp-engine/internal/whale"
)

const tickInterval = 2 * time.Second

// Engine wires every component package together and drives the tick
// loop described in the scheduling model: exits are checked before
// entries on every tick after the first.
type Engine struct {
	logger  *logger.Logger
	loader  *config.Loader
	channel *channel.Channel
	metrics *metrics.Registry
	notify  notify.Notify
	worker  *worker.Worker
	session *store.Storage

	book      *microstructure.Book
	barAgg    *bars.Aggregator
	trendA    *trend.Analyzer
	whaleT    *whale.Tracker
	cascadeD  *cascade.Detector
	pressureR *pressure.Reader
	builder   *snapshot.Builder

	registry *mode.Registry
	decider  *decision.Engine
	lifecyc  *lifecycle.Engine
	bridges  map[string]*bridge.File

	lastMid    float64
	tradeVol3s float64

	firstTick bool
	configVer int64
}

// New assembles every component package against the given config.
func New(log *logger.Logger, loader *config.Loader, notifier notify.Notify) (*Engine, error) {
	cfg, ver := loader.Current()

	modeConfigs, err := cfg.ModeConfigs()
	if err != nil {
		return nil, fmt.Errorf("build mode configs: %w", err)
	}

	book := microstructure.New()
	barAgg := bars.New()
	trendA := trend.New()
	whaleT := whale.New()
	cascadeD := cascade.New()

	var pressureR *pressure.Reader
	if cfg.Thresholds.PressureStaleSeconds > 0 {
		pressureR = pressure.New(fmt.Sprintf("%s/liquidation_pressure.json", cfg.Bridge.Directory), 10*time.Second)
	}

	builder := snapshot.New(book, barAgg, trendA, whaleT, cascadeD, pressureR)

	bridges := make(map[string]*bridge.File)
	for _, m := range modeConfigs {
		if models.StrategyStyle(m.Style).IsAI() {
			bridges[m.Name] = bridge.NewFile(log, cfg.Bridge.Directory, m.Name)
		}
	}

	feeCostMin := cfg.Fees.TakerRate * 2
	decider := decision.New(feeCostMin, bridges)
	lifecyc := lifecycle.New(cfg.Fees)

	w, err := worker.New(log, &worker.PoolConfig{NumProcess: 1, PollingBackoff: time.Second})
	if err != nil {
		return nil, fmt.Errorf("new side-effect worker: %w", err)
	}

	e := &Engine{
		logger:    log,
		loader:    loader,
		channel:   channel.New(),
		metrics:   metrics.New(),
		notify:    notifier,
		worker:    w,
		session:   store.NewStorage(log, cfg.SessionDir+"/session.json", cfg.SessionDir+"/backups"),
		book:      book,
		barAgg:    barAgg,
		trendA:    trendA,
		whaleT:    whaleT,
		cascadeD:  cascadeD,
		pressureR: pressureR,
		builder:   builder,
		registry:  mode.NewRegistry(modeConfigs, 100.0),
		decider:   decider,
		lifecyc:   lifecyc,
		bridges:   bridges,
		firstTick: true,
		configVer: ver,
	}

	e.worker.WithProcess(e.processSideEffect)
	return e, nil
}

// Run starts the ingestion task and the tick loop, running until ctx is
// cancelled or durationHours elapses, whichever comes first.
func (e *Engine) Run(ctx context.Context, symbol string, initialCapital float64, durationHours float64) error {
	e.seedBalances(initialCapital)

	if err := e.worker.Start(); err != nil {
		return fmt.Errorf("start side-effect worker: %w", err)
	}
	defer e.worker.Stop()

	runCtx := ctx
	if durationHours > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(durationHours*float64(time.Hour)))
		defer cancel()
	}

	intake := ingest.New(e.logger, e.channel, symbol)
	if err := intake.Start(runCtx); err != nil {
		return fmt.Errorf("start ingestion: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return e.consumeEvents(groupCtx)
	})

	group.Go(func() error {
		return e.tickLoop(groupCtx)
	})

	err := group.Wait()
	intake.Stop()

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}
	return nil
}

func (e *Engine) seedBalances(initialCapital float64) {
	for _, m := range e.registry.All() {
		m.Balance = initialCapital
	}
}

// consumeEvents is the bridge between the ingestion task's bounded
// channels and the tick loop's single-writer state: every event handler
// here only mutates the component it belongs to.
func (e *Engine) consumeEvents(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event consumer panic", zap.Any("error", r), zap.String("stacktrace", string(debug.Stack())))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case v := <-e.channel.Get(ingest.ChannelDepth):
			if book, ok := v.(*models.OrderBook); ok {
				e.book.UpdateBook(*book)
			}

		case v := <-e.channel.Get(ingest.ChannelBookTicker):
			if book, ok := v.(*models.OrderBook); ok {
				e.book.UpdateBook(*book)
			}

		case v := <-e.channel.Get(ingest.ChannelTrade):
			if tr, ok := v.(models.Trade); ok {
				now := time.UnixMilli(tr.TsMs)
				e.book.OnTrade(tr, now)
				e.whaleT.OnTrade(tr, now)
				e.tradeVol3s += tr.Qty
			}

		case v := <-e.channel.Get(ingest.ChannelLiquidation):
			if liq, ok := v.(models.LiquidationEvent); ok {
				e.cascadeD.OnLiquidation(liq, time.UnixMilli(liq.TsMs))
			}
		}
	}
}

func (e *Engine) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticker.C:
			e.runTick(now)

		case now := <-heartbeat.C:
			e.runHeartbeat(now)
		}
	}
}

func (e *Engine) runTick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panic", zap.Any("error", r), zap.String("stacktrace", string(debug.Stack())))
		}
	}()

	start := time.Now()
	defer func() { e.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()
	e.metrics.IncTick()

	mid := e.book.Mid()
	e.barAgg.OnSample(now, mid, e.tradeVol3s)
	e.tradeVol3s = 0

	curObi := e.lastObi(now)
	fundingZ := snapshot.FundingZScoreProxy(curObi)
	signalScore := snapshot.SignalScore(curObi)

	pressureStaleAfter := 90 * time.Second
	snap := e.builder.Build(now, fundingZ, signalScore, pressureStaleAfter)

	e.whaleT.Evaluate(now, snap.OBI)
	e.metrics.VPIN.Set(snap.VPIN)

	for _, m := range e.registry.All() {
		lifecycle.SweepHoldingTime(m, now)

		if !e.firstTick {
			e.checkExits(m, &snap, now)
		}
		e.checkPendingMakers(m, &snap, now)
		e.checkEntries(m, &snap, now)

		e.metrics.ModeBalance.WithLabelValues(m.Config.Name).Set(m.Balance)
	}

	e.firstTick = false
	e.lastMid = mid
}

func (e *Engine) lastObi(now time.Time) float64 {
	return e.book.Compute(now).OBI
}

func (e *Engine) checkExits(m *models.ModeState, snap *models.MarketSnapshot, now time.Time) {
	for _, order := range m.OpenOrders() {
		if order.MakerStatus == models.MakerPending {
			continue
		}

		aiForceExit := false
		if m.EffectiveStyle(now).IsAI() {
			if bf, ok := e.bridges[m.Config.Name]; ok {
				if cmd, fresh := bf.ReadCommand(now); fresh && cmd.Command == models.AICommandCutLoss {
					aiForceExit = true
				}
			}
		}

		reason, fire := e.lifecyc.EvaluateExit(order, snap, aiForceExit, now)
		if !fire {
			continue
		}

		e.lifecyc.CloseOrder(order, snap.Mid, reason, now)
		lifecycle.PostCloseHooks(m, order, now)
		e.metrics.OrdersClosed.WithLabelValues(m.Config.Name, string(reason)).Inc()

		e.worker.SendJob(context.Background(), sideEffect{kind: sideEffectNotify, mode: m.Config.Name, text: fmt.Sprintf("%s closed %s pnl=%.4f", m.Config.Name, reason, order.PnlUSDT)})
	}
}

func (e *Engine) checkPendingMakers(m *models.ModeState, snap *models.MarketSnapshot, now time.Time) {
	lastTrade := e.book.LastTradePrice()
	for _, order := range m.OpenOrders() {
		if ev := e.lifecyc.CheckPendingMaker(order, snap.Mid, lastTrade, now); ev != nil {
			if bf, ok := e.bridges[m.Config.Name]; ok {
				e.worker.SendJob(context.Background(), sideEffect{kind: sideEffectMakerEvent, mode: m.Config.Name, makerEvent: ev, bridge: bf})
			}
		}
	}
}

func (e *Engine) checkEntries(m *models.ModeState, snap *models.MarketSnapshot, now time.Time) {
	if len(m.OpenOrders()) > 0 && !lifecycle.CanPyramid(m, m.OpenOrders()[0].Direction) {
		return
	}

	if !m.LastEntryTime.IsZero() && now.Sub(m.LastEntryTime) < m.Config.EntryCooldown {
		return
	}

	d := e.decider.Evaluate(now, m, snap)
	e.metrics.Decisions.WithLabelValues(m.Config.Name, string(d.Action)).Inc()

	if d.Action == models.ActionHold {
		return
	}

	if m.EffectiveStyle(now).IsAI() && !decision.EntryDelayConfirm(m, d.Action, snap.Mid, now) {
		return
	}

	order := e.lifecyc.CreateOrder(m, d, now)
	m.Orders = append(m.Orders, order)
	m.LastEntryTime = now
	e.metrics.OrdersOpened.WithLabelValues(m.Config.Name).Inc()
}

func (e *Engine) runHeartbeat(now time.Time) {
	if updated, err := e.loader.ReloadIfUpdated(); err != nil {
		e.logger.Warn("config reload failed", zap.Error(err))
	} else if updated {
		e.logger.Info("config reloaded")
	}

	for name, bf := range e.bridges {
		m, err := e.registry.Get(name)
		if err != nil {
			continue
		}
		e.writeBridgeStatus(bf, m, now)
	}

	if err := e.session.Save(e.registry.All()); err != nil {
		e.logger.Warn("session save failed", zap.Error(err))
	}
}

func (e *Engine) writeBridgeStatus(bf *bridge.File, m *models.ModeState, now time.Time) {
	status := models.EngineStatus{Status: models.BridgeStatusIdle}
	if open := m.OpenOrders(); len(open) > 0 {
		status.Status = models.BridgeStatusInPosition
		status.Position = open[0]
		status.EntryPrice = open[0].ActualEntryPrice
		status.HoldingSeconds = open[0].HoldingSeconds(now)
	}

	if m.LossReviewRequested {
		status.LossReview = &models.LossReview{
			ConsecutiveLosses: m.ConsecutiveLosses,
			Note:              m.LossReviewNote,
		}
	}

	for _, o := range m.OpenOrders() {
		if o.ApproachingMaxHold {
			if status.RiskIndicators == nil {
				status.RiskIndicators = make(map[string]string)
			}
			status.RiskIndicators[o.OrderID] = "approaching_max_hold"
		}
	}

	feedback := models.FeedbackLoop{}
	for _, o := range m.Orders {
		if o.ExitReason == "" {
			continue
		}
		feedback.TotalTrades++
		if o.PnlUSDT > 0 {
			feedback.Wins++
		}
	}
	if feedback.TotalTrades > 0 {
		feedback.WinRate = float64(feedback.Wins) / float64(feedback.TotalTrades)
	}

	if err := bf.WriteStatus(status, feedback, now); err != nil {
		e.logger.Warn("bridge status write failed", zap.String("mode", m.Config.Name), zap.Error(err))
	}
}

// sideEffect kinds dispatched through the worker pool so file and
// notification I/O run on the worker goroutine. The pool has a single
// worker and an unbuffered queue, so SendJob waits while that worker is
// busy with an earlier job.
type sideEffectKind int

const (
	sideEffectNotify sideEffectKind = iota
	sideEffectMakerEvent
)

type sideEffect struct {
	kind       sideEffectKind
	mode       string
	text       string
	makerEvent *models.MakerTimeoutEvent
	bridge     *bridge.File
}

func (e *Engine) processSideEffect(ctx context.Context, message interface{}) error {
	se, ok := message.(sideEffect)
	if !ok {
		return nil
	}

	switch se.kind {
	case sideEffectNotify:
		if e.notify != nil {
			return e.notify.PushNotify(ctx, 0, se.text)
		}
	case sideEffectMakerEvent:
		if se.bridge != nil && se.makerEvent != nil {
			return se.bridge.WriteMakerTimeoutEvent(*se.makerEvent)
		}
	}
	return nil
}
