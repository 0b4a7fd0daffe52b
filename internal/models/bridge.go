package models

import "time"

// AICommandType enumerates the commands an AI advisor can write into its
// bridge file.
type AICommandType string

const (
	AICommandLong     AICommandType = "LONG"
	AICommandShort    AICommandType = "SHORT"
	AICommandHold     AICommandType = "HOLD"
	AICommandWait     AICommandType = "WAIT"
	AICommandAddLong  AICommandType = "ADD_LONG"
	AICommandAddShort AICommandType = "ADD_SHORT"
	AICommandCutLoss  AICommandType = "CUT_LOSS"
)

// AIDirection is the advisor's market-direction read, independent of the
// command issued.
type AIDirection string

const (
	AIDirectionBullish AIDirection = "BULLISH"
	AIDirectionBearish AIDirection = "BEARISH"
	AIDirectionNeutral AIDirection = "NEUTRAL"
)

// AIDynamicParams lets an advisor override the default TP/SL/leverage
// computation for its next order.
type AIDynamicParams struct {
	Leverage            float64 `json:"leverage,omitempty"`
	TakeProfitPct       float64 `json:"take_profit_pct,omitempty"`
	StopLossPct         float64 `json:"stop_loss_pct,omitempty"`
	TrailingActivation  float64 `json:"trailing_activation,omitempty"`
	TrailingDistance    float64 `json:"trailing_distance,omitempty"`
	MaxHoldingMinutes   float64 `json:"max_holding_minutes,omitempty"`
}

// AIAdjustments is the post-trade feedback an advisor can request be
// applied to the mode (§4.8 "Post-close hooks").
type AIAdjustments struct {
	ConfidenceThresholdDelta float64       `json:"confidence_threshold_delta,omitempty"`
	StopLossPct              float64       `json:"stop_loss_pct,omitempty"`
	LeverageMultiplier        float64       `json:"leverage_multiplier,omitempty"`
	CooldownMinutes            float64       `json:"cooldown_minutes,omitempty"`
	StrategySwitch              StrategyStyle `json:"strategy_switch,omitempty"`
}

// AICommand is the AI-written command block, stored under the fixed key
// `ai_to_mode`; the key does not carry the mode's name.
type AICommand struct {
	Command               AICommandType    `json:"command"`
	Direction             AIDirection      `json:"direction"`
	Confidence            float64          `json:"confidence"`
	Leverage              float64          `json:"leverage,omitempty"`
	WhaleReversalPrice    float64          `json:"whale_reversal_price,omitempty"`
	StopLossPct           float64          `json:"stop_loss_pct,omitempty"`
	DynamicParams         *AIDynamicParams `json:"dynamic_params,omitempty"`
	Timestamp             time.Time        `json:"timestamp"`
	RecommendedAdjustments *AIAdjustments   `json:"recommended_adjustments,omitempty"`
}

// BridgeStatus is the state carried in the engine-written status block,
// stored under the fixed key `mode_to_ai`.
type BridgeStatus string

const (
	BridgeStatusIdle      BridgeStatus = "IDLE"
	BridgeStatusOpening   BridgeStatus = "OPENING"
	BridgeStatusInPosition BridgeStatus = "IN_POSITION"
	BridgeStatusClosing   BridgeStatus = "CLOSING"
)

// EngineStatus is the full engine-to-AI status block.
type EngineStatus struct {
	Status              BridgeStatus      `json:"status"`
	Position             *SimulatedOrder   `json:"position,omitempty"`
	EntryPrice           float64           `json:"entry_price,omitempty"`
	CurrentPnlUSDT       float64           `json:"current_pnl_usdt,omitempty"`
	CurrentPnlPct        float64           `json:"current_pnl_pct,omitempty"`
	HoldingSeconds       float64           `json:"holding_seconds,omitempty"`
	WhaleStatus          *WhaleSignal      `json:"whale_status,omitempty"`
	MarketMicrostructure MarketSnapshot    `json:"market_microstructure"`
	VolatilityPct        float64           `json:"volatility"`
	LiquidationCascade   CascadeSignal     `json:"liquidation_cascade"`
	RiskIndicators       map[string]string `json:"risk_indicators,omitempty"`
	DirectionProbes      map[string]string `json:"direction_probes,omitempty"`
	LossReview           *LossReview       `json:"loss_review,omitempty"`
}

// LossReview is written when post-trade hooks request advisor feedback.
type LossReview struct {
	ConsecutiveLosses int     `json:"consecutive_losses"`
	LastLossROI       float64 `json:"last_loss_roi"`
	Note              string  `json:"note"`
}

// FeedbackLoop is the `feedback_loop` block.
type FeedbackLoop struct {
	TotalTrades        int       `json:"total_trades"`
	Wins               int       `json:"wins"`
	WinRate            float64   `json:"win_rate"`
	SuccessStreak      int       `json:"success_streak"`
	FailureStreak      int       `json:"failure_streak"`
	BestTradePnl       float64   `json:"best_trade_pnl"`
	WorstTradePnl      float64   `json:"worst_trade_pnl"`
	AvgHoldingTime     float64   `json:"avg_holding_time"`
	LastTradeResult    string    `json:"last_trade_result"`
	RecentPredictions  []string  `json:"recent_predictions,omitempty"`
	PredictionAccuracy float64   `json:"prediction_accuracy"`
}

// MakerTimeoutEvent is the engine->AI notification written when a PENDING
// maker order is cancelled or falls back to taker on timeout.
type MakerTimeoutEvent struct {
	OrderID   string    `json:"order_id"`
	Resolved  string    `json:"resolved"` // TAKER_FALLBACK or CANCELLED
	Timestamp time.Time `json:"timestamp"`
}

// Bridge is the full on-disk document for one AI-driven mode.
type Bridge struct {
	Command           *AICommand         `json:"ai_to_mode,omitempty"`
	Status            *EngineStatus      `json:"mode_to_ai,omitempty"`
	Feedback          *FeedbackLoop      `json:"feedback_loop,omitempty"`
	MakerTimeoutEvent *MakerTimeoutEvent `json:"maker_timeout_event,omitempty"`
	LastUpdated       time.Time          `json:"last_updated"`
}
