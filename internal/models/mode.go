package models

import "time"

// StrategyStyle selects the filter/entry/exit dispatch table used by the
// decision engine for one mode.
type StrategyStyle string

const (
	StyleTrend            StrategyStyle = "trend"
	StyleScalper          StrategyStyle = "scalper"
	StyleReversion        StrategyStyle = "reversion"
	StyleBreakout         StrategyStyle = "breakout"
	StyleVolume           StrategyStyle = "volume"
	StyleVolatility       StrategyStyle = "volatility"
	StyleWhale            StrategyStyle = "whale"
	StyleLPWhaleBurst      StrategyStyle = "lp_whale_burst"
	StyleAIWhaleHunter      StrategyStyle = "ai_whale_hunter"
	StyleAIDragon2           StrategyStyle = "ai_dragon2"
	StyleAIShrimp             StrategyStyle = "ai_shrimp"
	StyleAILion                StrategyStyle = "ai_lion"
	StyleDirectionProbeLong      StrategyStyle = "direction_probe_long"
	StyleDirectionProbeShort      StrategyStyle = "direction_probe_short"
	StyleBaseline                  StrategyStyle = "baseline"
)

// IsAI reports whether this style is AI-bridge driven (§4.7 step 3).
func (s StrategyStyle) IsAI() bool {
	switch s {
	case StyleAIWhaleHunter, StyleAIDragon2, StyleAIShrimp, StyleAILion:
		return true
	default:
		return false
	}
}

// IsDirectionProbe reports whether this style is an unconditional probe.
func (s StrategyStyle) IsDirectionProbe() bool {
	return s == StyleDirectionProbeLong || s == StyleDirectionProbeShort
}

// Action is the decision engine's verdict for one mode on one tick.
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionHold  Action = "HOLD"
)

// Decision is the per-mode, per-tick output of the decision engine (C10).
type Decision struct {
	Mode            string
	Action          Action
	Reason          string
	Confidence      float64
	SizeMultiplier  float64
	Stage           string
	Snapshot        *MarketSnapshot
}

// ModeConfig holds the static, style-derived tuning for one mode.
type ModeConfig struct {
	Name                string
	Style               StrategyStyle
	EntryCooldown       time.Duration
	BaseLeverageCap      float64
	AllowRelaxed        bool
	InvertSignal        bool
	BasePositionPct     float64
	MaxSizeMultiplier   float64
	MakerEnabled        bool
	MakerOffsetBps      float64
	MakerTimeoutSeconds float64
	PyramidEnabled      bool
	MaxPyramid          int
}

// ModeState is the mutable, per-mode runtime state (§3 "Per-mode state").
// Balances and orders are per mode; no cross-mode writes.
type ModeState struct {
	Config ModeConfig

	Balance float64
	Orders  []*SimulatedOrder

	ConsecutiveLosses int
	LossCooldownUntil time.Time
	LastEntryTime     time.Time

	PendingEntry *PendingEntrySignal

	HighVPINCooldownUntil time.Time

	// LossReviewRequested is set when post-close hooks decide the AI bridge
	// should be asked to review the last loss.
	LossReviewRequested bool
	LossReviewNote      string

	// StrategySwitchUntil / StrategySwitchStyle implement the bounded
	// AI-recommended strategy switch (SPEC_FULL supplement).
	StrategySwitchStyle StrategyStyle
	StrategySwitchUntil time.Time
	StrategySwitchCount int
}

// PendingEntrySignal tracks the AI entry-delay confirmation timer (§4.7
// step 10).
type PendingEntrySignal struct {
	Direction  Action
	FirstSeen  time.Time
	AnchorMid  float64
}

// OpenOrders returns the orders still open for this mode.
func (m *ModeState) OpenOrders() []*SimulatedOrder {
	open := make([]*SimulatedOrder, 0, len(m.Orders))
	for _, o := range m.Orders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}
	return open
}

// InLossCooldown reports whether the mode is still in its post-loss
// cooldown window.
func (m *ModeState) InLossCooldown(now time.Time) bool {
	return now.Before(m.LossCooldownUntil)
}

// EffectiveStyle returns the temporarily AI-switched style if still active,
// otherwise the configured style.
func (m *ModeState) EffectiveStyle(now time.Time) StrategyStyle {
	if m.StrategySwitchStyle != "" && now.Before(m.StrategySwitchUntil) {
		return m.StrategySwitchStyle
	}
	return m.Config.Style
}
