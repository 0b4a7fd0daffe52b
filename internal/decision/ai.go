package decision

import (
	"math"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/models"
)

// minWhaleDominance is the hard fuse for AI modes: when a whale signal is
// present with less dominance than this, the AI command is held. With no
// whale signal the fuse does not apply. ABSOLUTE RULE #1 (dominance >= 70%)
// is checked first and forces the whale direction.
const minWhaleDominance = 0.55

// absoluteRuleDominance is the whale dominance threshold above which the
// AI's own command is overridden by the whale direction outright.
const absoluteRuleDominance = 0.70

// evaluateAI fully overrides the generic pipeline for AI-bridge-driven
// styles (§4.7 step 3): read the bridge, reject stale commands, enforce
// hard fuses, apply ABSOLUTE RULE #1, then translate the command.
func (e *Engine) evaluateAI(now time.Time, mode *models.ModeState, snap *models.MarketSnapshot, style models.StrategyStyle) models.Decision {
	bf, ok := e.bridges[mode.Config.Name]
	if !ok {
		return holdStage(mode, snap, "ai_bridge", "no_bridge_configured")
	}

	cmd, fresh := bf.ReadCommand(now)
	if !fresh {
		return holdStage(mode, snap, "ai_bridge", "stale_or_missing_command")
	}

	if snap.Whale != nil && snap.Whale.DominanceRatio >= absoluteRuleDominance {
		action := models.ActionLong
		if snap.Whale.Direction == models.DirectionShort {
			action = models.ActionShort
		}
		return models.Decision{
			Mode:           mode.Config.Name,
			Action:         action,
			Reason:         "absolute_rule_whale_override",
			Confidence:     1,
			SizeMultiplier: mode.Config.MaxSizeMultiplier,
			Stage:          "ai_absolute_rule",
			Snapshot:       snap,
		}
	}

	if snap.Whale != nil && snap.Whale.DominanceRatio < minWhaleDominance {
		return holdStage(mode, snap, "ai_hard_fuse", "whale_dominance_below_minimum")
	}

	// Reverse-OBI sanity: reject an AI command that fights a strong,
	// freshly-formed order book imbalance in the opposite direction.
	if cmd.Command == models.AICommandLong && snap.OBI < -0.4 {
		return holdStage(mode, snap, "ai_hard_fuse", "reverse_obi_against_long")
	}
	if cmd.Command == models.AICommandShort && snap.OBI > 0.4 {
		return holdStage(mode, snap, "ai_hard_fuse", "reverse_obi_against_short")
	}

	action, sizeMult := translateAICommand(cmd)
	if action == models.ActionHold {
		return holdStage(mode, snap, "ai_command", string(cmd.Command))
	}

	return models.Decision{
		Mode:           mode.Config.Name,
		Action:         action,
		Reason:         "ai_command_" + string(cmd.Command),
		Confidence:     cmd.Confidence,
		SizeMultiplier: math.Min(sizeMult, mode.Config.MaxSizeMultiplier),
		Stage:          "ai_translate",
		Snapshot:       snap,
	}
}

func translateAICommand(cmd *models.AICommand) (models.Action, float64) {
	switch cmd.Command {
	case models.AICommandLong, models.AICommandAddLong:
		return models.ActionLong, 1
	case models.AICommandShort, models.AICommandAddShort:
		return models.ActionShort, 1
	default:
		return models.ActionHold, 0
	}
}

// EntryDelayConfirm implements the 5s confirmation timer (§4.7 step 10):
// a candidate direction must persist for at least 5 seconds, resetting on
// a direction change and being discarded outright if price has already
// moved 0.3% since the signal first appeared.
func EntryDelayConfirm(mode *models.ModeState, action models.Action, mid float64, now time.Time) bool {
	if action == models.ActionHold {
		mode.PendingEntry = nil
		return false
	}

	if mode.PendingEntry == nil || mode.PendingEntry.Direction != action {
		mode.PendingEntry = &models.PendingEntrySignal{
			Direction: action,
			FirstSeen: now,
			AnchorMid: mid,
		}
		return false
	}

	moved := 0.0
	if mode.PendingEntry.AnchorMid > 0 {
		moved = math.Abs(mid-mode.PendingEntry.AnchorMid) / mode.PendingEntry.AnchorMid
	}
	if moved > 0.003 {
		mode.PendingEntry = nil
		return false
	}

	if now.Sub(mode.PendingEntry.FirstSeen) < 5*time.Second {
		return false
	}

	mode.PendingEntry = nil
	return true
}
