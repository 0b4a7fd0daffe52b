package decision

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantshift/btc-perp-engine/internal/bridge"
	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
	"github.com/quantshift/btc-perp-engine/internal/models"
)

func seedBridgeFile(t *testing.T, dir, mode string, cmd models.AICommand) {
	t.Helper()
	path := filepath.Join(dir, mode+".json")
	data, err := json.Marshal(models.Bridge{Command: &cmd})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestEvaluateAIHoldsWithNoBridgeConfigured(t *testing.T) {
	eng := New(0.001, map[string]*bridge.File{})
	mode := &models.ModeState{Config: models.ModeConfig{Name: "ai_lion", Style: models.StyleAILion}}

	d := eng.evaluateAI(time.Now(), mode, &models.MarketSnapshot{}, models.StyleAILion)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, "no_bridge_configured", d.Reason)
}

func TestAbsoluteRuleOverridesAICommandAtHighDominance(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	seedBridgeFile(t, dir, "ai_lion", models.AICommand{Command: models.AICommandLong, Confidence: 0.9, Timestamp: now})

	bridges := map[string]*bridge.File{"ai_lion": bridge.NewFile(logger.NewDev(), dir, "ai_lion")}
	eng := New(0.001, bridges)
	mode := &models.ModeState{Config: models.ModeConfig{Name: "ai_lion", MaxSizeMultiplier: 1.6}}
	snap := &models.MarketSnapshot{
		Whale: &models.WhaleSignal{Direction: models.DirectionShort, DominanceRatio: 0.75, TS: now},
	}

	d := eng.evaluateAI(now, mode, snap, models.StyleAILion)
	assert.Equal(t, models.ActionShort, d.Action, "whale direction overrides the AI's own LONG command")
	assert.Equal(t, "absolute_rule_whale_override", d.Reason)
}

func TestHardFuseHoldsBelowMinimumWhaleDominance(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	seedBridgeFile(t, dir, "ai_lion", models.AICommand{Command: models.AICommandLong, Confidence: 0.9, Timestamp: now})

	bridges := map[string]*bridge.File{"ai_lion": bridge.NewFile(logger.NewDev(), dir, "ai_lion")}
	eng := New(0.001, bridges)
	mode := &models.ModeState{Config: models.ModeConfig{Name: "ai_lion"}}
	snap := &models.MarketSnapshot{
		Whale: &models.WhaleSignal{Direction: models.DirectionLong, DominanceRatio: 0.4, TS: now},
	}

	d := eng.evaluateAI(now, mode, snap, models.StyleAILion)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, "whale_dominance_below_minimum", d.Reason)
}

func TestReverseOBISanityRejectsLongAgainstStrongSellImbalance(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	seedBridgeFile(t, dir, "ai_lion", models.AICommand{Command: models.AICommandLong, Confidence: 0.9, Timestamp: now})

	bridges := map[string]*bridge.File{"ai_lion": bridge.NewFile(logger.NewDev(), dir, "ai_lion")}
	eng := New(0.001, bridges)
	mode := &models.ModeState{Config: models.ModeConfig{Name: "ai_lion"}}
	snap := &models.MarketSnapshot{OBI: -0.5}

	d := eng.evaluateAI(now, mode, snap, models.StyleAILion)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, "reverse_obi_against_long", d.Reason)
}

func TestTranslateAICommandMapsAddCommandsToFullSize(t *testing.T) {
	action, size := translateAICommand(&models.AICommand{Command: models.AICommandAddLong})
	assert.Equal(t, models.ActionLong, action)
	assert.Equal(t, 1.0, size)

	action, _ = translateAICommand(&models.AICommand{Command: models.AICommandWait})
	assert.Equal(t, models.ActionHold, action)
}

func TestEntryDelayConfirmRequiresFiveSecondPersistence(t *testing.T) {
	mode := &models.ModeState{}
	now := time.Now()

	assert.False(t, EntryDelayConfirm(mode, models.ActionLong, 100, now))
	assert.False(t, EntryDelayConfirm(mode, models.ActionLong, 100.1, now.Add(2*time.Second)))
	assert.True(t, EntryDelayConfirm(mode, models.ActionLong, 100.1, now.Add(6*time.Second)))
}

func TestEntryDelayConfirmResetsOnDirectionChange(t *testing.T) {
	mode := &models.ModeState{}
	now := time.Now()

	EntryDelayConfirm(mode, models.ActionLong, 100, now)
	assert.False(t, EntryDelayConfirm(mode, models.ActionShort, 100, now.Add(6*time.Second)))
	require.NotNil(t, mode.PendingEntry)
	assert.Equal(t, models.ActionShort, mode.PendingEntry.Direction)
}

func TestEntryDelayConfirmDiscardsOnLargeMove(t *testing.T) {
	mode := &models.ModeState{}
	now := time.Now()

	EntryDelayConfirm(mode, models.ActionLong, 100, now)
	fired := EntryDelayConfirm(mode, models.ActionLong, 100.5, now.Add(6*time.Second))
	assert.False(t, fired, "a >0.3% move since the signal first appeared discards the pending entry")
	assert.Nil(t, mode.PendingEntry)
}
