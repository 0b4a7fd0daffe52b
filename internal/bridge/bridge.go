// Package bridge implements the AI bridge file protocol (C12): the
// engine and an external AI advisor process exchange JSON command/status
// documents, one file per AI-driven mode. Reads are debounced, writes are
// atomic, and a malformed document never crashes the engine — it just
// returns the last good value.
package bridge

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/quantshift/btc-perp-engine/internal/libs/lease"
	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
	"github.com/quantshift/btc-perp-engine/internal/models"
	"github.com/quantshift/btc-perp-engine/internal/store"
	"go.uber.org/zap"
)

// staleAfter is how old a command's timestamp may be before it is treated
// as WAIT rather than acted on.
const staleAfter = 120 * time.Second

// File owns one mode's bridge document on disk.
type File struct {
	logger *logger.Logger
	path   string
	store  *store.Storage
	lease  *lease.Lease

	cached models.Bridge
	have   bool
}

// NewFile returns a File rooted at dir/<mode>.json.
func NewFile(log *logger.Logger, dir, mode string) *File {
	path := filepath.Join(dir, mode+".json")
	return &File{
		logger: log,
		path:   path,
		store:  store.NewStorage(log, path, ""),
		lease:  lease.New(),
	}
}

// ReadCommand reads the AI's command block, debounced via a lease so a
// rapid succession of ticks does not reparse the file every time. A
// malformed file keeps the last good command. Returns (nil, false) when no
// command has been read yet or the command's timestamp is older than
// staleAfter — the caller must treat this as WAIT, not an error.
func (f *File) ReadCommand(now time.Time) (*models.AICommand, bool) {
	if f.lease.Expired() && f.lease.Try() {
		var doc models.Bridge
		if err := f.store.Load(&doc); err != nil {
			f.logger.Warn("bridge read failed, using last good value", zap.String("path", f.path), zap.Error(err))
		} else {
			f.cached = doc
			f.have = true
		}
		f.lease.Release()
	}

	if !f.have || f.cached.Command == nil {
		return nil, false
	}

	if now.Sub(f.cached.Command.Timestamp) > staleAfter {
		return nil, false
	}

	return f.cached.Command, true
}

// WriteStatus atomically writes the engine's status block, preserving the
// command block currently on disk (or the cached one when the file cannot
// be loaded) so a write never clobbers an AI command the engine hasn't
// consumed yet.
func (f *File) WriteStatus(status models.EngineStatus, feedback models.FeedbackLoop, now time.Time) error {
	doc := f.cached
	var disk models.Bridge
	if err := f.store.Load(&disk); err == nil && disk.Command != nil {
		doc.Command = disk.Command
	}
	doc.Status = &status
	doc.Feedback = &feedback
	doc.LastUpdated = now

	if err := f.store.Save(&doc); err != nil {
		return fmt.Errorf("write bridge status for %s: %w", f.path, err)
	}

	f.cached = doc
	f.have = true
	return nil
}

// WriteMakerTimeoutEvent atomically records a maker-timeout notification,
// replacing any earlier one, without disturbing the rest of the document.
func (f *File) WriteMakerTimeoutEvent(ev models.MakerTimeoutEvent) error {
	doc := f.cached
	var disk models.Bridge
	if err := f.store.Load(&disk); err == nil && disk.Command != nil {
		doc.Command = disk.Command
	}
	doc.MakerTimeoutEvent = &ev
	doc.LastUpdated = ev.Timestamp

	if err := f.store.Save(&doc); err != nil {
		return fmt.Errorf("write maker timeout event for %s: %w", f.path, err)
	}

	f.cached = doc
	f.have = true
	return nil
}

// Raw returns the cached document's JSON for diagnostics.
func (f *File) Raw() ([]byte, error) {
	return json.MarshalIndent(f.cached, "", "  ")
}
