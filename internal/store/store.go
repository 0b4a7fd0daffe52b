// Package store persists engine state to disk: the per-session
// cumulative trading record and the AI bridge files, both written
// atomically (write to a temp file, then rename) so a crash mid-write
// never leaves a half-written file for a reader to observe.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantshift/btc-perp-engine/internal/libs/logger"
)

// DB is the minimal persistence contract the engine depends on.
type DB interface {
	Save(v interface{}) error
	Load(v interface{}) error
	Backup() error
}

// Storage implements DB against a single JSON state file, with rolling
// backups kept alongside it.
type Storage struct {
	logger     *logger.Logger
	stateFile  string
	backupDir  string
}

// NewStorage returns a Storage writing to stateFile, with backups copied
// into backupDir.
func NewStorage(log *logger.Logger, stateFile, backupDir string) *Storage {
	return &Storage{logger: log, stateFile: stateFile, backupDir: backupDir}
}

// Save atomically writes v as indented JSON to the state file.
func (s *Storage) Save(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.stateFile), 0o755); err != nil {
		return fmt.Errorf("mkdir state dir: %w", err)
	}

	tempFile := s.stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := os.Rename(tempFile, s.stateFile); err != nil {
		return fmt.Errorf("rename temp state file: %w", err)
	}

	return nil
}

// Load reads the state file into v. A missing file is not an error; v is
// left unchanged so the caller's zero value stands.
func (s *Storage) Load(v interface{}) error {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal state file: %w", err)
	}
	return nil
}

// Backup copies the current state file into the backup directory, named
// after the state file's base name with a .bak suffix. Each call
// overwrites the previous backup; only one copy is kept.
func (s *Storage) Backup() error {
	if s.backupDir == "" {
		return nil
	}

	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state file for backup: %w", err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("mkdir backup dir: %w", err)
	}

	dest := filepath.Join(s.backupDir, filepath.Base(s.stateFile)+".bak")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write backup file: %w", err)
	}

	return nil
}
