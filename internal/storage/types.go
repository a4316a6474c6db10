package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl append log)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// PublishEntry records one publish attempt.
// Keep it compact and schema-stable.
type PublishEntry struct {
	At     time.Time
	PostID int
	Images int
	Album  bool
	OK     bool
	Error  string
	TookMS int64
}
