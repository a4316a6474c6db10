package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one JSON object per
// line, append-only. Rotation and pruning are left to the operator.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	file *os.File
}

type publishRecord struct {
	At     string `json:"at"`
	PostID int    `json:"post_id"`
	Images int    `json:"images"`
	Album  bool   `json:"album"`
	OK     bool   `json:"ok"`
	Error  string `json:"err,omitempty"`
	TookMS int64  `json:"took_ms"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, file: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendPublish(ctx context.Context, e PublishEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("audit file closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	rec := publishRecord{
		At:     e.At.Format(time.RFC3339Nano),
		PostID: e.PostID,
		Images: e.Images,
		Album:  e.Album,
		OK:     e.OK,
		Error:  e.Error,
		TookMS: e.TookMS,
	}
	return json.NewEncoder(s.file).Encode(rec)
}
