// Package config loads and resolves the process-wide configuration.
// It is read once at startup and never mutated afterwards.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sean-McConnachie/delayedgram/internal/schedule"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

// Settings is the resolved, typed configuration used by the rest of the
// program (durations parsed, defaults applied).
type Settings struct {
	DefaultUploadDelta time.Duration
	DefaultUploadTime  schedule.TimeOfDay
	CheckInterval      time.Duration

	UnprocessedDir string
	ProcessedDir   string

	CheckSpec  string
	WatchQueue bool

	Logging  logx.Config
	Audit    AuditSettings
	Telegram TelegramSettings
	Uploader UploaderSettings
}

type AuditSettings struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

type TelegramSettings struct {
	Enabled bool
	Token   string
	ChatID  int64
}

type UploaderSettings struct {
	RequestTimeout time.Duration
	RatePerMinute  int
}

// Load reads, strictly decodes, validates and resolves the config file at
// path. JSON is the native format; .yaml/.yml files are coerced to JSON
// first so both go through the same strict decoder.
func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return resolve(cfg)
}

func resolve(cfg Config) (*Settings, error) {
	s := &Settings{
		UnprocessedDir: cfg.UnprocessedDir,
		ProcessedDir:   cfg.ProcessedDir,
		CheckSpec:      cfg.CheckSpec,
		WatchQueue:     cfg.WatchQueue,
	}

	var err error
	if s.DefaultUploadDelta, err = ParseDurationField("default_upload_delta", cfg.DefaultUploadDelta); err != nil {
		return nil, err
	}
	if s.DefaultUploadDelta <= 0 {
		return nil, fmt.Errorf("default_upload_delta: duration must be > 0")
	}
	if s.CheckInterval, err = ParseDurationField("check_interval", cfg.CheckInterval); err != nil {
		return nil, err
	}
	if s.CheckInterval <= 0 {
		return nil, fmt.Errorf("check_interval: duration must be > 0")
	}
	if s.DefaultUploadTime, err = schedule.ParseTimeOfDay(cfg.DefaultUploadTime); err != nil {
		return nil, fmt.Errorf("default_upload_time: %w", err)
	}

	console := true
	if cfg.Logging.Console != nil {
		console = *cfg.Logging.Console
	}
	s.Logging = logx.Config{
		Level:   cfg.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}

	if cfg.Audit != nil {
		s.Audit.Driver = cfg.Audit.Driver
		s.Audit.Path = cfg.Audit.Path
		if s.Audit.BusyTimeout, err = ParseDurationField("audit.busy_timeout", cfg.Audit.BusyTimeout); err != nil {
			return nil, err
		}
	}

	if cfg.Telegram != nil {
		s.Telegram = TelegramSettings{
			Enabled: cfg.Telegram.Enabled,
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
		}
		if s.Telegram.Enabled && (s.Telegram.Token == "" || s.Telegram.ChatID == 0) {
			return nil, fmt.Errorf("telegram: token and chat_id are required when enabled")
		}
	}

	if s.Uploader.RequestTimeout, err = ParseDurationOrDefault("uploader.request_timeout", cfg.Uploader.RequestTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	s.Uploader.RatePerMinute = cfg.Uploader.RatePerMinute
	if s.Uploader.RatePerMinute <= 0 {
		s.Uploader.RatePerMinute = 30
	}

	return s, nil
}
