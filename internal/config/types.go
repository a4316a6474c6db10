package config

// Config is the on-disk configuration. All durations are Go duration
// strings (e.g. "30s", "15m", "24h"); default_upload_time is a wall-clock
// time of day ("HH:MM" or "HH:MM:SS").
type Config struct {
	// DefaultUploadDelta is the minimum delay between two posts.
	DefaultUploadDelta string `json:"default_upload_delta" validate:"required"`
	// DefaultUploadTime is the daily target time of day for new posts.
	DefaultUploadTime string `json:"default_upload_time" validate:"required"`
	// CheckInterval caps how long cron mode sleeps between queue checks.
	CheckInterval string `json:"check_interval" validate:"required"`

	UnprocessedDir string `json:"unprocessed_dir_fp" validate:"required"`
	ProcessedDir   string `json:"processed_dir_fp" validate:"required"`

	// CheckSpec optionally aligns cron-mode checks to a schedule instead of
	// the plain interval: a cron expression ("*/15 * * * *", "@hourly",
	// "@every 15m"), a duration ("15m") or HH:MM. When set, the wait until
	// the next check replaces check_interval as the sleep cap.
	CheckSpec string `json:"check_spec,omitempty"`

	// WatchQueue wakes the cron loop early when the unprocessed directory
	// changes (a human added images or edited meta.json).
	WatchQueue bool `json:"watch_queue,omitempty"`

	Logging  LoggingConfig   `json:"logging,omitempty"`
	Audit    *AuditConfig    `json:"audit,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Uploader UploaderConfig  `json:"uploader,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
	// Console is a pointer so "omitted" can default to true.
	Console *bool       `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// AuditConfig controls the optional publish audit log.
//
// Driver values:
//   - "file": dependency-free JSON Lines append log
//   - "sqlite": SQLite database file (build with -tags sqlite)
//
// If the section is omitted or driver is ""/"none", auditing is disabled.
type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TelegramConfig controls optional publish-outcome notifications.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// UploaderConfig tunes the platform client. Defaults (when omitted/zero):
//   - request_timeout: "60s"
//   - rate_per_minute: 30
type UploaderConfig struct {
	RequestTimeout string `json:"request_timeout,omitempty"`
	RatePerMinute  int    `json:"rate_per_minute,omitempty"`
}
