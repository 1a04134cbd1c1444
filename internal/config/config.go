// Package config implements TOML configuration loading, validation and
// platform-specific path resolution for dashsync. Values resolve through a
// four-layer chain: defaults -> config file -> environment -> CLI flags.
package config

// Config is the raw structure parsed from the TOML file. Durations and sizes
// stay strings here and are parsed during Resolve.
type Config struct {
	UserID  string `toml:"user_id"`
	Source  string `toml:"source"`
	DataDir string `toml:"data_dir"`

	Remote   RemoteConfig   `toml:"remote"`
	Sync     SyncConfig     `toml:"sync"`
	Presence PresenceConfig `toml:"presence"`
	Activity ActivityConfig `toml:"activity"`
	Logging  LoggingConfig  `toml:"logging"`
}

// RemoteConfig locates the backup store, session registry and optional
// notification socket.
type RemoteConfig struct {
	BackupURL            string  `toml:"backup_url"`
	SessionURL           string  `toml:"session_url"`
	NotifyURL            string  `toml:"notify_url"`
	APIToken             string  `toml:"api_token"`
	UserAgent            string  `toml:"user_agent"`
	RequestTimeout       string  `toml:"request_timeout"`
	MaxRequestsPerSecond float64 `toml:"max_requests_per_second"`
}

// SyncConfig tunes delivery and reconcile cadence.
type SyncConfig struct {
	Strategy           string `toml:"strategy"`
	Debounce           string `toml:"debounce"`
	RetryDelay         string `toml:"retry_delay"`
	MaxRetries         int    `toml:"max_retries"`
	IntervalMultiUser  string `toml:"interval_multi_user"`
	IntervalSingleUser string `toml:"interval_single_user"`
	MinInterval        string `toml:"min_interval"`
	MaxPayload         string `toml:"max_payload"`
	MaxQueue           int    `toml:"max_queue"`
	LogTrimThreshold   string `toml:"log_trim_threshold"`
}

// PresenceConfig controls heartbeats.
type PresenceConfig struct {
	HeartbeatInterval string `toml:"heartbeat_interval"`
}

// ActivityConfig controls user-activity detection.
type ActivityConfig struct {
	CheckInterval       string `toml:"check_interval"`
	InactivityThreshold string `toml:"inactivity_threshold"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from an explicit empty value.
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	DataDir    *string // --data-dir flag
	UserID     *string // --user flag
}
