package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation bounds.
const (
	minDebounce      = 100 * time.Millisecond
	minSyncInterval  = time.Second
	minHeartbeat     = time.Second
	minPayloadBytes  = 1024
	maxRetriesCap    = 20
	maxQueueCap      = 100
	minTrimThreshold = 1024
)

var (
	validStrategies = map[string]bool{"auto": true, "debounce": true, "immediate": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate checks all raw configuration values and returns every error found.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRemote(&cfg.Remote)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateDuration("presence.heartbeat_interval", cfg.Presence.HeartbeatInterval, minHeartbeat)...)
	errs = append(errs, validateDuration("activity.check_interval", cfg.Activity.CheckInterval, time.Second)...)
	errs = append(errs, validateDuration("activity.inactivity_threshold", cfg.Activity.InactivityThreshold, time.Second)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after the env
// and CLI layers are applied.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if r.UserID == "" {
		errs = append(errs, fmt.Errorf("user_id: required (set it in the config file, %s or --user)", EnvUserID))
	}

	if r.BackupURL == "" {
		errs = append(errs, errors.New("remote.backup_url: required"))
	}

	if r.SessionURL == "" {
		errs = append(errs, errors.New("remote.session_url: required"))
	}

	if r.DataDir == "" {
		errs = append(errs, errors.New("data_dir: could not determine a data directory"))
	}

	return errors.Join(errs...)
}

func validateRemote(r *RemoteConfig) []error {
	var errs []error

	errs = append(errs, validateURL("remote.backup_url", r.BackupURL, "http", "https")...)
	errs = append(errs, validateURL("remote.session_url", r.SessionURL, "http", "https")...)
	errs = append(errs, validateURL("remote.notify_url", r.NotifyURL, "ws", "wss", "http", "https")...)

	if r.RequestTimeout != "0" {
		errs = append(errs, validateDuration("remote.request_timeout", r.RequestTimeout, time.Second)...)
	}

	if r.MaxRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("remote.max_requests_per_second: must be >= 0, got %g", r.MaxRequestsPerSecond))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if !validStrategies[s.Strategy] {
		errs = append(errs, fmt.Errorf("sync.strategy: must be one of auto, debounce, immediate; got %q", s.Strategy))
	}

	errs = append(errs, validateDuration("sync.debounce", s.Debounce, minDebounce)...)
	errs = append(errs, validateDuration("sync.retry_delay", s.RetryDelay, 0)...)
	errs = append(errs, validateDuration("sync.interval_multi_user", s.IntervalMultiUser, minSyncInterval)...)
	errs = append(errs, validateDuration("sync.interval_single_user", s.IntervalSingleUser, minSyncInterval)...)
	errs = append(errs, validateDuration("sync.min_interval", s.MinInterval, 0)...)
	errs = append(errs, validateSize("sync.max_payload", s.MaxPayload, minPayloadBytes)...)
	errs = append(errs, validateSize("sync.log_trim_threshold", s.LogTrimThreshold, minTrimThreshold)...)

	if s.MaxRetries < 1 || s.MaxRetries > maxRetriesCap {
		errs = append(errs, fmt.Errorf("sync.max_retries: must be between 1 and %d, got %d", maxRetriesCap, s.MaxRetries))
	}

	if s.MaxQueue < 1 || s.MaxQueue > maxQueueCap {
		errs = append(errs, fmt.Errorf("sync.max_queue: must be between 1 and %d, got %d", maxQueueCap, s.MaxQueue))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateDuration(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum || d < 0 {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateSize(field, value string, minimum int64) []error {
	n, err := ParseSize(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	if n < minimum {
		return []error{fmt.Errorf("%s: must be >= %d bytes, got %d", field, minimum, n)}
	}

	return nil
}

// validateURL accepts an empty value; presence is checked after resolution.
func validateURL(field, value string, schemes ...string) []error {
	if value == "" {
		return nil
	}

	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %w", field, err)}
	}

	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}

	return []error{fmt.Errorf("%s: must be an absolute %v URL, got %q", field, schemes, value)}
}
