package config

// Layer-0 defaults.
const (
	defaultSource             = "cli"
	defaultRequestTimeout     = "0"
	defaultStrategy           = "auto"
	defaultDebounce           = "2s"
	defaultRetryDelay         = "1s"
	defaultMaxRetries         = 3
	defaultIntervalMultiUser  = "15s"
	defaultIntervalSingleUser = "60s"
	defaultMinInterval        = "10s"
	defaultMaxPayload         = "1MB"
	defaultMaxQueue           = 5
	defaultLogTrimThreshold   = "800KB"
	defaultHeartbeatInterval  = "30s"
	defaultCheckInterval      = "60s"
	defaultInactivity         = "5m"
	defaultLogLevel           = "info"
	defaultLogFormat          = "auto"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: defaultSource,
		Remote: RemoteConfig{
			RequestTimeout: defaultRequestTimeout,
		},
		Sync: SyncConfig{
			Strategy:           defaultStrategy,
			Debounce:           defaultDebounce,
			RetryDelay:         defaultRetryDelay,
			MaxRetries:         defaultMaxRetries,
			IntervalMultiUser:  defaultIntervalMultiUser,
			IntervalSingleUser: defaultIntervalSingleUser,
			MinInterval:        defaultMinInterval,
			MaxPayload:         defaultMaxPayload,
			MaxQueue:           defaultMaxQueue,
			LogTrimThreshold:   defaultLogTrimThreshold,
		},
		Presence: PresenceConfig{
			HeartbeatInterval: defaultHeartbeatInterval,
		},
		Activity: ActivityConfig{
			CheckInterval:       defaultCheckInterval,
			InactivityThreshold: defaultInactivity,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
