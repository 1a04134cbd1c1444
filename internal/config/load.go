package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the fully layered configuration with durations and sizes
// parsed, ready to hand to the sync client.
type Resolved struct {
	ConfigPath string

	UserID  string
	Source  string
	DataDir string

	BackupURL            string
	SessionURL           string
	NotifyURL            string
	APIToken             string
	UserAgent            string
	RequestTimeout       time.Duration
	MaxRequestsPerSecond float64

	Strategy           string
	Debounce           time.Duration
	RetryDelay         time.Duration
	MaxRetries         int
	IntervalMultiUser  time.Duration
	IntervalSingleUser time.Duration
	MinInterval        time.Duration
	MaxPayload         int
	MaxQueue           int
	LogTrimThreshold   int

	HeartbeatInterval   time.Duration
	CheckInterval       time.Duration
	InactivityThreshold time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads, parses and validates a TOML config file. Unknown keys are
// fatal and carry "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// ConfigPath picks the config file: CLI > env > platform default.
func ConfigPath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags. The result
// must name a user and both remote endpoints.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	resolved, err := resolveLayers(env, cli)
	if err != nil {
		return nil, err
	}

	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// ResolveLocal is Resolve for commands that only touch local state. It
// requires a data directory but no user or endpoints.
func ResolveLocal(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	resolved, err := resolveLayers(env, cli)
	if err != nil {
		return nil, err
	}

	if resolved.DataDir == "" {
		return nil, errors.New("config validation: data_dir: could not determine a data directory")
	}

	return resolved, nil
}

func resolveLayers(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	path := ConfigPath(env, cli)

	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if env.UserID != "" {
		cfg.UserID = env.UserID
	}

	if env.APIToken != "" {
		cfg.Remote.APIToken = env.APIToken
	}

	if cli.DataDir != nil {
		cfg.DataDir = *cli.DataDir
	}

	if cli.UserID != nil {
		cfg.UserID = *cli.UserID
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	resolved, err := resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	resolved.ConfigPath = path

	return resolved, nil
}

// resolve parses the string-typed fields of an already validated Config.
func resolve(cfg *Config) (*Resolved, error) {
	p := &parser{}

	r := &Resolved{
		UserID:               cfg.UserID,
		Source:               cfg.Source,
		DataDir:              cfg.DataDir,
		BackupURL:            cfg.Remote.BackupURL,
		SessionURL:           cfg.Remote.SessionURL,
		NotifyURL:            cfg.Remote.NotifyURL,
		APIToken:             cfg.Remote.APIToken,
		UserAgent:            cfg.Remote.UserAgent,
		RequestTimeout:       p.duration(cfg.Remote.RequestTimeout),
		MaxRequestsPerSecond: cfg.Remote.MaxRequestsPerSecond,
		Strategy:             cfg.Sync.Strategy,
		Debounce:             p.duration(cfg.Sync.Debounce),
		RetryDelay:           p.duration(cfg.Sync.RetryDelay),
		MaxRetries:           cfg.Sync.MaxRetries,
		IntervalMultiUser:    p.duration(cfg.Sync.IntervalMultiUser),
		IntervalSingleUser:   p.duration(cfg.Sync.IntervalSingleUser),
		MinInterval:          p.duration(cfg.Sync.MinInterval),
		MaxPayload:           p.size(cfg.Sync.MaxPayload),
		MaxQueue:             cfg.Sync.MaxQueue,
		LogTrimThreshold:     p.size(cfg.Sync.LogTrimThreshold),
		HeartbeatInterval:    p.duration(cfg.Presence.HeartbeatInterval),
		CheckInterval:        p.duration(cfg.Activity.CheckInterval),
		InactivityThreshold:  p.duration(cfg.Activity.InactivityThreshold),
		LogLevel:             cfg.Logging.LogLevel,
		LogFormat:            cfg.Logging.LogFormat,
	}

	return r, errors.Join(p.errs...)
}

// parser accumulates parse errors so resolve reads as one struct literal.
type parser struct {
	errs []error
}

func (p *parser) duration(s string) time.Duration {
	if s == "0" {
		return 0
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		p.errs = append(p.errs, err)
	}

	return d
}

func (p *parser) size(s string) int {
	n, err := ParseSize(s)
	if err != nil {
		p.errs = append(p.errs, err)
	}

	return int(n)
}
