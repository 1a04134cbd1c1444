package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "DASHSYNC_CONFIG"
	EnvDataDir  = "DASHSYNC_DATA_DIR"
	EnvUserID   = "DASHSYNC_USER_ID"
	EnvAPIToken = "DASHSYNC_API_TOKEN"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // DASHSYNC_CONFIG: override config file path
	DataDir    string // DASHSYNC_DATA_DIR: data directory override
	UserID     string // DASHSYNC_USER_ID: synced account override
	APIToken   string // DASHSYNC_API_TOKEN: keeps the token out of the file
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		DataDir:    os.Getenv(EnvDataDir),
		UserID:     os.Getenv(EnvUserID),
		APIToken:   os.Getenv(EnvAPIToken),
	}
}
