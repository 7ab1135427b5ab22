package config

import (
	"encoding/json"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress"`
	DatabasePath  string    `json:"databasePath"`
	Remote        Remote    `json:"remote"`
	Sync          Sync      `json:"sync"`
	Retention     Retention `json:"retention"`
	Security      Security  `json:"security"`
}

// Remote configures the connection to the sync server
type Remote struct {
	BaseURL        string `json:"baseUrl"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Sync configures the periodic sync schedule
type Sync struct {
	ScheduleEnabled bool   `json:"scheduleEnabled"`
	Schedule        string `json:"schedule"` // cron expression or @every duration
}

// Retention bounds history and conflict storage
type Retention struct {
	VersionsPerItem int `json:"versionsPerItem"`
	MaxConflicts    int `json:"maxConflicts"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5600",
		DatabasePath:  "notesync.db",
		Remote: Remote{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 15,
		},
		Sync: Sync{
			ScheduleEnabled: true,
			Schedule:        "@every 5m",
		},
		Retention: Retention{
			VersionsPerItem: 50,
			MaxConflicts:    100,
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if token := os.Getenv("REMOTE_TOKEN"); token != "" {
		cfg.Remote.Token = token
	}
	if timeout := os.Getenv("REMOTE_TIMEOUT_SECONDS"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds > 0 {
			cfg.Remote.TimeoutSeconds = seconds
		}
	}
	if enabled := os.Getenv("SYNC_SCHEDULE_ENABLED"); enabled != "" {
		cfg.Sync.ScheduleEnabled = enabled == "true" || enabled == "1"
	}
	if schedule := os.Getenv("SYNC_SCHEDULE"); schedule != "" {
		cfg.Sync.Schedule = schedule
	}
	if versions := os.Getenv("RETENTION_VERSIONS_PER_ITEM"); versions != "" {
		if n, err := strconv.Atoi(versions); err == nil && n > 0 {
			cfg.Retention.VersionsPerItem = n
		}
	}
	if conflicts := os.Getenv("RETENTION_MAX_CONFLICTS"); conflicts != "" {
		if n, err := strconv.Atoi(conflicts); err == nil && n > 0 {
			cfg.Retention.MaxConflicts = n
		}
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if header := os.Getenv("API_KEY_HEADER"); header != "" {
		cfg.Security.APIKeyHeader = header
	}

	return cfg, nil
}
