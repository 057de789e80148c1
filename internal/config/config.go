package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Auth
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"12h"`
	CORSOrigins string        `envconfig:"CORS_ORIGINS" default:"*"`

	// Seed data (users must exist before anyone can sign in)
	UsersFile     string `envconfig:"USERS_FILE" default:"users.yaml"`
	ShortcutsFile string `envconfig:"SHORTCUTS_FILE"`

	// Snapshot persistence. Empty path keeps everything in memory.
	SnapshotPath     string        `envconfig:"SNAPSHOT_PATH"`
	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"30s"`

	// Automation sweep
	AutomationInterval time.Duration `envconfig:"AUTOMATION_INTERVAL" default:"1m"`

	// Sheet endpoint (optional — portal runs standalone without it)
	SheetURL     string        `envconfig:"SHEET_URL"`
	SheetTimeout time.Duration `envconfig:"SHEET_TIMEOUT" default:"15s"`
}

// SheetEnabled returns true if the scripting endpoint is configured.
func (c *Config) SheetEnabled() bool {
	return c.SheetURL != ""
}

// SnapshotEnabled returns true if file persistence is configured.
func (c *Config) SnapshotEnabled() bool {
	return c.SnapshotPath != ""
}

// CORSOriginList returns the parsed allowed origins.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, o := range parts {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	if c.AutomationInterval <= 0 {
		return fmt.Errorf("AUTOMATION_INTERVAL must be positive")
	}
	return nil
}

// Load reads configuration from the environment. A local .env file is
// merged first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
