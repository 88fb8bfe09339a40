package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platewise/printrelay/internal/core"
)

// RelayConfig configures the cloud relay service.
type RelayConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Printers  PrintersConfig  `yaml:"printers"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Auth      AuthConfig      `yaml:"auth"`
	Webhooks  []WebhookTarget `yaml:"webhooks"`
	Retention RetentionConfig `yaml:"retention"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	// Path is the sqlite file; empty selects the volatile in-memory queue.
	Path string `yaml:"path"`
}

type QueueConfig struct {
	ClaimLease    time.Duration `yaml:"claim_lease"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
	StatusWindow  time.Duration `yaml:"status_window"`
	MaxClaimBatch int           `yaml:"max_claim_batch"`
}

type PrintersConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

type DispatchConfig struct {
	DirectRetries int           `yaml:"direct_retries"`
	DirectBackoff time.Duration `yaml:"direct_backoff"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	UnknownGrace  time.Duration `yaml:"unknown_grace"`
}

type AuthConfig struct {
	// AdminSecretHash is the bcrypt hash of the admin secret; empty
	// disables the admin endpoints.
	AdminSecretHash string        `yaml:"admin_secret_hash"`
	TokenDuration   time.Duration `yaml:"token_duration"`
	JWTSecret       string        `yaml:"jwt_secret"`
}

type WebhookTarget struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

type RetentionConfig struct {
	Days        int    `yaml:"days"`
	ArchivePath string `yaml:"archive_path"`
}

// BridgeConfig configures the on-site bridge agent.
type BridgeConfig struct {
	RelayURL     string        `yaml:"relay_url"`
	RestaurantID string        `yaml:"restaurant_id"`
	PrinterID    string        `yaml:"printer_id"`
	PrinterAddr  string        `yaml:"printer_addr"`
	PrinterPort  int           `yaml:"printer_port"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func relayDefaults() *RelayConfig {
	return &RelayConfig{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/relay.db",
		},
		Queue: QueueConfig{
			ClaimLease:    core.DefaultClaimLease,
			ReapInterval:  30 * time.Second,
			StatusWindow:  5 * time.Minute,
			MaxClaimBatch: core.MaxClaimBatch,
		},
		Printers: PrintersConfig{
			ProbeInterval: 30 * time.Second,
			DialTimeout:   3 * time.Second,
			WriteTimeout:  5 * time.Second,
		},
		Dispatch: DispatchConfig{
			DirectRetries: 2,
			DirectBackoff: 500 * time.Millisecond,
			SendTimeout:   4 * time.Second,
			UnknownGrace:  2 * time.Minute,
		},
		Auth: AuthConfig{
			TokenDuration: 24 * time.Hour,
		},
		Retention: RetentionConfig{
			Days:        30,
			ArchivePath: "./data/archives",
		},
	}
}

func bridgeDefaults() *BridgeConfig {
	return &BridgeConfig{
		PrinterPort:  9100,
		PollInterval: 10 * time.Second,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		HTTPTimeout:  10 * time.Second,
		DialTimeout:  3 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// LoadRelay reads the relay config file, falling back to defaults when the
// file is absent, then applies RELAY_* environment overrides.
func LoadRelay(path string) (*RelayConfig, error) {
	cfg := relayDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RELAY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("RELAY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("RELAY_ADMIN_SECRET_HASH"); v != "" {
		cfg.Auth.AdminSecretHash = v
	}

	return cfg, nil
}

// LoadBridge reads the bridge agent config file and BRIDGE_* overrides.
func LoadBridge(path string) (*BridgeConfig, error) {
	cfg := bridgeDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("BRIDGE_RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("BRIDGE_PRINTER_ID"); v != "" {
		cfg.PrinterID = v
	}
	if v := os.Getenv("BRIDGE_PRINTER_ADDR"); v != "" {
		cfg.PrinterAddr = v
	}
	if v := os.Getenv("BRIDGE_RESTAURANT_ID"); v != "" {
		cfg.RestaurantID = v
	}

	return cfg, nil
}

func (c *RelayConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Queue.ClaimLease <= 0 {
		return fmt.Errorf("claim lease must be positive")
	}
	if c.Queue.MaxClaimBatch < 1 {
		return fmt.Errorf("max claim batch must be at least 1")
	}
	if c.Queue.StatusWindow <= 0 {
		return fmt.Errorf("status window must be positive")
	}
	if c.Dispatch.DirectRetries < 0 {
		return fmt.Errorf("direct retries must be non-negative")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days must be non-negative")
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhook %d is missing a url", i)
		}
	}
	return nil
}

func (c *BridgeConfig) Validate() error {
	if c.RelayURL == "" {
		return fmt.Errorf("relay_url is required")
	}
	if c.PrinterID == "" {
		return fmt.Errorf("printer_id is required")
	}
	if c.PrinterAddr == "" {
		return fmt.Errorf("printer_addr is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}
	return nil
}
