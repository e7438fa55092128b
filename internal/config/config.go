package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Transport modes.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Storage   StorageConfig   `yaml:"storage"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	BadgerPath string `yaml:"badger_path"`
	SyncWrites bool   `yaml:"sync_writes"`
	// BadgerGCInterval is how often the badger value log is compacted. Zero disables it.
	BadgerGCInterval time.Duration `yaml:"badger_gc_interval"`
}

// SnapshotConfig places the index snapshot. An empty Path keeps it inside the KV store.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// DefaultCaller is the user reference (external id or p_<key>) used when
	// auth is disabled and for stdio sessions.
	DefaultCaller string `yaml:"default_caller"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Path, when set, receives a copy of the log. Once it passes MaxSizeMB
	// it is moved to Path.1, replacing the previous generation.
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

type BootstrapConfig struct {
	SeedAnonymous bool `yaml:"seed_anonymous"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: TransportStdio,
		},
		Storage: StorageConfig{
			Backend:          BackendSQLite,
			SQLitePath:       "arche.db",
			BadgerPath:       "arche-badger",
			SyncWrites:       true,
			BadgerGCInterval: 5 * time.Minute,
		},
		Auth: AuthConfig{
			DefaultCaller: "anonymous",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 6,
		},
		Bootstrap: BootstrapConfig{
			SeedAnonymous: true,
		},
	}
}

// Load reads configuration from the YAML file named by ARCHE_CONFIG_PATH,
// if any, and environment variables.
func Load() (Config, error) {
	return LoadFile(os.Getenv("ARCHE_CONFIG_PATH"))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("ARCHE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("ARCHE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid ARCHE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("ARCHE_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if backend := os.Getenv("ARCHE_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dbPath := os.Getenv("ARCHE_DB_PATH"); dbPath != "" {
		cfg.Storage.SQLitePath = dbPath
	}
	if badgerPath := os.Getenv("ARCHE_BADGER_PATH"); badgerPath != "" {
		cfg.Storage.BadgerPath = badgerPath
	}
	if snapPath := os.Getenv("ARCHE_SNAPSHOT_PATH"); snapPath != "" {
		cfg.Snapshot.Path = snapPath
	}
	if level := os.Getenv("ARCHE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("ARCHE_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if size := os.Getenv("ARCHE_LOG_MAX_SIZE_MB"); size != "" {
		v, err := strconv.Atoi(size)
		if err != nil {
			return fmt.Errorf("invalid ARCHE_LOG_MAX_SIZE_MB: %w", err)
		}
		cfg.Log.MaxSizeMB = v
	}
	if enabled := os.Getenv("ARCHE_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid ARCHE_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if caller := os.Getenv("ARCHE_DEFAULT_CALLER"); caller != "" {
		cfg.Auth.DefaultCaller = caller
	}
	return nil
}

// Validate rejects unknown enumerations and impossible values.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendBadger:
		if c.Storage.BadgerPath == "" {
			return fmt.Errorf("storage.badger_path is required for the badger backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Transport.Mode {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	if c.Log.Path != "" && c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be positive, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
