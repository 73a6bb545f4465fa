package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerPortEnv overrides the companion model-server port when set.
const ServerPortEnv = "POLYCHAT_SERVER_PORT"

const defaultServerPort = 8765

type Config struct {
	Paths struct {
		DataDir string `toml:"data_dir"`
	} `toml:"paths"`
	HTTP struct {
		RequestTimeoutSecs  int `toml:"request_timeout_secs"`
		ConnTestTimeoutSecs int `toml:"conn_test_timeout_secs"`
	} `toml:"http"`
	Server struct {
		Port int `toml:"port"`
	} `toml:"server"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

var userHomeDir = os.UserHomeDir

// DefaultDataDir is ~/.polychat, falling back to a relative directory when the
// home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := userHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".polychat"
	}
	return filepath.Join(home, ".polychat")
}

func configPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load reads config.toml from the data directory. A missing file yields the
// defaults, not an error.
func Load() (*Config, error) {
	var cfg Config
	cfg.Paths.DataDir = DefaultDataDir()
	cfg.HTTP.RequestTimeoutSecs = 30
	cfg.HTTP.ConnTestTimeoutSecs = 10
	cfg.Server.Port = defaultServerPort
	cfg.Log.Level = "info"

	path := configPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.DataDir) == "" {
		cfg.Paths.DataDir = DefaultDataDir()
	}
	if cfg.HTTP.RequestTimeoutSecs <= 0 {
		cfg.HTTP.RequestTimeoutSecs = 30
	}
	if cfg.HTTP.ConnTestTimeoutSecs <= 0 {
		cfg.HTTP.ConnTestTimeoutSecs = 10
	}
	return &cfg, nil
}

func (c *Config) Save() error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// ServerPort resolves the companion model-server port, preferring the
// environment override over the configured value.
func (c *Config) ServerPort() int {
	if raw := strings.TrimSpace(os.Getenv(ServerPortEnv)); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port < 65536 {
			return port
		}
	}
	if c != nil && c.Server.Port > 0 {
		return c.Server.Port
	}
	return defaultServerPort
}

// ChatsDir is the directory holding one JSON file per chat session.
func (c *Config) ChatsDir() string {
	return filepath.Join(c.Paths.DataDir, "chats")
}
