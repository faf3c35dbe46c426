// Package config 读取 TOML 配置文件，并允许环境变量（含 .env）覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/KyleDunbarDev/networking-basic/game"
)

// 环境变量覆盖项
const (
	EnvAddr       = "NETSYNC_ADDR"
	EnvHTTPAddr   = "NETSYNC_HTTP_ADDR"
	EnvTickRateMs = "NETSYNC_TICK_RATE_MS"
	EnvLogFile    = "NETSYNC_LOG_FILE"
	EnvLogLevel   = "NETSYNC_LOG_LEVEL"
)

type ServerConfig struct {
	Addr             string `toml:"addr"`
	HTTPAddr         string `toml:"http_addr"` // 为空则不启动 HTTP（WebSocket/管理接口）
	TickRateMs       int    `toml:"tick_rate_ms"`
	OutboundBuffer   int    `toml:"outbound_buffer"`
	InputBuffer      int    `toml:"input_buffer"`
	MaxPendingInputs int    `toml:"max_pending_inputs"`
	WriteTimeoutMs   int    `toml:"write_timeout_ms"`
	MaxLineBytes     int    `toml:"max_line_bytes"`
}

func (s ServerConfig) TickRate() time.Duration {
	return time.Duration(s.TickRateMs) * time.Millisecond
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}

type LogConfig struct {
	File       string `toml:"file"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type Config struct {
	Server ServerConfig `toml:"server"`
	Rules  game.Rules   `toml:"rules"`
	Log    LogConfig    `toml:"log"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             "127.0.0.1:8080",
			TickRateMs:       16,
			OutboundBuffer:   64,
			InputBuffer:      1024,
			MaxPendingInputs: 64,
			WriteTimeoutMs:   5000,
			MaxLineBytes:     64 * 1024,
		},
		Rules: game.DefaultRules(),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load 默认值 → TOML 文件（不存在则跳过）→ .env 文件 → 环境变量，最后校验。
// envFiles 为空时尝试当前目录的 .env。
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv(EnvTickRateMs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTickRateMs, err)
		}
		c.Server.TickRateMs = n
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	s := c.Server
	if s.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if s.TickRateMs <= 0 {
		return fmt.Errorf("config: server.tick_rate_ms must be positive, got %d", s.TickRateMs)
	}
	if s.OutboundBuffer < 1 || s.InputBuffer < 1 || s.MaxPendingInputs < 1 {
		return fmt.Errorf("config: buffers must be at least 1 (outbound=%d input=%d pending=%d)",
			s.OutboundBuffer, s.InputBuffer, s.MaxPendingInputs)
	}
	if s.WriteTimeoutMs < 0 || s.MaxLineBytes < 0 {
		return errors.New("config: write_timeout_ms and max_line_bytes must not be negative")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
