package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log   LogConfig   `toml:"log"`
	DB    DBConfig    `toml:"db"`
	Web   WebConfig   `toml:"web"`
	Redis RedisConfig `toml:"redis"`
	Trade TradeConfig `toml:"trade"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

type WebConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// TradeConfig controls session lifecycle timing.
type TradeConfig struct {
	SessionTTLHours  int `toml:"session_ttl_hours"`
	SweepIntervalMin int `toml:"sweep_interval_min"`
}

func (c TradeConfig) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c TradeConfig) SweepInterval() time.Duration {
	if c.SweepIntervalMin <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.SweepIntervalMin) * time.Minute
}
