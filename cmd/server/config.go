package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type sweepDefaults struct {
	Start  float64 `toml:"start"`
	Stop   float64 `toml:"stop"`
	Points int     `toml:"points"`
}

type rateLimitConfig struct {
	Interval    time.Duration
	MaxRequests int
}

type serverConfig struct {
	Listen    string
	BaudRate  int
	LogLevel  string
	Sweep     sweepDefaults
	RateLimit rateLimitConfig
}

type fileConfig struct {
	Listen            string        `toml:"listen"`
	BaudRate          int           `toml:"baud_rate"`
	LogLevel          string        `toml:"log_level"`
	Sweep             sweepDefaults `toml:"sweep"`
	RateLimitInterval string        `toml:"rate_limit_interval"`
	RateLimitMax      int           `toml:"rate_limit_max_requests"`
}

func defaultConfig() serverConfig {
	return serverConfig{
		Listen:   ":8080",
		BaudRate: 115200,
		LogLevel: "info",
		Sweep:    sweepDefaults{Start: 1e6, Stop: 900e6, Points: 101},
		RateLimit: rateLimitConfig{
			Interval:    time.Second,
			MaxRequests: 5,
		},
	}
}

func loadConfig(path string) (serverConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = raw.Listen
	}
	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = raw.LogLevel
	}
	if meta.IsDefined("sweep", "start") {
		cfg.Sweep.Start = raw.Sweep.Start
	}
	if meta.IsDefined("sweep", "stop") {
		cfg.Sweep.Stop = raw.Sweep.Stop
	}
	if meta.IsDefined("sweep", "points") {
		cfg.Sweep.Points = raw.Sweep.Points
	}
	if meta.IsDefined("rate_limit_interval") {
		d, err := time.ParseDuration(raw.RateLimitInterval)
		if err != nil {
			return serverConfig{}, fmt.Errorf("parse rate_limit_interval: %w", err)
		}
		cfg.RateLimit.Interval = d
	}
	if meta.IsDefined("rate_limit_max_requests") {
		cfg.RateLimit.MaxRequests = raw.RateLimitMax
	}

	return cfg, nil
}
