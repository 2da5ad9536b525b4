package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Session struct {
		TeacherID string `yaml:"teacher_id"`
	} `yaml:"session"`
	Quiz struct {
		DefaultTimer    string `yaml:"default_timer"`
		SubmitGrace     string `yaml:"submit_grace"`
		DiscussionDelay string `yaml:"discussion_delay"`
	} `yaml:"quiz"`
	Focus struct {
		DistractionThreshold int `yaml:"distraction_threshold"`
	} `yaml:"focus"`
	Report struct {
		TTL string `yaml:"ttl"`
	} `yaml:"report"`
	Analysis struct {
		URL     string `yaml:"url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"analysis"`
	Logging Logging `yaml:"logging"`
}

// Logging configures the zap logger and its optional rotating file.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// DistractionThreshold is the focus score below which teachers are alerted.
func (c Config) DistractionThreshold() int {
	if c.Focus.DistractionThreshold <= 0 {
		return 50
	}
	return c.Focus.DistractionThreshold
}
