package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
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
	Quiz struct {
		// Store selects the quiz repository: memory, file or postgres.
		Store string `yaml:"store"`
		Dir   string `yaml:"dir"`
		TTL   string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		TTL           string `yaml:"ttl"`
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"session"`
	Evaluator Evaluator `yaml:"evaluator"`
	Log       Log       `yaml:"log"`
}

// Evaluator configures the external evaluation and generation API.
type Evaluator struct {
	BaseURL    string `yaml:"baseUrl"`
	APIKey     string `yaml:"apiKey"`
	Model      string `yaml:"model"`
	Timeout    string `yaml:"timeout"`
	Workers    int    `yaml:"workers"`
	ContextTTL string `yaml:"contextTtl"`
}

// Log configures the zap logger. File enables a rotating JSON log.
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load reads YAML config from path. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if key := os.Getenv("EVALUATOR_API_KEY"); key != "" {
		cfg.Evaluator.APIKey = key
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Quiz.Store = "memory"
	cfg.Quiz.Dir = "quizzes"
	cfg.Evaluator.BaseURL = "https://openrouter.ai/api/v1"
	cfg.Evaluator.Model = "google/gemini-2.5-flash"
	cfg.Evaluator.Workers = 8
	cfg.Log.Level = "info"
	if key := os.Getenv("EVALUATOR_API_KEY"); key != "" {
		cfg.Evaluator.APIKey = key
	}
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// SessionTTL is how long a session is kept. Redis.TTL applies when
// Session.TTL is unset.
func (c Config) SessionTTL() time.Duration {
	return TTLDuration(c.Session.TTL, TTLDuration(c.Redis.TTL, 24*time.Hour))
}

// QuizCacheTTL is how long a parsed quiz stays in the redis cache. Redis.TTL
// applies when Quiz.TTL is unset.
func (c Config) QuizCacheTTL() time.Duration {
	return TTLDuration(c.Quiz.TTL, TTLDuration(c.Redis.TTL, 10*time.Minute))
}
