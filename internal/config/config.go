package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration, read from the environment with an
// optional YAML event file layered on top.
type Config struct {
	Redis   RedisConfig
	Cache   CacheConfig
	Server  ServerConfig
	Log     LogConfig
	Title   string
	Refresh time.Duration
	Event   *EventConfig
}

type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	TLS         bool
	ClusterMode bool
}

// CacheConfig bounds the staleness window of each in-process cache.
type CacheConfig struct {
	ClearedPairsTTL time.Duration
	SubmissionsTTL  time.Duration
	LevelCapacity   int
}

type ServerConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// EventConfig is the YAML description of one prompt-a-thon event: title,
// levels, models, and the participant list.
type EventConfig struct {
	General struct {
		Title       string        `yaml:"title"`
		Description string        `yaml:"description"`
		Auth        []Participant `yaml:"auth"`
	} `yaml:"general"`
	Levels []Level `yaml:"levels"`
	Models []Model `yaml:"models"`
}

type Level struct {
	Name               string `yaml:"name"`
	PromptTemplate     string `yaml:"prompt_template"`
	ExpectedCompletion string `yaml:"expected_completion"`
}

type Model struct {
	Name string `yaml:"name"`
}

// Participant accepts either a bare username or a username/password mapping,
// so auth lists can mix both forms.
type Participant struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (p *Participant) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Username = value.Value
		return nil
	}
	type plain Participant
	return value.Decode((*plain)(p))
}

// Load reads configuration from environment variables, loading .env first if
// present. When eventPath is non-empty the YAML event file is required.
func Load(eventPath string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Config{
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
			Username:    getEnv("REDIS_USERNAME", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvInt("REDIS_DB", 0),
			TLS:         getEnvBool("REDIS_SSL", false),
			ClusterMode: getEnvBool("REDIS_CLUSTER_MODE", false),
		},
		Cache: CacheConfig{
			ClearedPairsTTL: getEnvDuration("CLEARED_CACHE_TTL", time.Minute),
			SubmissionsTTL:  getEnvDuration("SUBMISSION_CACHE_TTL", 30*time.Second),
			LevelCapacity:   getEnvInt("LEVEL_CACHE_SIZE", 128),
		},
		Server: ServerConfig{
			Host: getEnv("LEADERBOARD_HOST", "0.0.0.0"),
			Port: getEnv("LEADERBOARD_PORT", "8080"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "pretty"),
		},
		Title:   getEnv("LEADERBOARD_TITLE", "Leaderboard"),
		Refresh: getEnvDuration("LEADERBOARD_REFRESH", time.Minute),
	}

	if eventPath != "" {
		event, err := LoadEvent(eventPath)
		if err != nil {
			return cfg, err
		}
		cfg.Event = event
		if event.General.Title != "" {
			cfg.Title = event.General.Title
		}
	}
	return cfg, nil
}

// LoadEvent reads a YAML event file from path.
func LoadEvent(path string) (*EventConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event config: %w", err)
	}
	event := &EventConfig{}
	if err := yaml.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("parse event config: %w", err)
	}
	return event, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n != 0
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
