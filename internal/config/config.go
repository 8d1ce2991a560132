package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	LLMProvider string        `mapstructure:"LLM_PROVIDER"`
	LLMBaseURL  string        `mapstructure:"LLM_BASE_URL"`
	LLMModel    string        `mapstructure:"LLM_MODEL"`
	LLMAPIKey   string        `mapstructure:"LLM_API_KEY"`
	LLMTimeout  time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMCacheTTL time.Duration `mapstructure:"LLM_CACHE_TTL"`

	ArchiveBackend string        `mapstructure:"ARCHIVE_BACKEND"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	RedisTTL       time.Duration `mapstructure:"REDIS_SESSION_TTL"`

	EventsBackend string `mapstructure:"EVENTS_BACKEND"`
	NATSURL       string `mapstructure:"NATS_URL"`
	NATSToken     string `mapstructure:"NATS_TOKEN"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`

	NudgeInterval       time.Duration `mapstructure:"NUDGE_INTERVAL"`
	NudgeThrottle       time.Duration `mapstructure:"NUDGE_THROTTLE"`
	NudgeCooldown       time.Duration `mapstructure:"NUDGE_COOLDOWN"`
	StartConflictPolicy string        `mapstructure:"START_CONFLICT_POLICY"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("LLM_PROVIDER", "mock")
	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_MODEL", "")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_TIMEOUT", "12s")
	v.SetDefault("LLM_CACHE_TTL", "0s")

	v.SetDefault("ARCHIVE_BACKEND", "memory")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_SESSION_TTL", "720h")

	v.SetDefault("EVENTS_BACKEND", "none")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("NATS_TOKEN", "")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "callcoach.events")

	v.SetDefault("NUDGE_INTERVAL", "3s")
	v.SetDefault("NUDGE_THROTTLE", "2500ms")
	v.SetDefault("NUDGE_COOLDOWN", "60s")
	v.SetDefault("START_CONFLICT_POLICY", "reject")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.ArchiveBackend = strings.ToLower(strings.TrimSpace(cfg.ArchiveBackend))
	cfg.EventsBackend = strings.ToLower(strings.TrimSpace(cfg.EventsBackend))
	cfg.StartConflictPolicy = strings.ToLower(strings.TrimSpace(cfg.StartConflictPolicy))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "mock", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.LLMProvider == "openai" && c.LLMBaseURL == "" {
		return fmt.Errorf("config: LLM_BASE_URL is required for the openai provider")
	}
	if c.LLMProvider == "anthropic" && c.LLMAPIKey == "" {
		return fmt.Errorf("config: LLM_API_KEY is required for the anthropic provider")
	}
	switch c.ArchiveBackend {
	case "memory", "redis":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres archive")
		}
	default:
		return fmt.Errorf("config: unknown ARCHIVE_BACKEND %q", c.ArchiveBackend)
	}
	switch c.EventsBackend {
	case "none", "nats", "kafka":
	default:
		return fmt.Errorf("config: unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	switch c.StartConflictPolicy {
	case "reject", "replace":
	default:
		return fmt.Errorf("config: START_CONFLICT_POLICY must be reject or replace, got %q", c.StartConflictPolicy)
	}
	return nil
}

// KafkaBrokerList splits the comma separated broker list.
func (c Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
