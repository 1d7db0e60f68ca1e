package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config captures everything the server needs from the environment. Optional
// backends (Redis, Kafka, Badger) are enabled by presence of their settings.
type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`
	RedisURL    string `envconfig:"REDIS_URL"`
	BadgerDir   string `envconfig:"BADGER_DIR"`

	KafkaBrokers    []string `envconfig:"KAFKA_BROKERS"`
	AuditTopic      string   `envconfig:"AUDIT_TOPIC" default:"crewpulse.audit"`
	AuditBufferSize int      `envconfig:"AUDIT_BUFFER_SIZE" default:"1024"`

	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-change-in-production"`
	AdminToken    string `envconfig:"ADMIN_TOKEN" default:"dev-admin-token"`

	FeedPageSize     int           `envconfig:"FEED_PAGE_SIZE" default:"25"`
	FeedCacheTTL     time.Duration `envconfig:"FEED_CACHE_TTL" default:"30s"`
	PollCloseEvery   time.Duration `envconfig:"POLL_CLOSE_EVERY" default:"1m"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	EventBufferSize  int           `envconfig:"EVENT_BUFFER_SIZE" default:"1024"`
	OutboxRelayEvery time.Duration `envconfig:"OUTBOX_RELAY_EVERY" default:"5s"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CREWPULSE", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env config: %w", err)
	}
	return cfg, nil
}

// HasRedis reports whether the feed cache should be wired.
func (c Config) HasRedis() bool { return c.RedisURL != "" }

// HasKafka reports whether the audit outbox relay should be wired.
func (c Config) HasKafka() bool { return len(c.KafkaBrokers) > 0 }

// HasPostgres reports whether relational stores replace the in-memory ones.
func (c Config) HasPostgres() bool { return c.PostgresDSN != "" }
