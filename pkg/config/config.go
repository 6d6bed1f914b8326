// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Kafka, Pipeline, Webhook, Batch, Postgres, Redis, etc.).
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Batch    BatchConfig    `yaml:"batch"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Transactions string `yaml:"transactions"`
	DeadLetter   string `yaml:"deadLetter"`
}

// PipelineConfig controls the validation and delivery behaviour of the
// record router: retry budgets, timeouts, and the clock-skew tolerance
// applied to record timestamps.
type PipelineConfig struct {
	MaxPublishAttempts    int           `yaml:"maxPublishAttempts"`
	MaxDeadLetterAttempts int           `yaml:"maxDeadLetterAttempts"`
	InitialBackoff        time.Duration `yaml:"initialBackoff"`
	MaxBackoff            time.Duration `yaml:"maxBackoff"`
	AttemptTimeout        time.Duration `yaml:"attemptTimeout"`
	RecordDeadline        time.Duration `yaml:"recordDeadline"`
	ClockSkew             time.Duration `yaml:"clockSkew"`
}

// WebhookConfig holds stream-path settings: the shared HMAC secret
// (hex-encoded), the signature header, and abuse controls.
type WebhookConfig struct {
	SecretKey       string        `yaml:"secretKey"`
	SignatureHeader string        `yaml:"signatureHeader"`
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
	DuplicateTTL    time.Duration `yaml:"duplicateTTL"`
	DuplicateGuard  bool          `yaml:"duplicateGuard"`
}

// Secret decodes the hex-encoded HMAC secret.
func (w WebhookConfig) Secret() ([]byte, error) {
	if w.SecretKey == "" {
		return nil, fmt.Errorf("webhook secret key is not configured")
	}
	secret, err := hex.DecodeString(w.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("decoding webhook secret key: %w", err)
	}
	return secret, nil
}

// BatchConfig controls the batch CSV driver: input location, worker pool
// size, and per-file limits.
type BatchConfig struct {
	InputDir      string `yaml:"inputDir"`
	Workers       int    `yaml:"workers"`
	MaxFileSizeMB int    `yaml:"maxFileSizeMB"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// dead-letter archive.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters for the stream-path
// duplicate-delivery guard.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				Transactions: "transactions",
				DeadLetter:   "transactions-dlq",
			},
		},
		Pipeline: PipelineConfig{
			MaxPublishAttempts:    3,
			MaxDeadLetterAttempts: 2,
			InitialBackoff:        100 * time.Millisecond,
			MaxBackoff:            5 * time.Second,
			AttemptTimeout:        5 * time.Second,
			RecordDeadline:        30 * time.Second,
			ClockSkew:             5 * time.Minute,
		},
		Webhook: WebhookConfig{
			SignatureHeader: "X-Signature",
			RateLimit:       100,
			RateWindow:      time.Minute,
			DuplicateTTL:    24 * time.Hour,
			DuplicateGuard:  false,
		},
		Batch: BatchConfig{
			InputDir:      "data/incoming",
			Workers:       4,
			MaxFileSizeMB: 100,
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "ingestpipeline",
			User:            "ingestpipeline",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TIP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TIP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TIP_KAFKA_TOPIC_TRANSACTIONS"); v != "" {
		cfg.Kafka.Topics.Transactions = v
	}
	if v := os.Getenv("TIP_KAFKA_TOPIC_DEADLETTER"); v != "" {
		cfg.Kafka.Topics.DeadLetter = v
	}
	if v := os.Getenv("TIP_WEBHOOK_SECRET_KEY"); v != "" {
		cfg.Webhook.SecretKey = v
	}
	if v := os.Getenv("TIP_PIPELINE_MAX_PUBLISH_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxPublishAttempts = n
		}
	}
	if v := os.Getenv("TIP_BATCH_INPUT_DIR"); v != "" {
		cfg.Batch.InputDir = v
	}
	if v := os.Getenv("TIP_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := os.Getenv("TIP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TIP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TIP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TIP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TIP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TIP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TIP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TIP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TIP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TIP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
