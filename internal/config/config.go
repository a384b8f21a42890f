package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	LogLevel string

	StoreLatency     time.Duration
	ActivityCapacity int
	SeedDemoData     bool

	// OutboxEnabled switches the activity relay on. Without it the process
	// runs purely in memory.
	OutboxEnabled bool
	DB            DBConfig
	Kafka         KafkaConfig
	Publisher     PublisherConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN renders the connection string understood by pgxpool.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// Console replaces the broker with a producer that logs messages.
	Console bool
}

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease is how long a task may stay PROCESSING before another poll
	// reclaims it.
	Lease time.Duration
}

// loadEnv looks for .env next to the working directory or up to two levels
// above it, then for .example.env in the same places. Missing files are not
// an error: the process environment is used as is.
func loadEnv() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dirs := []string{
		wd,
		filepath.Join(wd, ".."),
		filepath.Join(wd, "..", ".."),
	}
	for _, name := range []string{".env", ".example.env"} {
		for _, dir := range dirs {
			path := filepath.Join(dir, name)
			if err := godotenv.Load(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// Load reads configuration from the environment after applying any .env
// file found. It returns the path of the loaded file, if any.
func Load() (Config, string, error) {
	path, _ := loadEnv()
	cfg, err := FromEnv()
	return cfg, path, err
}

// FromEnv reads configuration from the current environment only.
func FromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)
	cfg.HTTPPort = getString("HTTP_PORT", "9000")
	cfg.LogLevel = getString("LOG_LEVEL", "info")

	if cfg.StoreLatency, err = getDuration("STORE_LATENCY", 0); err != nil {
		return Config{}, err
	}
	if cfg.ActivityCapacity, err = getInt("ACTIVITY_CAPACITY", 500); err != nil {
		return Config{}, err
	}
	if cfg.SeedDemoData, err = getBool("SEED_DEMO_DATA", true); err != nil {
		return Config{}, err
	}

	if cfg.OutboxEnabled, err = getBool("OUTBOX_ENABLED", false); err != nil {
		return Config{}, err
	}
	cfg.DB.Host = getString("DB_HOST", "localhost")
	if cfg.DB.Port, err = getInt("DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	cfg.DB.User = getString("POSTGRES_USER", "postgres")
	cfg.DB.Password = getString("POSTGRES_PASSWORD", "")
	cfg.DB.Name = getString("POSTGRES_DB", "giftstore")

	cfg.Kafka.Brokers = splitList(getString("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getString("KAFKA_TOPIC", "activity_events")
	cfg.Kafka.GroupID = getString("KAFKA_GROUP_ID", "activity-consumer-group")
	if cfg.Kafka.Console, err = getBool("KAFKA_CONSOLE", false); err != nil {
		return Config{}, err
	}

	if cfg.Publisher.PollInterval, err = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Publisher.BatchSize, err = getInt("OUTBOX_BATCH_SIZE", 10); err != nil {
		return Config{}, err
	}
	if cfg.Publisher.MaxAttempts, err = getInt("OUTBOX_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.Publisher.Lease, err = getDuration("OUTBOX_LEASE", time.Minute); err != nil {
		return Config{}, err
	}

	if cfg.ActivityCapacity <= 0 {
		return Config{}, fmt.Errorf("ACTIVITY_CAPACITY must be positive, got %d", cfg.ActivityCapacity)
	}
	if cfg.Publisher.BatchSize <= 0 || cfg.Publisher.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_BATCH_SIZE and OUTBOX_MAX_ATTEMPTS must be positive")
	}
	if cfg.Publisher.Lease <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_LEASE must be positive, got %s", cfg.Publisher.Lease)
	}
	return cfg, nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) (int, error) {
	raw := getString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := getString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := getString(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
