package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ratehub/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Rates    RatesConfig    `mapstructure:"rates"`
}

// AppConfig general metadata. InstanceName identifies this node in the
// WebSocket handshake and in event source identities.
type AppConfig struct {
	Name         string `mapstructure:"name"`
	InstanceName string `mapstructure:"instance_name"`
	Environment  string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the replicated key-value substrate.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig captures broker connectivity.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// HTTPConfig sets the listen addresses of the two roles.
type HTTPConfig struct {
	IngestAddr string `mapstructure:"ingest_addr"`
	HubAddr    string `mapstructure:"hub_addr"`
}

// OutboxConfig governs the reliability engine's cadence and bounds.
type OutboxConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	StuckThreshold   time.Duration `mapstructure:"stuck_threshold"`
	DispatchWorkers  int           `mapstructure:"dispatch_workers"`
	StatsInterval    time.Duration `mapstructure:"stats_interval"`
}

// RatesConfig governs snapshot freshness and pair locking.
type RatesConfig struct {
	SnapshotTTL       time.Duration `mapstructure:"snapshot_ttl"`
	InvalidRefreshTTL time.Duration `mapstructure:"invalid_refresh_ttl"`
	PairLockTTL       time.Duration `mapstructure:"pair_lock_ttl"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ratehub")
	v.SetDefault("app.instance_name", "ratehub-1")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "rate.updates")
	v.SetDefault("kafka.group_id", "rate-hub")

	v.SetDefault("http.ingest_addr", ":8080")
	v.SetDefault("http.hub_addr", ":8081")

	v.SetDefault("outbox.poll_interval", "200ms")
	v.SetDefault("outbox.watchdog_interval", "10s")
	v.SetDefault("outbox.batch_size", 200)
	v.SetDefault("outbox.stuck_threshold", "30s")
	v.SetDefault("outbox.dispatch_workers", 32)
	v.SetDefault("outbox.stats_interval", "30s")

	v.SetDefault("rates.snapshot_ttl", "30s")
	v.SetDefault("rates.invalid_refresh_ttl", "5s")
	v.SetDefault("rates.pair_lock_ttl", "5s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox.poll_interval must be greater than zero")
	}
	if c.Outbox.WatchdogInterval <= 0 {
		return fmt.Errorf("outbox.watchdog_interval must be greater than zero")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be greater than zero")
	}
	if c.Outbox.StuckThreshold <= 0 {
		return fmt.Errorf("outbox.stuck_threshold must be greater than zero")
	}
	if c.Outbox.DispatchWorkers <= 0 {
		return fmt.Errorf("outbox.dispatch_workers must be greater than zero")
	}
	if c.Outbox.StatsInterval <= 0 {
		return fmt.Errorf("outbox.stats_interval must be greater than zero")
	}
	if c.Rates.SnapshotTTL <= 0 {
		return fmt.Errorf("rates.snapshot_ttl must be greater than zero")
	}
	if c.Rates.InvalidRefreshTTL <= 0 {
		return fmt.Errorf("rates.invalid_refresh_ttl must be greater than zero")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic must not be empty")
	}
	return nil
}

// Source returns the producing source identity stamped into event keys.
func (c *Config) Source() string {
	return c.App.Name + ":" + c.App.InstanceName
}
