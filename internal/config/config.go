package config

import (
	"time"

	"github.com/edi-spaghetti/cs50w-network/pkg/config"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Reconciler ReconcilerConfig
	Auth       AuthConfig
	Search     SearchConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// Options converts the section into pkg/database options.
func (d DatabaseConfig) Options() *database.Config {
	return &database.Config{
		Driver:          d.Driver,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		DBName:          d.DBName,
		SSLMode:         d.SSLMode,
		FilePath:        d.FilePath,
		MaxIdleConns:    d.MaxIdleConns,
		MaxOpenConns:    d.MaxOpenConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		LogLevel:        d.LogLevel,
	}
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	// Topics is a comma-separated list of Debezium topics for the edge tables.
	Topics  string `mapstructure:"topics"`
	GroupID string `mapstructure:"group_id"`
}

type ReconcilerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	TopN        int           `mapstructure:"top_n"`
	Concurrency int           `mapstructure:"concurrency"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
	CSRFTTL       time.Duration `mapstructure:"csrf_ttl"`
}

type SearchConfig struct {
	PageSize int `mapstructure:"page_size"`
	MaxLimit int `mapstructure:"max_limit"`
}

type StorageConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load() (*Config, error) {
	v, err := config.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "network")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/network.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topics", "dbserver1.public.follows,dbserver1.public.likes")
	v.SetDefault("kafka.group_id", "network-service")
	v.SetDefault("reconciler.interval", "60s")
	v.SetDefault("reconciler.top_n", 100)
	v.SetDefault("reconciler.concurrency", 8)
	v.SetDefault("auth.issuer", "network")
	v.SetDefault("auth.token_duration", "24h")
	v.SetDefault("auth.csrf_ttl", "24h")
	v.SetDefault("search.page_size", 10)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("storage.timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	err = config.BindEnvs(v, map[string]string{
		"server.port":                "PORT",
		"database.driver":            "DB_DRIVER",
		"database.host":              "DB_HOST",
		"database.port":              "DB_PORT",
		"database.user":              "DB_USER",
		"database.password":          "DB_PASSWORD",
		"database.dbname":            "DB_NAME",
		"database.sslmode":           "DB_SSLMODE",
		"database.file_path":         "DB_FILE_PATH",
		"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
		"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
		"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
		"database.log_level":         "DB_LOG_LEVEL",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"kafka.brokers":              "KAFKA_BROKERS",
		"kafka.topics":               "KAFKA_TOPICS",
		"kafka.group_id":             "KAFKA_GROUP_ID",
		"reconciler.interval":        "RECONCILER_INTERVAL",
		"reconciler.top_n":           "RECONCILER_TOP_N",
		"reconciler.concurrency":     "RECONCILER_CONCURRENCY",
		"auth.jwt_secret":            "JWT_SECRET",
		"auth.issuer":                "JWT_ISSUER",
		"auth.token_duration":        "JWT_TOKEN_DURATION",
		"auth.csrf_ttl":              "CSRF_TTL",
		"search.page_size":           "SEARCH_PAGE_SIZE",
		"search.max_limit":           "SEARCH_MAX_LIMIT",
		"storage.timeout":            "STORAGE_TIMEOUT",
		"log.level":                  "LOG_LEVEL",
		"log.pretty":                 "LOG_PRETTY",
	})
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
