package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=restoran_pos port=5432 sslmode=disable"

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Presence PresenceConfig
}

type ServerConfig struct {
	AppEnv        string
	HTTPPort      string
	CORSOrigins   string
	PublicBaseURL string // used to build terminal public URLs
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// RedisConfig: empty Addr disables the catalog cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig: no brokers disables order event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type PresenceConfig struct {
	OnlineWindow time.Duration
}

func (c *Config) IsDevelopment() bool { return c.Server.AppEnv == "development" }

// Load reads the environment. The caller loads .env beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			AppEnv:        getEnv("APP_ENV", "development"),
			HTTPPort:      getEnv("HTTP_PORT", "8080"),
			CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "json"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", defaultDSN),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnectRetries:  getEnvInt("DATABASE_CONNECT_RETRIES", 5),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("REDIS_CATALOG_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
		},
		Presence: PresenceConfig{
			OnlineWindow: getEnvDuration("PRESENCE_ONLINE_WINDOW", 5*time.Minute),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if len(cfg.JWT.Secret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.Presence.OnlineWindow <= 0 {
		return nil, errors.New("PRESENCE_ONLINE_WINDOW must be positive")
	}
	return cfg, nil
}

// Warnings lists insecure defaults still in effect.
func (c *Config) Warnings() []string {
	var w []string
	if c.Database.DSN == defaultDSN {
		w = append(w, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.Server.CORSOrigins == "http://localhost:5173" {
		w = append(w, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	return w
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
