package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	GuestStoreRedis  = "redis"
	GuestStoreMemory = "memory"
)

type Config struct {
	HTTPPort        string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	Mongo   MongoConfig
	Redis   RedisConfig
	Cart    CartConfig
	Auth    AuthConfig
	Kafka   KafkaConfig
	Catalog CatalogConfig
}

type MongoConfig struct {
	URI    string
	DBName string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CartConfig struct {
	GuestStore       string
	GuestTTL         time.Duration
	CacheTTL         time.Duration
	PlaceholderImage string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// KafkaConfig configures the checkout consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	CheckoutTopic string
	GroupID       string
}

type CatalogConfig struct {
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "unimart")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GUEST_STORE", GuestStoreRedis)
	v.SetDefault("GUEST_CART_TTL", "168h")
	v.SetDefault("CART_CACHE_TTL", "15m")
	v.SetDefault("PLACEHOLDER_IMAGE", "/images/placeholder.png")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "unimart")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("CHECKOUT_TOPIC", "checkout-completed")
	v.SetDefault("KAFKA_GROUP_ID", "cart-service")

	v.SetDefault("CATALOG_BREAKER_FAILURES", 5)
	v.SetDefault("CATALOG_BREAKER_TIMEOUT", "30s")
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPPort:        v.GetString("HTTP_PORT"),
		Environment:     v.GetString("ENVIRONMENT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		CORSOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Mongo: MongoConfig{
			URI:    v.GetString("MONGO_URI"),
			DBName: v.GetString("MONGO_DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Cart: CartConfig{
			GuestStore:       strings.ToLower(v.GetString("GUEST_STORE")),
			GuestTTL:         v.GetDuration("GUEST_CART_TTL"),
			CacheTTL:         v.GetDuration("CART_CACHE_TTL"),
			PlaceholderImage: v.GetString("PLACEHOLDER_IMAGE"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			JWTIssuer: v.GetString("JWT_ISSUER"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			CheckoutTopic: v.GetString("CHECKOUT_TOPIC"),
			GroupID:       v.GetString("KAFKA_GROUP_ID"),
		},
		Catalog: CatalogConfig{
			BreakerFailures: v.GetUint32("CATALOG_BREAKER_FAILURES"),
			BreakerTimeout:  v.GetDuration("CATALOG_BREAKER_TIMEOUT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Cart.GuestStore != GuestStoreRedis && c.Cart.GuestStore != GuestStoreMemory {
		return fmt.Errorf("GUEST_STORE must be %q or %q, got %q", GuestStoreRedis, GuestStoreMemory, c.Cart.GuestStore)
	}
	if c.Cart.GuestTTL <= 0 {
		return fmt.Errorf("GUEST_CART_TTL must be positive")
	}
	if c.Cart.CacheTTL <= 0 {
		return fmt.Errorf("CART_CACHE_TTL must be positive")
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.CheckoutTopic == "" {
		return fmt.Errorf("CHECKOUT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// KafkaEnabled reports whether the checkout consumer should run.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
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
