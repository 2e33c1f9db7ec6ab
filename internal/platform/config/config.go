package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Gateway backends.
const (
	GatewayMemory = "memory"
	GatewayGoTrue = "gotrue"
)

// Config is the whole process configuration.
type Config struct {
	Server   Server
	Gateway  GatewayConfig
	Routes   Routes
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
	// DevMode turns rejected auth state writes into panics.
	DevMode  bool
}

// GatewayConfig selects and configures the identity provider.
type GatewayConfig struct {
	Kind                     string
	URL                      string
	AnonKey                  string
	Timeout                  time.Duration
	AutoRefreshMargin        time.Duration
	JWTSigningKey            string
	AccessTokenTTL           time.Duration
	RequireEmailVerification bool
}

// Routes are the guard's redirect targets.
type Routes struct {
	SignIn string
	Home   string
}

// RedisConfig configures the optional session persistence backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SessionTTL bounds how long a persisted session survives without a refresh.
	SessionTTL   time.Duration
}

// PostgresConfig configures the optional meal store.
type PostgresConfig struct {
	URL string
}

// KafkaConfig configures the optional auth transition publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		// Use a default for development - should be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:     envOr("CALORIE_ADDR", ":8080"),
			LogLevel: envOr("LOG_LEVEL", "info"),
			DevMode:  os.Getenv("DEV_MODE") == "true",
		},
		Gateway: GatewayConfig{
			Kind:                     envOr("AUTH_GATEWAY", GatewayMemory),
			URL:                      strings.TrimRight(os.Getenv("GOTRUE_URL"), "/"),
			AnonKey:                  os.Getenv("GOTRUE_ANON_KEY"),
			Timeout:                  durationOr("GOTRUE_TIMEOUT", 10*time.Second),
			AutoRefreshMargin:        durationOr("AUTO_REFRESH_MARGIN", time.Minute),
			JWTSigningKey:            signingKey,
			AccessTokenTTL:           durationOr("ACCESS_TOKEN_TTL", time.Hour),
			RequireEmailVerification: os.Getenv("REQUIRE_EMAIL_VERIFICATION") == "true",
		},
		Routes: Routes{
			SignIn: envOr("ROUTE_SIGN_IN", "/auth/sign-in"),
			Home:   envOr("ROUTE_HOME", "/(tabs)/home"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SessionTTL:   durationOr("REDIS_SESSION_TTL", 30*24*time.Hour),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_AUTH_TOPIC", "calorie.auth.transitions"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
