package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Services struct {
	AuthURL    string
	CartURL    string
	OrderURL   string
	ProductURL string
	PushURL    string
}

type Config struct {
	HTTPPort           string
	LogLevel           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	Services Services

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	KafkaBrokers []string

	// PaymentSessionWindow bounds the payment step when the order service
	// does not return its own expiry.
	PaymentSessionWindow time.Duration
	MaxQuantity          int
	SessionIdleTTL       time.Duration
	MutationRateLimit    float64
	MutationBurst        int
	// RateLimitSessions caps how many per-session buckets are kept.
	RateLimitSessions int
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn(".env not loaded", "error", err)
	}

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		Services: Services{
			AuthURL:    getEnv("AUTH_SERVICE_URL", "http://localhost:3001"),
			CartURL:    getEnv("CART_SERVICE_URL", "http://localhost:3004"),
			OrderURL:   getEnv("ORDER_SERVICE_URL", "http://localhost:3006"),
			ProductURL: getEnv("PRODUCT_SERVICE_URL", "http://localhost:3002"),
			PushURL:    getEnv("PUSH_SERVICE_URL", "http://localhost:3008"),
		},

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "storefront"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getIntEnv("DB_PORT", 5432),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "storefront"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),

		DBMaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),

		PaymentSessionWindow: getDurationEnv("PAYMENT_SESSION_WINDOW", 10*time.Minute),
		MaxQuantity:          getIntEnv("CART_MAX_QUANTITY", 5),
		SessionIdleTTL:       getDurationEnv("SESSION_IDLE_TTL", 30*time.Minute),
		MutationRateLimit:    getFloatEnv("CART_MUTATION_RPS", 5),
		MutationBurst:        getIntEnv("CART_MUTATION_BURST", 10),
		RateLimitSessions:    getIntEnv("CART_RATE_LIMIT_SESSIONS", 10000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s") or plain seconds ("90").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
		slog.Warn("invalid integer, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
