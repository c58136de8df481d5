package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	LogLevel   string

	JWTSecret            string
	PaymentCallbackToken string
	InternalServiceKey   string

	RedisAddr              string
	KafkaBrokers           []string
	KafkaNotificationTopic string

	RequestTimeout  time.Duration
	NotifyRetrySpec string
	MigrationsPath  string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getenv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		LogLevel:   os.Getenv("LOG_LEVEL"),

		JWTSecret:            os.Getenv("JWT_SECRET"),
		PaymentCallbackToken: os.Getenv("PAYMENT_CALLBACK_TOKEN"),
		InternalServiceKey:   os.Getenv("INTERNAL_SECRET_KEY"),

		RedisAddr:              getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:           splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaNotificationTopic: getenv("KAFKA_NOTIFICATION_TOPIC", "marketplace.notifications"),

		RequestTimeout:  parseDuration(os.Getenv("REQUEST_TIMEOUT"), 5*time.Second),
		NotifyRetrySpec: getenv("NOTIFY_RETRY_SPEC", "@every 30s"),
		MigrationsPath:  getenv("MIGRATIONS_PATH", "./migrations"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
