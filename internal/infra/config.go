package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	RedisAddr     string
	RedisUsername string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	FalBaseURL     string
	FalSyncBaseURL string
	FalAPIKey      string
	FalTrainModel  string
	FalImageModel  string
	WebhookBaseURL string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	GeoIPDBPath string

	CORSOrigins []string

	ImageGenCost   int64
	TrainModelCost int64
	SignupGrant    int64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	DispatchTimeout  time.Duration
	RateLimitPerMin  int

	SweepInterval time.Duration
	SweepDeadline time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "photoai.jobs"),

		FalBaseURL:     getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		FalSyncBaseURL: getEnv("FAL_SYNC_BASE_URL", "https://fal.run"),
		FalAPIKey:      os.Getenv("FAL_API_KEY"),
		FalTrainModel:  getEnv("FAL_TRAIN_MODEL", "fal-ai/flux-lora-fast-training"),
		FalImageModel:  getEnv("FAL_IMAGE_MODEL", "fal-ai/flux-lora"),
		WebhookBaseURL: os.Getenv("WEBHOOK_BASE_URL"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "uploads"),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		ImageGenCost:   getEnvInt64("IMAGE_GEN_COST", 1),
		TrainModelCost: getEnvInt64("TRAIN_MODEL_COST", 20),
		SignupGrant:    getEnvInt64("SIGNUP_GRANT", 10),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		DispatchTimeout:  time.Second * time.Duration(getEnvInt("DISPATCH_TIMEOUT_SECONDS", 30)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		SweepInterval: time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)),
		SweepDeadline: time.Second * time.Duration(getEnvInt("SWEEP_DEADLINE_SECONDS", 600)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.ImageGenCost <= 0 || cfg.TrainModelCost <= 0 {
		return nil, fmt.Errorf("credit costs must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
