package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// RedisConfig holds the connection settings of the grant store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NSQConfig holds the producer settings of the notification channel.
// An empty NSQDAddr selects the log-only notifier.
type NSQConfig struct {
	NSQDAddr string
	Topic    string
}

// AuthConfig holds the verification key for bearer tokens issued by the account service.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// OTPConfig controls one-time code issuance.
type OTPConfig struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	// Pepper keys the HMAC used to store code digests.
	Pepper string
}

// IntakeConfig controls upload validation.
type IntakeConfig struct {
	MaxBytes int64
}

// PrintConfig controls grant lifetime and document expiry.
type PrintConfig struct {
	GrantTTL       time.Duration
	ConfirmTimeout time.Duration
	DocumentTTL    time.Duration
	SweepInterval  time.Duration
}

// RetryConfig bounds retries of storage, grant and notification calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level    string
	Timezone string
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost string
	Port    string
	// PublicBaseURL prefixes the anonymous upload links embedded in QR codes.
	PublicBaseURL string
	Database      DatabaseConfig
	MinIO         MinIOConfig
	Redis         RedisConfig
	NSQ           NSQConfig
	Auth          AuthConfig
	OTP           OTPConfig
	Intake        IntakeConfig
	Print         PrintConfig
	Retry         RetryConfig
	Log           LogConfig
	Sentry        SentryConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:       getEnv("APP_HOST", "localhost:8080"),
		Port:          getEnv("PORT", "8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		NSQ: NSQConfig{
			NSQDAddr: getEnv("NSQD_ADDR", ""),
			Topic:    getEnv("NSQ_OTP_TOPIC", "print.otp"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		OTP: OTPConfig{
			Length:      getEnvInt("OTP_LENGTH", 6),
			TTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getEnvInt("OTP_MAX_ATTEMPTS", 5),
			Pepper:      getEnv("OTP_PEPPER", ""),
		},
		Intake: IntakeConfig{
			MaxBytes: int64(getEnvInt("INTAKE_MAX_BYTES", 10<<20)),
		},
		Print: PrintConfig{
			GrantTTL:       getEnvDuration("GRANT_TTL", 2*time.Minute),
			ConfirmTimeout: getEnvDuration("PRINT_CONFIRM_TIMEOUT", 15*time.Minute),
			DocumentTTL:    getEnvDuration("DOCUMENT_TTL", 72*time.Hour),
			SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Minute),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 2*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Timezone: getEnv("TZ", "UTC"),
		},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", "development"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}
