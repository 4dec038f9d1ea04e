package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/tresor/internal/crypto"
	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Encryption EncryptionConfig
	Email      EmailConfig
	MFA        MFAConfig
	OAuth      OAuthConfig
	Turnstile  TurnstileConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret       string
	SessionTTL      time.Duration
	PendingMFATTL   time.Duration
	CodeTTL         time.Duration
	ResetTokenTTL   time.Duration
	CleanupInterval time.Duration

	// Bounded-attempt lockout for password and second-factor attempts.
	// Zero MaxFailedAttempts disables the counter; the thresholds are a
	// deployment decision, not a baked-in number.
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	TimingDelayBaseMs   int
	TimingDelayRandomMs int
}

type EncryptionConfig struct {
	// Pepper is concatenated to passwords before key derivation. It must
	// be identical at encrypt and decrypt time; changing it orphans every
	// stored secret.
	Pepper     string
	Iterations int
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string

	// BaseURL is the public origin embedded in reset links.
	BaseURL string
}

type MFAConfig struct {
	// EncryptionKey protects authenticator secrets at rest. Exactly 32
	// bytes for AES-256; rotating it orphans existing enrollments.
	EncryptionKey string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
}

type TurnstileConfig struct {
	SecretKey string
	Enabled   bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "tresor"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			PendingMFATTL:       getEnvAsDuration("PENDING_MFA_TTL", 5*time.Minute),
			CodeTTL:             getEnvAsDuration("VERIFICATION_CODE_TTL", 10*time.Minute),
			ResetTokenTTL:       getEnvAsDuration("RESET_TOKEN_TTL", 1*time.Hour),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			MaxFailedAttempts:   getEnvAsInt("AUTH_MAX_FAILED_ATTEMPTS", 0),
			LockoutDuration:     getEnvAsDuration("AUTH_LOCKOUT_DURATION", 15*time.Minute),
			TimingDelayBaseMs:   getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 50),
		},
		Encryption: EncryptionConfig{
			Pepper:     getEnv("ENCRYPTION_PEPPER", ""),
			Iterations: getEnvAsInt("ENCRYPTION_ITERATIONS", crypto.DefaultIterations),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@tresor.local"),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		MFA: MFAConfig{
			EncryptionKey: getEnv("MFA_ENCRYPTION_KEY", devMFAEncryptionKey),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:        getEnv("OAUTH_REDIRECT_URL", ""),
		},
		Turnstile: TurnstileConfig{
			SecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
			Enabled:   getEnvAsBool("TURNSTILE_ENABLED", false),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Encryption.Iterations < crypto.MinIterations {
		return nil, fmt.Errorf("ENCRYPTION_ITERATIONS must be at least %d", crypto.MinIterations)
	}

	if env == "production" && cfg.Encryption.Pepper == "" {
		return nil, fmt.Errorf("ENCRYPTION_PEPPER is required in production")
	}

	if env == "production" && cfg.MFA.EncryptionKey == devMFAEncryptionKey {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required in production")
	}
	if len(cfg.MFA.EncryptionKey) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be exactly 32 bytes (got %d)", len(cfg.MFA.EncryptionKey))
	}

	return cfg, nil
}

// devMFAEncryptionKey keeps local development working without env setup.
// Production refuses to start with it.
const devMFAEncryptionKey = "dev-only-mfa-key-32-characters!!"

// validateJWTSecret enforces minimum strength for the signing secret
func validateJWTSecret(secret, env string) error {
	// 256 bits in every environment; the TokenManager refuses less
	const minLength = 32

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{"secret", "test", "password", "changeme", "default"}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
