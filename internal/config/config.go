package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Persistence
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"` // "postgres" or "memory"
	DatabaseURL  string `env:"DATABASE_URL"`

	// Auth
	JWTSecret          string   `env:"JWT_SECRET" envDefault:"default-super-secret-key"` // CHANGE THIS IN PRODUCTION!
	JWTExpirationHours int      `env:"JWT_EXPIRATION_HOURS" envDefault:"1"`
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	RedisURL           string   `env:"REDIS_URL"`

	// Attachments
	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"local"` // "local" or "s3"
	UploadDir        string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes   int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket         string `env:"S3_BUCKET"`
	S3AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	// Generative AI completion service (any OpenAI-compatible endpoint)
	GenAIAPIKey  string        `env:"GENAI_API_KEY"`
	GenAIBaseURL string        `env:"GENAI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	GenAIModel   string        `env:"GENAI_MODEL" envDefault:"gemini-2.5-flash"`
	GenAITimeout time.Duration `env:"GENAI_TIMEOUT" envDefault:"30s"`
}

// TokenExpiration returns the lifetime of issued access tokens.
func (c *Config) TokenExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then parses actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env is not present, might be in production
		log.Warn().Err(err).Msg("could not load .env file, using environment variables only")
	}
	return Parse()
}

// Parse reads the environment into a Config and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.S3Bucket = strings.TrimSpace(c.S3Bucket)
	c.S3Endpoint = strings.TrimSpace(c.S3Endpoint)

	switch c.StoreBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.StorageBackend {
	case "local":
		if strings.TrimSpace(c.UploadDir) == "" {
			return fmt.Errorf("UPLOAD_DIR must not be empty")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY environment variable is not set")
	}
	if c.JWTExpirationHours <= 0 {
		c.JWTExpirationHours = 1
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 10 * 1024 * 1024
	}
	return nil
}
