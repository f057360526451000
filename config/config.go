package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven configuration.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURI      string
	DatabasePassword string
	DatabaseName     string

	JWTSecret        string
	JWTExpires       time.Duration
	JWTCookieExpires time.Duration

	MailProvider     string
	PostmarkAPIToken string
	SendgridAPIKey   string
	EmailSender      string
	EmailSenderName  string

	APIRequestLimit int64
	RedisAddr       string
	RedisPassword   string

	AllowedOrigins []string
	// TrustProxy takes the client IP from X-Forwarded-For. Enable it only
	// behind a proxy that overwrites the header.
	TrustProxy     bool
}

// Production reports whether the service runs with production error output.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// LoadEnv loads variables from .env or config.env when present.
func LoadEnv() {
	for _, f := range []string{".env", "config.env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				log.Printf("Warning: could not load %s: %v", f, err)
			}
			return
		}
	}
	log.Println("Warning: .env file not found, using system environment variables")
}

// Load reads configuration from the environment. A missing JWT_SECRET or a
// malformed value is an error.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8000"),
		DatabaseURI:      getEnv("DATABASE", "mongodb://localhost:27017"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", ""),
		DatabaseName:     getEnv("DATABASE_NAME", "natours"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		MailProvider:     getEnv("MAIL_PROVIDER", "log"),
		PostmarkAPIToken: getEnv("POSTMARK_API_TOKEN", ""),
		SendgridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailSender:      getEnv("EMAIL_SENDER", "hello@natours.io"),
		EmailSenderName:  getEnv("EMAIL_SENDER_NAME", "Natours"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("required environment variable %q is not set", "JWT_SECRET")
	}

	var err error
	if cfg.JWTExpires, err = ParseDuration(getEnv("JWT_EXPIRES", "90d")); err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES: %w", err)
	}
	days, err := strconv.Atoi(getEnv("JWT_COOKIE_EXPIRES", "90"))
	if err != nil || days <= 0 {
		return nil, fmt.Errorf("JWT_COOKIE_EXPIRES: invalid number of days %q", os.Getenv("JWT_COOKIE_EXPIRES"))
	}
	cfg.JWTCookieExpires = time.Duration(days) * 24 * time.Hour

	if cfg.APIRequestLimit, err = strconv.ParseInt(getEnv("API_REQUEST_LIMIT", "100"), 10, 64); err != nil || cfg.APIRequestLimit <= 0 {
		return nil, fmt.Errorf("API_REQUEST_LIMIT: invalid limit %q", os.Getenv("API_REQUEST_LIMIT"))
	}

	if cfg.TrustProxy, err = strconv.ParseBool(getEnv("TRUST_PROXY", "false")); err != nil {
		return nil, fmt.Errorf("TRUST_PROXY: invalid flag %q", os.Getenv("TRUST_PROXY"))
	}

	for _, o := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}

// ParseDuration accepts Go durations and whole days written as "90d".
func ParseDuration(raw string) (time.Duration, error) {
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid days value %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
