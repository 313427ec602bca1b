package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	PayMongo  PayMongoConfig
	Resend    ResendConfig
	App       AppConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	SessionTTLDays int
	CookieName     string
}

type PayMongoConfig struct {
	SecretKey     string
	PublicKey     string
	WebhookSecret string
	ProAmount     int // Pro plan price in centavos
}

type ResendConfig struct {
	APIKey string
	From   string
}

type AppConfig struct {
	FrontendURL    string
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Limit         int
	WindowSeconds int
	// FailOpen lets requests through when the cache is unreachable.
	FailOpen bool
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	sessionTTL, err := getEnvInt("SESSION_TTL_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL_DAYS: %w", err)
	}

	proAmount, err := getEnvInt("PAYMONGO_PRO_AMOUNT", 200000)
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMONGO_PRO_AMOUNT: %w", err)
	}

	rlLimit, err := getEnvInt("RATE_LIMIT_MAX", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX: %w", err)
	}

	rlWindow, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}

	frontendURL := getEnv("FRONTEND_URL", "http://localhost:5173")

	var origins []string
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", frontendURL), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			SessionTTLDays: sessionTTL,
			CookieName:     getEnv("SESSION_COOKIE_NAME", "zenportal_session"),
		},
		PayMongo: PayMongoConfig{
			SecretKey:     getEnv("PAYMONGO_SECRET_KEY", ""),
			PublicKey:     getEnv("PAYMONGO_PUBLIC_KEY", ""),
			WebhookSecret: getEnv("PAYMONGO_WEBHOOK_SECRET", ""),
			ProAmount:     proAmount,
		},
		Resend: ResendConfig{
			APIKey: getEnv("RESEND_API_KEY", ""),
			From:   getEnv("EMAIL_FROM", "ZenPortal <support@zenportal.com.ph>"),
		},
		App: AppConfig{
			FrontendURL:    frontendURL,
			AllowedOrigins: origins,
		},
		RateLimit: RateLimitConfig{
			Limit:         rlLimit,
			WindowSeconds: rlWindow,
			FailOpen:      getEnvBool("RATE_LIMIT_FAIL_OPEN", true),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LiveMode reports whether the PayMongo keys are live-mode keys, which
// decides which webhook signature variant must match.
func (c *PayMongoConfig) LiveMode() bool {
	return strings.HasPrefix(c.PublicKey, "pk_live")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
