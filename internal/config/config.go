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

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const devJWTSecret = "default_super_secret_key"

// Config holds every runtime setting of the API process
type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	JWTSecret []byte
	JWTTTL    time.Duration

	AdminUsername string
	AdminPassword string

	PaymentBaseURL string
	CORSOrigins    []string

	LoginRatePerMinute int
	LoginRateBurst     int
	RequestTimeout     time.Duration
}

// Load reads configs/.env (if present) and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		GinMode:        os.Getenv("GIN_MODE"),
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", DriverPostgres)),
		DBDSN:          os.Getenv("DB_DSN"),
		DBHost:         getenv("DB_HOST", "localhost"),
		DBPort:         getenv("DB_PORT", "5432"),
		DBUser:         getenv("DB_USER", "postgres"),
		DBPassword:     getenv("DB_PASSWORD", "postgres"),
		DBName:         getenv("DB_NAME", "postgres"),
		DBSslMode:      getenv("DB_SSLMODE", "disable"),
		AdminUsername:  getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:  getenv("ADMIN_PASSWORD", "admin123"),
		PaymentBaseURL: strings.TrimRight(getenv("PAYMENT_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be %s or %s", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in release mode")
		}
		secret = devJWTSecret // development fallback only
	}
	cfg.JWTSecret = []byte(secret)

	var err error
	if cfg.JWTTTL, err = durationEnv("JWT_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.LoginRatePerMinute, err = intEnv("LOGIN_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.LoginRateBurst, err = intEnv("LOGIN_RATE_BURST", 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver == DriverSQLite {
		return "file::memory:?cache=shared"
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSslMode
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
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
