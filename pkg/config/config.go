package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Reference sources
const (
	ReferenceSourceFile = "file"
	ReferenceSourceS3   = "s3"
)

// Config holds all application configuration
type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	SourceDB  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Reference ReferenceConfig
	Reload    ReloadConfig
	Links     LinksConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AdminToken     string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// CacheConfig selects where rendered responses are memoized
type CacheConfig struct {
	Backend string
}

// ReferenceConfig locates the CSV/XML reference files collectors read
type ReferenceConfig struct {
	Source      string
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	S3Prefix    string
	CovidURLKey string
}

// ReloadConfig tunes the reload pipeline
type ReloadConfig struct {
	CollectorTimeout time.Duration
	Workers          int
}

// LinksConfig holds the public base URL used to build self links
type LinksConfig struct {
	BaseURL string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8085),
			AdminToken:     getEnv("ADMIN_TOKEN", ""),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "facilities"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		SourceDB: DatabaseConfig{
			Host:     getEnv("SOURCE_DB_HOST", "localhost"),
			Port:     getEnvAsInt("SOURCE_DB_PORT", 5432),
			User:     getEnv("SOURCE_DB_USER", "postgres"),
			Password: getEnv("SOURCE_DB_PASSWORD", ""),
			Database: getEnv("SOURCE_DB_NAME", "vast"),
			SSLMode:  getEnv("SOURCE_DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
		},
		Reference: ReferenceConfig{
			Source:      strings.ToLower(getEnv("REFERENCE_SOURCE", ReferenceSourceFile)),
			Dir:         getEnv("REFERENCE_DIR", "./reference"),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3Region:    getEnv("S3_REGION", "us-gov-west-1"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3PathStyle: getEnvAsBool("S3_PATH_STYLE", false),
			S3Prefix:    getEnv("S3_PREFIX", ""),
			CovidURLKey: getEnv("COVID_URL_FILE", "covid_vaccine_urls.csv"),
		},
		Reload: ReloadConfig{
			CollectorTimeout: getEnvAsDuration("COLLECTOR_TIMEOUT", 2*time.Minute),
			Workers:          getEnvAsInt("RELOAD_WORKERS", 8),
		},
		Links: LinksConfig{
			BaseURL: strings.TrimRight(getEnv("LINKS_BASE_URL", "https://api.va.gov/services/va_facilities"), "/"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "facilities-directory"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values the service cannot run with
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}

	switch c.Reference.Source {
	case ReferenceSourceFile:
	case ReferenceSourceS3:
		if c.Reference.S3Bucket == "" {
			return fmt.Errorf("REFERENCE_SOURCE=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown REFERENCE_SOURCE %q", c.Reference.Source)
	}

	if c.Reload.Workers <= 0 {
		return fmt.Errorf("RELOAD_WORKERS must be positive, got %d", c.Reload.Workers)
	}
	if c.Reload.CollectorTimeout <= 0 {
		return fmt.Errorf("COLLECTOR_TIMEOUT must be positive, got %s", c.Reload.CollectorTimeout)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
