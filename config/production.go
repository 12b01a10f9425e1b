// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
	EnvironmentTest        = "test"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Session    SessionConfig    `json:"session"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	URL             string        `json:"url"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns the connection string, preferring DATABASE_URL when it is set.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// MigrationURL returns a URL-form DSN for golang-migrate, which does not accept key=value strings.
func (c DatabaseConfig) MigrationURL() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableCompression bool          `json:"enable_compression"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per window
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Login throttling (redis backed)
	LoginMaxAttempts int           `json:"login_max_attempts"`
	LoginLockout     time.Duration `json:"login_lockout"`

	BcryptCost int `json:"bcrypt_cost"`
}

// SessionConfig controls the session cookie and the lifetime of session rows.
type SessionConfig struct {
	CookieName      string        `json:"cookie_name"`
	CookiePath      string        `json:"cookie_path"`
	CookieDomain    string        `json:"cookie_domain"`
	CookieSecure    bool          `json:"cookie_secure"`
	CookieHTTPOnly  bool          `json:"cookie_http_only"`
	CookieSameSite  string        `json:"cookie_same_site"`
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
	CleanupEnabled  bool          `json:"cleanup_enabled"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"` // redis
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	HealthInterval time.Duration `json:"health_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c DeploymentConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// LoadProductionConfig loads and validates configuration from environment variables and an optional .env file
func LoadProductionConfig() (*ProductionConfig, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine, the environment wins anyway
	v.AutomaticEnv()

	cfg := loadFrom(v)

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFrom(v *viper.Viper) *ProductionConfig {
	env := getEnvString(v, "ENVIRONMENT", "")
	if env == "" {
		env = getEnvString(v, "NODE_ENV", EnvironmentDevelopment)
	}

	return &ProductionConfig{
		Database: DatabaseConfig{
			URL:             getEnvString(v, "DATABASE_URL", ""),
			Host:            getEnvString(v, "DB_HOST", "localhost"),
			Port:            getEnvInt(v, "DB_PORT", 5432),
			Name:            getEnvString(v, "DB_NAME", "shiten"),
			User:            getEnvString(v, "DB_USER", "postgres"),
			Password:        getEnvString(v, "DB_PASSWORD", ""),
			SSLMode:         getEnvString(v, "DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt(v, "DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt(v, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration(v, "DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration(v, "DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			AutoMigrate:     getEnvBool(v, "DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:              getEnvString(v, "SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt(v, "SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration(v, "SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration(v, "SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration(v, "SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration(v, "SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:    getEnvDuration(v, "SERVER_REQUEST_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt(v, "SERVER_BODY_LIMIT", 1024*1024), // 1MB
			EnableCompression: getEnvBool(v, "SERVER_ENABLE_COMPRESSION", true),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice(v, "CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getEnvStringSlice(v, "CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice(v, "CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}),
			AllowCredentials: getEnvBool(v, "CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:       getEnvInt(v, "CORS_MAX_AGE", 86400),
			AuthRateLimit:    getEnvInt(v, "AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:  getEnvInt(v, "GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:  getEnvDuration(v, "RATE_LIMIT_WINDOW", time.Minute),
			LoginMaxAttempts: getEnvInt(v, "LOGIN_MAX_ATTEMPTS", 5),
			LoginLockout:     getEnvDuration(v, "LOGIN_LOCKOUT", 15*time.Minute),
			BcryptCost:       getEnvInt(v, "BCRYPT_COST", 12),
		},
		Session: SessionConfig{
			CookieName:      getEnvString(v, "SESSION_COOKIE", "_session"),
			CookiePath:      getEnvString(v, "SESSION_COOKIE_PATH", "/"),
			CookieDomain:    getEnvString(v, "SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:    getEnvBool(v, "SESSION_COOKIE_SECURE", env == EnvironmentProduction),
			CookieHTTPOnly:  getEnvBool(v, "SESSION_COOKIE_HTTP_ONLY", true),
			CookieSameSite:  getEnvString(v, "SESSION_COOKIE_SAME_SITE", "Lax"),
			TTL:             getEnvDuration(v, "SESSION_TTL", 24*time.Hour),
			CleanupInterval: getEnvDuration(v, "SESSION_CLEANUP_INTERVAL", time.Hour),
			CleanupEnabled:  getEnvBool(v, "SESSION_CLEANUP_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:      getEnvString(v, "LOG_LEVEL", "info"),
			Output:     getEnvString(v, "LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString(v, "LOG_FILE_PATH", "/var/log/shiten/app.log"),
			MaxSize:    getEnvInt(v, "LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt(v, "LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt(v, "LOG_MAX_AGE", 30),
			Compress:   getEnvBool(v, "LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool(v, "METRICS_ENABLED", true),
			Path:    getEnvString(v, "METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool(v, "CACHE_ENABLED", false),
			Provider:       getEnvString(v, "CACHE_PROVIDER", "redis"),
			RedisURL:       getEnvString(v, "CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt(v, "CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString(v, "CACHE_REDIS_PREFIX", "shiten:"),
			HealthInterval: getEnvDuration(v, "CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Deployment: DeploymentConfig{
			Environment: env,
			Version:     getEnvString(v, "VERSION", "1.0.0"),
			CommitHash:  getEnvString(v, "COMMIT_HASH", "unknown"),
		},
	}
}

// Helper functions for environment variable parsing. Viper returns the zero value for
// unparsable input, so numbers and durations are parsed here to keep the default.
func getEnvString(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(v *viper.Viper, key string, defaultValue int) int {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(v *viper.Viper, key string, defaultValue bool) bool {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(v *viper.Viper, key string, defaultValue []string) []string {
	if value := v.GetString(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.URL == "" {
		if cfg.Database.Host == "" {
			errors = append(errors, "DB_HOST is required when DATABASE_URL is not set")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errors = append(errors, "DB_NAME is required when DATABASE_URL is not set")
		}
		if cfg.Database.User == "" {
			errors = append(errors, "DB_USER is required when DATABASE_URL is not set")
		}
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errors = append(errors, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.BcryptCost < 4 || cfg.Security.BcryptCost > 31 {
		errors = append(errors, "BCRYPT_COST must be between 4 and 31")
	}
	if cfg.Security.LoginMaxAttempts < 0 {
		errors = append(errors, "LOGIN_MAX_ATTEMPTS must not be negative")
	}

	// Validate session configuration
	if cfg.Session.CookieName == "" {
		errors = append(errors, "SESSION_COOKIE is required")
	}
	if cfg.Session.TTL <= 0 {
		errors = append(errors, "SESSION_TTL must be positive")
	}
	if cfg.Session.CleanupEnabled && cfg.Session.CleanupInterval <= 0 {
		errors = append(errors, "SESSION_CLEANUP_INTERVAL must be positive when cleanup is enabled")
	}
	switch strings.ToLower(cfg.Session.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		errors = append(errors, "SESSION_COOKIE_SAME_SITE must be one of: Lax, Strict, None")
	}
	if strings.EqualFold(cfg.Session.CookieSameSite, "none") && !cfg.Session.CookieSecure {
		errors = append(errors, "SESSION_COOKIE_SECURE must be true when SESSION_COOKIE_SAME_SITE=None")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	switch cfg.Logging.Output {
	case "stdout":
	case "file", "both":
		if cfg.Logging.FilePath == "" {
			errors = append(errors, "LOG_FILE_PATH is required when LOG_OUTPUT writes to a file")
		}
	default:
		errors = append(errors, "LOG_OUTPUT must be one of: stdout, file, both")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
