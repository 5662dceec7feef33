package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment names accepted by APP_ENV
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	AppPort               int           `mapstructure:"APP_PORT"`
	AppEnv                string        `mapstructure:"APP_ENV"`
	BcryptCost            int           `mapstructure:"BCRYPT_COST"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	LogFormat             string        `mapstructure:"LOG_FORMAT"`
	MongoURI              string        `mapstructure:"MONGO_URI"`
	MongoDBName           string        `mapstructure:"MONGO_DB_NAME"`
	JWTSecret             string        `mapstructure:"JWT_SECRET"`
	JWTExpiresIn          time.Duration `mapstructure:"JWT_EXPIRES_IN"`
	JWTCookieExpiresDays  int           `mapstructure:"JWT_COOKIE_EXPIRES_DAYS"`
	APIRatePerHour        int           `mapstructure:"API_RATE_PER_HOUR"`
	SignInRatePerMin      int           `mapstructure:"SIGNIN_RATE_PER_MIN"`
	BodyLimitBytes        int           `mapstructure:"BODY_LIMIT_BYTES"`
	RequestLoggingEnabled bool          `mapstructure:"REQUEST_LOGGING_ENABLED"`
	RouteMetricsEnabled   bool          `mapstructure:"ROUTE_METRICS_ENABLED"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	MailDriver            string        `mapstructure:"MAIL_DRIVER"`
	MailFrom              string        `mapstructure:"MAIL_FROM"`
	SMTPHost              string        `mapstructure:"SMTP_HOST"`
	SMTPPort              int           `mapstructure:"SMTP_PORT"`
	SMTPUser              string        `mapstructure:"SMTP_USER"`
	SMTPPass              string        `mapstructure:"SMTP_PASS"`
	AWSRegion             string        `mapstructure:"AWS_REGION"`
	WSOutboxBuffer        int           `mapstructure:"WS_OUTBOX_BUFFER"`
	WSMaxSessionSec       int           `mapstructure:"WS_MAX_SESSION_SEC"`
	PyroscopeAddress      string        `mapstructure:"PYROSCOPE_SERVER_ADDRESS"`
}

var (
	cachedConfig *Config
	configMutex  sync.RWMutex
)

// Load loads configuration from environment variables and .env file
// It caches the result for subsequent calls
func Load() (Config, error) {
	configMutex.RLock()
	if cachedConfig != nil {
		defer configMutex.RUnlock()
		return *cachedConfig, nil
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	if cachedConfig != nil {
		return *cachedConfig, nil
	}

	v := viper.New()

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MONGO_URI", "mongodb://mongo:27017")
	v.SetDefault("MONGO_DB_NAME", "tourbook")
	v.SetDefault("JWT_SECRET", "this-is-a-default-jwt-secret-key-with-32-plus-characters")
	v.SetDefault("JWT_EXPIRES_IN", "2160h") // 90 days
	v.SetDefault("JWT_COOKIE_EXPIRES_DAYS", 90)
	v.SetDefault("API_RATE_PER_HOUR", 100)
	v.SetDefault("SIGNIN_RATE_PER_MIN", 5)
	v.SetDefault("BODY_LIMIT_BYTES", 10*1024)
	v.SetDefault("REQUEST_LOGGING_ENABLED", true)
	v.SetDefault("ROUTE_METRICS_ENABLED", true)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("MAIL_DRIVER", "log")
	v.SetDefault("MAIL_FROM", "Tourbook <no-reply@tourbook.local>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("AWS_REGION", "eu-west-1")
	v.SetDefault("WS_OUTBOX_BUFFER", 64)
	v.SetDefault("WS_MAX_SESSION_SEC", 900)
	v.SetDefault("PYROSCOPE_SERVER_ADDRESS", "")

	// Configure Viper to read from .env file (if present)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	cachedConfig = &cfg

	return cfg, nil
}

// ResetCache clears the cached configuration (for testing purposes)
func ResetCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	cachedConfig = nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// IsDevelopment reports whether the app runs with APP_ENV=development.
// Full error details are only ever returned to clients in this mode.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// CookieTTL is the lifetime of the session cookie.
func (c Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresDays) * 24 * time.Hour
}

// Validate checks if required configuration fields are properly set
func (c Config) Validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return ErrAppPortRange
	}
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return ErrAppEnvUnsupported
	}
	if c.BcryptCost < 10 || c.BcryptCost > 16 {
		return ErrBcryptCostRange
	}
	if c.LogLevel == "" {
		return ErrLogLevelEmpty
	}
	if c.LogFormat == "" {
		return ErrLogFormatEmpty
	}
	if c.MongoURI == "" {
		return ErrMongoURIEmpty
	}
	if c.MongoDBName == "" {
		return ErrMongoDBNameEmpty
	}
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}
	if len(c.JWTSecret) < 32 {
		return ErrJWTSecretTooShort
	}
	if c.JWTExpiresIn <= 0 {
		return ErrJWTExpiresIn
	}
	if c.JWTCookieExpiresDays <= 0 {
		return ErrCookieExpiresDays
	}
	if c.APIRatePerHour < 0 {
		return ErrAPIRatePerHour
	}
	if c.SignInRatePerMin < 1 {
		return ErrSignInRatePerMin
	}
	if c.BodyLimitBytes <= 0 {
		return ErrBodyLimit
	}
	switch c.MailDriver {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return ErrSMTPHostRequired
		}
	case "ses":
		if c.AWSRegion == "" {
			return ErrAWSRegionRequired
		}
	default:
		return ErrMailDriverUnsupported
	}
	if c.MailFrom == "" {
		return ErrMailFromEmpty
	}
	if c.WSOutboxBuffer <= 0 {
		return ErrWSOutboxBuffer
	}
	if c.WSMaxSessionSec <= 0 {
		return ErrWSMaxSessionSec
	}
	return nil
}
