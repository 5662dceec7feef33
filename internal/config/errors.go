package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrAppPortRange          = errors.New("APP_PORT must be between 1 and 65535")
	ErrAppEnvUnsupported     = errors.New("APP_ENV must be either development or production")
	ErrBcryptCostRange       = errors.New("BCRYPT_COST must be between 10 and 16")
	ErrLogLevelEmpty         = errors.New("LOG_LEVEL cannot be empty")
	ErrLogFormatEmpty        = errors.New("LOG_FORMAT cannot be empty")
	ErrMongoURIEmpty         = errors.New("MONGO_URI cannot be empty")
	ErrMongoDBNameEmpty      = errors.New("MONGO_DB_NAME cannot be empty")
	ErrJWTSecretRequired     = errors.New("JWT_SECRET is required")
	ErrJWTSecretTooShort     = errors.New("JWT_SECRET must be at least 32 characters")
	ErrJWTExpiresIn          = errors.New("JWT_EXPIRES_IN must be a positive duration")
	ErrCookieExpiresDays     = errors.New("JWT_COOKIE_EXPIRES_DAYS must be greater than 0")
	ErrAPIRatePerHour        = errors.New("API_RATE_PER_HOUR cannot be negative")
	ErrSignInRatePerMin      = errors.New("SIGNIN_RATE_PER_MIN must be greater than or equal to 1")
	ErrBodyLimit             = errors.New("BODY_LIMIT_BYTES must be greater than 0")
	ErrMailDriverUnsupported = errors.New("MAIL_DRIVER must be one of log, smtp, ses")
	ErrSMTPHostRequired      = errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp")
	ErrAWSRegionRequired     = errors.New("AWS_REGION is required when MAIL_DRIVER=ses")
	ErrMailFromEmpty         = errors.New("MAIL_FROM cannot be empty")
	ErrWSOutboxBuffer        = errors.New("WS_OUTBOX_BUFFER must be greater than 0")
	ErrWSMaxSessionSec       = errors.New("WS_MAX_SESSION_SEC must be greater than 0")
)
