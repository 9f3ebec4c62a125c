package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Encryption   EncryptionConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	OAuth        OAuthConfig
	Email        EmailConfig
	SMS          SMSConfig
	AWS          AWSConfig
	Worker       WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// AppConfig describes the public-facing web app the API serves.
type AppConfig struct {
	URL            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type EncryptionConfig struct {
	Key string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// Signup email modes
const (
	SignupEmailOff   = "off"
	SignupEmailSync  = "sync"
	SignupEmailAsync = "async"
)

type VerificationConfig struct {
	SignupEmail        string // off, sync, async
	DefaultCountryCode string
	OTPSendsPerHour    int // 0 disables the throttle
	OTPVerifyAttempts  int // 0 disables the throttle
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type OAuthConfig struct {
	Google      OAuthProviderConfig
	Facebook    OAuthProviderConfig
	RedirectURL string // base callback URL, provider name is appended
}

type EmailConfig struct {
	Provider     string // resend, ses, log
	From         string
	ResendAPIKey string
}

type SMSConfig struct {
	Provider         string // twilio, sns, log
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type WorkerConfig struct {
	Concurrency int
	PurgeCron   string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("APP_ALLOWED_ORIGINS", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "evently")
	v.SetDefault("DATABASE_PASSWORD", "evently_secret")
	v.SetDefault("DATABASE_NAME", "evently")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24*30)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("VERIFICATION_EMAIL_ON_SIGNUP", SignupEmailOff)
	v.SetDefault("VERIFICATION_DEFAULT_COUNTRY_CODE", "234")
	v.SetDefault("VERIFICATION_OTP_SENDS_PER_HOUR", 5)
	v.SetDefault("VERIFICATION_OTP_VERIFY_ATTEMPTS", 10)
	v.SetDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/oauth")
	v.SetDefault("EMAIL_PROVIDER", "log")
	v.SetDefault("EMAIL_FROM", "Evently <no-reply@evently.app>")
	v.SetDefault("SMS_PROVIDER", "log")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_PURGE_CRON", "*/15 * * * *")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		App: AppConfig{
			URL:            strings.TrimRight(v.GetString("APP_URL"), "/"),
			AllowedOrigins: splitList(v.GetString("APP_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),

			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("DATABASE_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Verification: VerificationConfig{
			SignupEmail:        strings.ToLower(v.GetString("VERIFICATION_EMAIL_ON_SIGNUP")),
			DefaultCountryCode: strings.TrimPrefix(v.GetString("VERIFICATION_DEFAULT_COUNTRY_CODE"), "+"),
			OTPSendsPerHour:    v.GetInt("VERIFICATION_OTP_SENDS_PER_HOUR"),
			OTPVerifyAttempts:  v.GetInt("VERIFICATION_OTP_VERIFY_ATTEMPTS"),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
				ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			},
			Facebook: OAuthProviderConfig{
				ClientID:     v.GetString("FACEBOOK_CLIENT_ID"),
				ClientSecret: v.GetString("FACEBOOK_CLIENT_SECRET"),
			},
			RedirectURL: strings.TrimRight(v.GetString("OAUTH_REDIRECT_URL"), "/"),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(v.GetString("EMAIL_PROVIDER")),
			From:         v.GetString("EMAIL_FROM"),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
		},
		SMS: SMSConfig{
			Provider:         strings.ToLower(v.GetString("SMS_PROVIDER")),
			TwilioAccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			TwilioFrom:       v.GetString("TWILIO_PHONE_NUMBER"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			PurgeCron:   v.GetString("WORKER_PURGE_CRON"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Verification.SignupEmail {
	case SignupEmailOff, SignupEmailSync, SignupEmailAsync:
	default:
		return fmt.Errorf("invalid VERIFICATION_EMAIL_ON_SIGNUP %q: want off, sync or async", c.Verification.SignupEmail)
	}
	if !c.Server.IsDevelopment() && c.JWT.Secret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be set outside development")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
