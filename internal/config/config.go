package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Media     MediaConfig
	Forms     FormsConfig
	Session   SessionConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Timezone    string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// RedisConfig is optional; an empty Addr keeps sessions in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
	Insecure    bool
}

type RateLimitConfig struct {
	// Global Rate limit per IP
	RequestsPerSecond float64
	BurstSize         int
	// Login is limited separately
	AuthRequestsPerMinute int
	TrackedClients        int
}

// MediaConfig points at a Cloudinary-compatible unsigned upload endpoint.
type MediaConfig struct {
	BaseURL      string
	CloudName    string
	UploadPreset string
	FolderPrefix string
	Timeout      time.Duration

	// Pending files are held in memory until submit.
	SpoolMaxBytes     int64
	SpoolSessionFiles int
	SpoolSessionBytes int64
	SpoolTTL          time.Duration
}

// FormsConfig selects the media profile ("single" or "multi") of each form variant.
type FormsConfig struct {
	RegistrationMediaProfile string
	OutpatientMediaProfile   string
}

type SessionConfig struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
	MemoryLimit  int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()
	setDefaults(v)

	// A missing .env file is fine; the environment still applies.
	_ = v.ReadInConfig()

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENV"),
			Version:     v.GetString("APP_VERSION"),
			Timezone:    v.GetString("APP_TIMEZONE"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Name:            v.GetString("DB_NAME"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTokenTTL: v.GetDuration("JWT_REFRESH_TTL"),
			Issuer:          v.GetString("JWT_ISSUER"),
		},
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			OutputPath: v.GetString("LOG_OUTPUT"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
			Endpoint:    v.GetString("OTLP_ENDPOINT"),
			SampleRate:  v.GetFloat64("TRACING_SAMPLE_RATE"),
			Insecure:    v.GetBool("TRACING_INSECURE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:     v.GetFloat64("RATE_LIMIT_RPS"),
			BurstSize:             v.GetInt("RATE_LIMIT_BURST"),
			AuthRequestsPerMinute: v.GetInt("RATE_LIMIT_AUTH_RPM"),
			TrackedClients:        v.GetInt("RATE_LIMIT_TRACKED_CLIENTS"),
		},
		Media: MediaConfig{
			BaseURL:      v.GetString("MEDIA_BASE_URL"),
			CloudName:    v.GetString("MEDIA_CLOUD_NAME"),
			UploadPreset: v.GetString("MEDIA_UPLOAD_PRESET"),
			FolderPrefix: v.GetString("MEDIA_FOLDER_PREFIX"),
			Timeout:      v.GetDuration("MEDIA_TIMEOUT"),

			SpoolMaxBytes:     v.GetInt64("MEDIA_SPOOL_MAX_BYTES"),
			SpoolSessionFiles: v.GetInt("MEDIA_SPOOL_SESSION_FILES"),
			SpoolSessionBytes: v.GetInt64("MEDIA_SPOOL_SESSION_BYTES"),
			SpoolTTL:          v.GetDuration("MEDIA_SPOOL_TTL"),
		},
		Forms: FormsConfig{
			RegistrationMediaProfile: strings.ToLower(v.GetString("FORMS_REGISTRATION_MEDIA_PROFILE")),
			OutpatientMediaProfile:   strings.ToLower(v.GetString("FORMS_OUTPATIENT_MEDIA_PROFILE")),
		},
		Session: SessionConfig{
			TTL:          v.GetDuration("SESSION_TTL"),
			CookieName:   v.GetString("SESSION_COOKIE_NAME"),
			CookieSecure: v.GetBool("SESSION_COOKIE_SECURE"),
			MemoryLimit:  v.GetInt("SESSION_MEMORY_LIMIT"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"APP_NAME":     "clinicdesk",
		"APP_ENV":      "development",
		"APP_VERSION":  "0.0.0",
		"APP_TIMEZONE": "Local",

		"SERVER_HOST":             "0.0.0.0",
		"SERVER_PORT":             8080,
		"SERVER_READ_TIMEOUT":     "15s",
		"SERVER_WRITE_TIMEOUT":    "60s",
		"SERVER_IDLE_TIMEOUT":     "60s",
		"SERVER_SHUTDOWN_TIMEOUT": "30s",

		"DB_HOST":               "localhost",
		"DB_PORT":               5432,
		"DB_NAME":               "clinicdesk",
		"DB_USER":               "clinicdesk",
		"DB_PASSWORD":           "",
		"DB_SSLMODE":            "require",
		"DB_MAX_OPEN_CONNS":     10,
		"DB_MAX_IDLE_CONNS":     5,
		"DB_CONN_MAX_LIFETIME":  "30m",
		"DB_CONN_MAX_IDLE_TIME": "5m",

		"REDIS_ADDR":     "",
		"REDIS_PASSWORD": "",
		"REDIS_DB":       0,

		"JWT_SECRET":      "",
		"JWT_ACCESS_TTL":  "8h",
		"JWT_REFRESH_TTL": "72h",
		"JWT_ISSUER":      "clinicdesk",

		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "json",
		"LOG_OUTPUT": "stdout",

		"TRACING_ENABLED":      false,
		"TRACING_SERVICE_NAME": "clinicdesk",
		"OTLP_ENDPOINT":        "otel-collector:4318",
		"TRACING_SAMPLE_RATE":  0.1,
		"TRACING_INSECURE":     true,

		"RATE_LIMIT_RPS":             20,
		"RATE_LIMIT_BURST":           40,
		"RATE_LIMIT_AUTH_RPM":        10,
		"RATE_LIMIT_TRACKED_CLIENTS": 4096,

		"MEDIA_BASE_URL":      "https://api.cloudinary.com",
		"MEDIA_CLOUD_NAME":    "",
		"MEDIA_UPLOAD_PRESET": "ml_default",
		"MEDIA_FOLDER_PREFIX": "patient-media",
		"MEDIA_TIMEOUT":       "60s",
		"MEDIA_SPOOL_TTL":     "2h",

		"MEDIA_SPOOL_MAX_BYTES":     512 << 20,
		"MEDIA_SPOOL_SESSION_FILES": 12,
		"MEDIA_SPOOL_SESSION_BYTES": 150 << 20,

		"FORMS_REGISTRATION_MEDIA_PROFILE": "single",
		"FORMS_OUTPATIENT_MEDIA_PROFILE":   "multi",

		"SESSION_TTL":           "12h",
		"SESSION_COOKIE_NAME":   "clinicdesk_session",
		"SESSION_COOKIE_SECURE": false,
		"SESSION_MEMORY_LIMIT":  1024,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Password == "" && cfg.App.Environment != "development" {
		errs = append(errs, "DB_PASSWORD is required in non-development environments")
	}

	if cfg.Database.SSLMode == "disable" && cfg.App.Environment == "production" {
		errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
	}

	if cfg.Media.CloudName == "" && cfg.App.Environment == "production" {
		errs = append(errs, "MEDIA_CLOUD_NAME is required in production")
	}

	if cfg.Media.SpoolSessionBytes > cfg.Media.SpoolMaxBytes {
		errs = append(errs, "MEDIA_SPOOL_SESSION_BYTES must not exceed MEDIA_SPOOL_MAX_BYTES")
	}

	for key, profile := range map[string]string{
		"FORMS_REGISTRATION_MEDIA_PROFILE": cfg.Forms.RegistrationMediaProfile,
		"FORMS_OUTPATIENT_MEDIA_PROFILE":   cfg.Forms.OutpatientMediaProfile,
	} {
		if profile != "single" && profile != "multi" {
			errs = append(errs, fmt.Sprintf("%s must be \"single\" or \"multi\", got %q", key, profile))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
