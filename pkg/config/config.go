package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CRM      CRMConfig
	Rules    RulesConfig
	Batch    BatchConfig
	Auth     AuthConfig
	Export   ExportConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CRMConfig points at the external tag directory and bounds its traffic.
type CRMConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RatePerSecond  int
}

// RulesConfig tunes rule catalog loading and managed-tag recognition.
type RulesConfig struct {
	CacheTTL time.Duration
	// ExtraManagedPrefixes extends the managed-tag prefix set beyond the
	// rule categories, for tags minted by earlier product generations.
	ExtraManagedPrefixes []string
	// MilestoneStallDays is how long the next required unit may sit
	// untouched after the first completes before it counts as stalled.
	MilestoneStallDays int
}

// BatchConfig bounds reconciliation batch runs.
type BatchConfig struct {
	Workers                int
	PageSize               int
	RunTimeout             time.Duration
	ReactivationWindowDays int
}

// ExportConfig locates run report storage.
type ExportConfig struct {
	Dir             string
	SignedURLSecret string
	ResultTTL       time.Duration
}

// AuthConfig carries the single operator credential and token settings.
type AuthConfig struct {
	OperatorEmail        string
	OperatorPasswordHash string
	TokenSecret          string
	TokenExpiry          time.Duration
	Issuer               string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CRM = CRMConfig{
		BaseURL:        v.GetString("CRM_BASE_URL"),
		APIKey:         v.GetString("CRM_API_KEY"),
		RequestTimeout: parseDuration(v.GetString("CRM_REQUEST_TIMEOUT"), 10*time.Second),
		MaxRetries:     v.GetInt("CRM_MAX_RETRIES"),
		RetryBackoff:   parseDuration(v.GetString("CRM_RETRY_BACKOFF"), 500*time.Millisecond),
		RatePerSecond:  v.GetInt("CRM_RATE_PER_SECOND"),
	}

	cfg.Rules = RulesConfig{
		CacheTTL:             parseDuration(v.GetString("RULES_CACHE_TTL"), 5*time.Minute),
		ExtraManagedPrefixes: splitAndTrim(v.GetString("RULES_EXTRA_MANAGED_PREFIXES")),
		MilestoneStallDays:   v.GetInt("RULES_MILESTONE_STALL_DAYS"),
	}

	cfg.Batch = BatchConfig{
		Workers:                v.GetInt("BATCH_WORKERS"),
		PageSize:               v.GetInt("BATCH_PAGE_SIZE"),
		RunTimeout:             parseDuration(v.GetString("BATCH_RUN_TIMEOUT"), 30*time.Minute),
		ReactivationWindowDays: v.GetInt("BATCH_REACTIVATION_WINDOW_DAYS"),
	}

	cfg.Auth = AuthConfig{
		OperatorEmail:        v.GetString("AUTH_OPERATOR_EMAIL"),
		OperatorPasswordHash: v.GetString("AUTH_OPERATOR_PASSWORD_HASH"),
		TokenSecret:          v.GetString("AUTH_TOKEN_SECRET"),
		TokenExpiry:          parseDuration(v.GetString("AUTH_TOKEN_EXPIRY"), 12*time.Hour),
		Issuer:               v.GetString("AUTH_ISSUER"),
	}

	cfg.Export = ExportConfig{
		Dir:             v.GetString("EXPORT_DIR"),
		SignedURLSecret: v.GetString("EXPORT_SIGNED_URL_SECRET"),
		ResultTTL:       parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "engage_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CRM_BASE_URL", "http://localhost:9090")
	v.SetDefault("CRM_API_KEY", "dev_crm_key")
	v.SetDefault("CRM_REQUEST_TIMEOUT", "10s")
	v.SetDefault("CRM_MAX_RETRIES", 3)
	v.SetDefault("CRM_RETRY_BACKOFF", "500ms")
	v.SetDefault("CRM_RATE_PER_SECOND", 10)

	v.SetDefault("RULES_CACHE_TTL", "5m")
	v.SetDefault("RULES_EXTRA_MANAGED_PREFIXES", "")
	v.SetDefault("RULES_MILESTONE_STALL_DAYS", 7)

	v.SetDefault("BATCH_WORKERS", 4)
	v.SetDefault("BATCH_PAGE_SIZE", 200)
	v.SetDefault("BATCH_RUN_TIMEOUT", "30m")
	v.SetDefault("BATCH_REACTIVATION_WINDOW_DAYS", 14)

	v.SetDefault("AUTH_OPERATOR_EMAIL", "ops@example.com")
	v.SetDefault("AUTH_OPERATOR_PASSWORD_HASH", "")
	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_EXPIRY", "12h")
	v.SetDefault("AUTH_ISSUER", "engage-sync-api")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_SIGNED_URL_SECRET", "dev_export_secret")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
