package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Triage       TriageConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	StoreCallTimeoutMS    int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig controls inbox fan-out.
type NotificationConfig struct {
	RedisChannelPrefix string
}

// TriageConfig tunes automatic assignment.
type TriageConfig struct {
	HonorCategoryCriterion bool
	BatchConcurrency       int
	BatchIntervalSeconds   int
	AutoOnCreate           bool
	LockTTLSeconds         int
	SystemUserID           int64
}

var defaults = map[string]any{
	"APP_NAME":                        "helpdesk-service",
	"APP_ENV":                         "development",
	"APP_HOST":                        "0.0.0.0",
	"APP_PORT":                        "8080",
	"APP_VERSION":                     "dev",
	"HTTP_REQUEST_TIMEOUT_SECONDS":    30,
	"STORE_CALL_TIMEOUT_MS":           5000,
	"POSTGRES_DSN":                    "",
	"POSTGRES_MAX_CONNS":              10,
	"POSTGRES_MIN_CONNS":              2,
	"POSTGRES_RUN_MIGRATIONS":         true,
	"POSTGRES_CONN_MAX_IDLE_SECONDS":  30,
	"POSTGRES_CONN_MAX_LIFE_SECONDS":  300,
	"REDIS_ADDR":                      "127.0.0.1:6379",
	"REDIS_PASSWORD":                  "",
	"REDIS_DB":                        0,
	"LOG_LEVEL":                       "info",
	"AUTH_JWT_SECRET":                 "dev-secret",
	"AUTH_ACCESS_TOKEN_TTL_MINUTES":   60,
	"NOTIFY_REDIS_CHANNEL_PREFIX":     "notifications",
	"TRIAGE_HONOR_CATEGORY_CRITERION": false,
	"TRIAGE_BATCH_CONCURRENCY":        1,
	"TRIAGE_BATCH_INTERVAL_SECONDS":   0,
	"TRIAGE_AUTO_ON_CREATE":           false,
	"TRIAGE_LOCK_TTL_SECONDS":         30,
	"TRIAGE_SYSTEM_USER_ID":           0,
}

// Load reads configuration from the environment, an optional .env file and an
// optional YAML file named by CONFIG_PATH, in increasing precedence of env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:                  v.GetString("APP_NAME"),
			Env:                   v.GetString("APP_ENV"),
			Host:                  v.GetString("APP_HOST"),
			Port:                  v.GetString("APP_PORT"),
			Version:               v.GetString("APP_VERSION"),
			RequestTimeoutSeconds: v.GetInt("HTTP_REQUEST_TIMEOUT_SECONDS"),
			StoreCallTimeoutMS:    v.GetInt("STORE_CALL_TIMEOUT_MS"),
		},
		Postgres: PostgresConfig{
			DSN:            v.GetString("POSTGRES_DSN"),
			MaxConns:       v.GetInt32("POSTGRES_MAX_CONNS"),
			MinConns:       v.GetInt32("POSTGRES_MIN_CONNS"),
			RunMigrations:  v.GetBool("POSTGRES_RUN_MIGRATIONS"),
			ConnMaxIdleSec: v.GetInt32("POSTGRES_CONN_MAX_IDLE_SECONDS"),
			ConnMaxLifeSec: v.GetInt32("POSTGRES_CONN_MAX_LIFE_SECONDS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Auth: AuthConfig{
			JWTSecret:             v.GetString("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: v.GetInt("AUTH_ACCESS_TOKEN_TTL_MINUTES"),
		},
		Notification: NotificationConfig{
			RedisChannelPrefix: v.GetString("NOTIFY_REDIS_CHANNEL_PREFIX"),
		},
		Triage: TriageConfig{
			HonorCategoryCriterion: v.GetBool("TRIAGE_HONOR_CATEGORY_CRITERION"),
			BatchConcurrency:       v.GetInt("TRIAGE_BATCH_CONCURRENCY"),
			BatchIntervalSeconds:   v.GetInt("TRIAGE_BATCH_INTERVAL_SECONDS"),
			AutoOnCreate:           v.GetBool("TRIAGE_AUTO_ON_CREATE"),
			LockTTLSeconds:         v.GetInt("TRIAGE_LOCK_TTL_SECONDS"),
			SystemUserID:           v.GetInt64("TRIAGE_SYSTEM_USER_ID"),
		},
	}

	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB: %d", cfg.Redis.DB)
	}
	if cfg.Triage.BatchConcurrency < 1 {
		cfg.Triage.BatchConcurrency = 1
	}
	if cfg.Triage.BatchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid TRIAGE_BATCH_INTERVAL_SECONDS: %d", cfg.Triage.BatchIntervalSeconds)
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// StoreCallTimeout bounds one unit of store work.
func (a AppConfig) StoreCallTimeout() time.Duration {
	if a.StoreCallTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.StoreCallTimeoutMS) * time.Millisecond
}

// LockTTL is how long a triage lock is held at most.
func (t TriageConfig) LockTTL() time.Duration {
	if t.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.LockTTLSeconds) * time.Second
}

// BatchInterval is the period of the background triage run; zero disables it.
func (t TriageConfig) BatchInterval() time.Duration {
	return time.Duration(t.BatchIntervalSeconds) * time.Second
}
