package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/course-scheduler/pkg/timeofday"
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
	CORS     CORSConfig
	Log      LogConfig
	Schedule ScheduleConfig
	Cache    CacheConfig
	Audit    AuditConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScheduleConfig bounds the institutional day used by time-range validation.
type ScheduleConfig struct {
	DayStart timeofday.Clock
	DayEnd   timeofday.Clock
}

// CacheConfig toggles the Redis-backed year level cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// AuditConfig controls the background block-section audit worker.
type AuditConfig struct {
	WorkerEnabled bool
	Interval      time.Duration
	WorkerRetries int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	dayStart, err := timeofday.Parse(v.GetString("SCHEDULE_DAY_START"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_DAY_START: %w", err)
	}
	dayEnd, err := timeofday.Parse(v.GetString("SCHEDULE_DAY_END"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_DAY_END: %w", err)
	}
	if !dayStart.Before(dayEnd) {
		return nil, fmt.Errorf("SCHEDULE_DAY_START (%s) must be before SCHEDULE_DAY_END (%s)", dayStart, dayEnd)
	}
	cfg.Schedule = ScheduleConfig{DayStart: dayStart, DayEnd: dayEnd}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_YEAR_LEVEL_CACHE"),
		TTL:     parseDuration(v.GetString("YEAR_LEVEL_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Audit = AuditConfig{
		WorkerEnabled: v.GetBool("ENABLE_AUDIT_WORKER"),
		Interval:      parseDuration(v.GetString("AUDIT_INTERVAL"), 0),
		WorkerRetries: v.GetInt("AUDIT_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "course_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULE_DAY_START", "06:00")
	v.SetDefault("SCHEDULE_DAY_END", "22:00")

	v.SetDefault("ENABLE_YEAR_LEVEL_CACHE", false)
	v.SetDefault("YEAR_LEVEL_CACHE_TTL", "15m")

	v.SetDefault("ENABLE_AUDIT_WORKER", false)
	v.SetDefault("AUDIT_INTERVAL", "")
	v.SetDefault("AUDIT_WORKER_RETRIES", 2)
}

// isMissingFile reports a missing .env, which viper surfaces as a plain
// fs error when SetConfigFile is used.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
