package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Meter    MeterConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Format string // json or text
}

// MeterConfig holds the taximeter tuning knobs.
type MeterConfig struct {
	ID       string
	Timezone string

	FilterMode           string
	MaxAccuracyMeters    float64
	StationarySpeedKmh   float64
	MovingBaseMeters     float64
	StationaryBaseMeters float64
	TimeBonusPerSecond   float64
	TimeBonusCapSeconds  float64
	FloorMeters          float64

	MotionThresholdMeters float64
	MotionTimeout         time.Duration

	MinFixInterval time.Duration
	LiveInterval   time.Duration
	LockTTL        time.Duration
}

// Location resolves the meter time zone, falling back to the local zone when
// the name is empty, "Local" or unknown.
func (m MeterConfig) Location() *time.Location {
	if m.Timezone == "" || m.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0), // 0 keeps the live feed open
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "taximeter"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "taximeter"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Meter: MeterConfig{
			ID:       getEnv("METER_ID", "default"),
			Timezone: getEnv("METER_TIMEZONE", "Local"),

			FilterMode:           getEnv("METER_FILTER_MODE", "adaptive"),
			MaxAccuracyMeters:    getFloatEnv("METER_MAX_ACCURACY_M", 30),
			StationarySpeedKmh:   getFloatEnv("METER_STATIONARY_SPEED_KMH", 1),
			MovingBaseMeters:     getFloatEnv("METER_MOVING_BASE_M", 8),
			StationaryBaseMeters: getFloatEnv("METER_STATIONARY_BASE_M", 15),
			TimeBonusPerSecond:   getFloatEnv("METER_TIME_BONUS_PER_S", 0.5),
			TimeBonusCapSeconds:  getFloatEnv("METER_TIME_BONUS_CAP_S", 10),
			FloorMeters:          getFloatEnv("METER_FLOOR_M", 3),

			MotionThresholdMeters: getFloatEnv("METER_MOTION_THRESHOLD_M", 5),
			MotionTimeout:         getDurationEnv("METER_MOTION_TIMEOUT", 30*time.Second),

			MinFixInterval: getDurationEnv("METER_MIN_FIX_INTERVAL", time.Second),
			LiveInterval:   getDurationEnv("METER_LIVE_INTERVAL", time.Second),
			LockTTL:        getDurationEnv("METER_LOCK_TTL", 12*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
