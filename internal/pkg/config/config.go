package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Logger    LoggerConfig
	Overstay  OverstayConfig
	Entry     EntryConfig
	Archive   ArchiveConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PassTTL  time.Duration // TTL кэша UID -> пропуск
}

// JWTConfig содержит настройки проверки JWT охраны
type JWTConfig struct {
	SecretKey    string
	AccessExpiry time.Duration
	Issuer       string
}

// CORSConfig содержит настройки CORS
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// LoggerConfig содержит настройки логирования
type LoggerConfig struct {
	Level  string
	Format string // json или console
	Output string // stdout или путь к файлу
}

// OverstayConfig - общая политика превышения времени визита
type OverstayConfig struct {
	SoftThreshold time.Duration
	HardThreshold time.Duration
	Interval      time.Duration // период фоновой проверки
}

// EntryConfig содержит настройки отметок на постах
type EntryConfig struct {
	DuplicateWindow time.Duration
	RecentLimit     int
}

// ArchiveConfig содержит настройки ежедневной архивации
type ArchiveConfig struct {
	RetentionYears int
	RunAt          string // HH:MM, локальное время
}

// SchedulerConfig содержит настройки фоновых задач
type SchedulerConfig struct {
	Enabled bool
	LockTTL time.Duration
}

// AuthConfig содержит настройки счетчика неудачных попыток
type AuthConfig struct {
	MaxFailedAttempts int
	FailureWindow     time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "ivisit_user"),
			Password:        getEnv("DB_PASSWORD", "ivisit_password"),
			Database:        getEnv("DB_NAME", "ivisit_db"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PassTTL:  getDurationEnv("REDIS_PASS_TTL", time.Hour),
		},
		JWT: JWTConfig{
			SecretKey:    getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
			AccessExpiry: getDurationEnv("JWT_ACCESS_EXPIRY", 12*time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "ivisit"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Overstay: OverstayConfig{
			SoftThreshold: getDurationEnv("OVERSTAY_SOFT_THRESHOLD", 8*time.Hour),
			HardThreshold: getDurationEnv("OVERSTAY_HARD_THRESHOLD", 12*time.Hour),
			Interval:      getDurationEnv("OVERSTAY_INTERVAL", 5*time.Minute),
		},
		Entry: EntryConfig{
			DuplicateWindow: getDurationEnv("ENTRY_DUPLICATE_WINDOW", 15*time.Second),
			RecentLimit:     getIntEnv("ENTRY_RECENT_LIMIT", 50),
		},
		Archive: ArchiveConfig{
			RetentionYears: getIntEnv("ARCHIVE_RETENTION_YEARS", 1),
			RunAt:          getEnv("ARCHIVE_RUN_AT", "02:30"),
		},
		Scheduler: SchedulerConfig{
			Enabled: getBoolEnv("SCHEDULER_ENABLED", true),
			LockTTL: getDurationEnv("SCHEDULER_LOCK_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			MaxFailedAttempts: getIntEnv("AUTH_MAX_FAILED_ATTEMPTS", 5),
			FailureWindow:     getDurationEnv("AUTH_FAILURE_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность политик
func (c *Config) Validate() error {
	var errs []error

	if c.Overstay.SoftThreshold <= 0 || c.Overstay.HardThreshold <= 0 {
		errs = append(errs, errors.New("overstay thresholds must be positive"))
	}
	if c.Overstay.HardThreshold <= c.Overstay.SoftThreshold {
		errs = append(errs, errors.New("overstay hard threshold must exceed soft threshold"))
	}
	if c.Overstay.Interval <= 0 {
		errs = append(errs, errors.New("overstay interval must be positive"))
	}
	if c.Entry.DuplicateWindow < 0 {
		errs = append(errs, errors.New("entry duplicate window must not be negative"))
	}
	if c.Archive.RetentionYears <= 0 {
		errs = append(errs, errors.New("archive retention must be at least one year"))
	}
	if _, _, err := c.Archive.Clock(); err != nil {
		errs = append(errs, err)
	}
	if c.Scheduler.LockTTL <= 0 {
		errs = append(errs, errors.New("scheduler lock ttl must be positive"))
	}
	if c.Auth.MaxFailedAttempts <= 0 || c.Auth.FailureWindow <= 0 {
		errs = append(errs, errors.New("auth attempt limit and window must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Clock разбирает RunAt в часы и минуты
func (c *ArchiveConfig) Clock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(c.RunAt))
	if err != nil {
		return 0, 0, fmt.Errorf("archive run time %q must be HH:MM: %w", c.RunAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// DSN возвращает строку подключения к PostgreSQL
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Address возвращает адрес сервера
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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

func getListEnv(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
