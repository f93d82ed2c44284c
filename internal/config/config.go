// Пакет config — загрузка и валидация конфигурации файлообменника
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// DefaultAllowedExtensions — allow-list расширений по умолчанию.
const DefaultAllowedExtensions = ".jpg,.jpeg,.png,.gif,.pdf,.doc,.docx,.xls,.xlsx,.ppt,.pptx,.txt,.zip,.rar,.7z,.mp4,.avi,.mov"

// Бэкенды хранилища метаданных.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория хранения файлов
	StorageDir string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Allow-list расширений (с точкой)
	AllowedExtensions []string
	// Окно хранения: срок жизни файла после загрузки
	RetentionWindow time.Duration
	// Интервал основной очистки истёкших файлов
	SweepInterval time.Duration
	// Интервал резервной очистки (ограничивает worst-case staleness)
	BackupSweepInterval time.Duration
	// Задержка разовой очистки после старта процесса
	StartupSweepDelay time.Duration
	// Интервал сверки хранилища с метаданными
	ReconcileInterval time.Duration
	// Grace period: сирота удаляется только если mtime файла старше
	OrphanGracePeriod time.Duration
	// Количество файлов в списке недавних
	RecentLimit int
	// Бэкенд метаданных: memory, sqlite, postgres
	MetadataBackend string
	// Путь к файлу SQLite БД (обязателен для sqlite)
	SQLitePath string
	// Параметры PostgreSQL (обязательны для postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Размер LRU-кэша метаданных
	CacheSize int
	// TTL записи LRU-кэша
	CacheTTL time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// FS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FS_PORT: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FS_STORAGE_DIR — обязательный
	cfg.StorageDir, err = getEnvRequired("FS_STORAGE_DIR")
	if err != nil {
		return nil, err
	}

	// FS_MAX_UPLOAD_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("FS_MAX_UPLOAD_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("FS_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("FS_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// FS_ALLOWED_EXTENSIONS — список расширений через запятую
	rawExtensions := getEnvDefault("FS_ALLOWED_EXTENSIONS", DefaultAllowedExtensions)
	cfg.AllowedExtensions = splitExtensions(rawExtensions)
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("FS_ALLOWED_EXTENSIONS: список расширений пуст")
	}

	// FS_RETENTION_WINDOW — окно хранения (по умолчанию 24h)
	cfg.RetentionWindow, err = getEnvDuration("FS_RETENTION_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_RETENTION_WINDOW: %w", err)
	}
	if cfg.RetentionWindow <= 0 {
		return nil, fmt.Errorf("FS_RETENTION_WINDOW: значение должно быть положительным")
	}

	// FS_SWEEP_INTERVAL — интервал основной очистки (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("FS_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_SWEEP_INTERVAL: %w", err)
	}

	// FS_BACKUP_SWEEP_INTERVAL — интервал резервной очистки (по умолчанию 30m)
	cfg.BackupSweepInterval, err = getEnvDuration("FS_BACKUP_SWEEP_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_BACKUP_SWEEP_INTERVAL: %w", err)
	}

	// FS_STARTUP_SWEEP_DELAY — задержка стартовой очистки (по умолчанию 5m)
	cfg.StartupSweepDelay, err = getEnvDuration("FS_STARTUP_SWEEP_DELAY", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_STARTUP_SWEEP_DELAY: %w", err)
	}

	// FS_RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("FS_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_RECONCILE_INTERVAL: %w", err)
	}

	// FS_ORPHAN_GRACE_PERIOD — grace period для сирот (по умолчанию 5m).
	// Защищает свежие загрузки от ошибочной классификации как сироты,
	// пока вставка метаданных ещё не стала видимой.
	cfg.OrphanGracePeriod, err = getEnvDuration("FS_ORPHAN_GRACE_PERIOD", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_ORPHAN_GRACE_PERIOD: %w", err)
	}

	// FS_RECENT_LIMIT — размер списка недавних файлов (по умолчанию 10)
	cfg.RecentLimit, err = getEnvInt("FS_RECENT_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("FS_RECENT_LIMIT: %w", err)
	}
	if cfg.RecentLimit <= 0 {
		return nil, fmt.Errorf("FS_RECENT_LIMIT: значение должно быть положительным")
	}

	// FS_METADATA_BACKEND — бэкенд метаданных (по умолчанию memory)
	cfg.MetadataBackend = getEnvDefault("FS_METADATA_BACKEND", BackendMemory)
	switch cfg.MetadataBackend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return nil, fmt.Errorf("FS_METADATA_BACKEND: недопустимое значение %q, допустимые: memory, sqlite, postgres",
			cfg.MetadataBackend)
	}

	// FS_SQLITE_PATH — путь к файлу БД (обязателен для sqlite)
	cfg.SQLitePath = getEnvDefault("FS_SQLITE_PATH", "")
	if cfg.MetadataBackend == BackendSQLite && cfg.SQLitePath == "" {
		return nil, fmt.Errorf("FS_SQLITE_PATH: обязателен при FS_METADATA_BACKEND=sqlite")
	}

	// Параметры PostgreSQL
	cfg.DBHost = getEnvDefault("FS_DB_HOST", "")
	cfg.DBPort, err = getEnvInt("FS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FS_DB_PORT: %w", err)
	}
	cfg.DBName = getEnvDefault("FS_DB_NAME", "")
	cfg.DBUser = getEnvDefault("FS_DB_USER", "")
	cfg.DBPassword = getEnvDefault("FS_DB_PASSWORD", "")
	cfg.DBSSLMode = getEnvDefault("FS_DB_SSLMODE", "disable")
	if cfg.MetadataBackend == BackendPostgres {
		if cfg.DBHost == "" || cfg.DBName == "" || cfg.DBUser == "" {
			return nil, fmt.Errorf("FS_DB_HOST, FS_DB_NAME, FS_DB_USER обязательны при FS_METADATA_BACKEND=postgres")
		}
	}

	// FS_CACHE_SIZE — размер LRU-кэша метаданных (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("FS_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("FS_CACHE_SIZE: значение должно быть положительным")
	}

	// FS_CACHE_TTL — TTL записи кэша (по умолчанию 1m)
	cfg.CacheTTL, err = getEnvDuration("FS_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_TTL: %w", err)
	}

	// FS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FS_LOG_LEVEL: %w", err)
	}

	// FS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// splitExtensions разбирает список расширений через запятую,
// отбрасывая пустые элементы.
func splitExtensions(raw string) []string {
	var result []string
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		result = append(result, ext)
	}
	return result
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
