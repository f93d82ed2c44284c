package config

import (
	"log/slog"
	"testing"
	"time"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FS_STORAGE_DIR", "/tmp/uploads")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: хотели 8080, получили %d", cfg.Port)
	}
	if cfg.MaxUploadSize != 104857600 {
		t.Errorf("MaxUploadSize: хотели 104857600, получили %d", cfg.MaxUploadSize)
	}
	if cfg.RetentionWindow != 24*time.Hour {
		t.Errorf("RetentionWindow: хотели 24h, получили %s", cfg.RetentionWindow)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval: хотели 1h, получили %s", cfg.SweepInterval)
	}
	if cfg.BackupSweepInterval != 30*time.Minute {
		t.Errorf("BackupSweepInterval: хотели 30m, получили %s", cfg.BackupSweepInterval)
	}
	if cfg.StartupSweepDelay != 5*time.Minute {
		t.Errorf("StartupSweepDelay: хотели 5m, получили %s", cfg.StartupSweepDelay)
	}
	if cfg.OrphanGracePeriod != 5*time.Minute {
		t.Errorf("OrphanGracePeriod: хотели 5m, получили %s", cfg.OrphanGracePeriod)
	}
	if cfg.MetadataBackend != BackendMemory {
		t.Errorf("MetadataBackend: хотели memory, получили %s", cfg.MetadataBackend)
	}
	if cfg.RecentLimit != 10 {
		t.Errorf("RecentLimit: хотели 10, получили %d", cfg.RecentLimit)
	}
	if len(cfg.AllowedExtensions) == 0 {
		t.Error("AllowedExtensions пуст")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: хотели info, получили %v", cfg.LogLevel)
	}
}

func TestLoad_MissingStorageDir(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Error("Отсутствие FS_STORAGE_DIR не вернуло ошибку")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_PORT", "9090")
	t.Setenv("FS_MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("FS_ALLOWED_EXTENSIONS", ".txt, .pdf")
	t.Setenv("FS_RETENTION_WINDOW", "48h")
	t.Setenv("FS_ORPHAN_GRACE_PERIOD", "10m")
	t.Setenv("FS_LOG_LEVEL", "debug")
	t.Setenv("FS_LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port: хотели 9090, получили %d", cfg.Port)
	}
	if cfg.MaxUploadSize != 1048576 {
		t.Errorf("MaxUploadSize: хотели 1048576, получили %d", cfg.MaxUploadSize)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != ".txt" || cfg.AllowedExtensions[1] != ".pdf" {
		t.Errorf("AllowedExtensions: получили %v", cfg.AllowedExtensions)
	}
	if cfg.RetentionWindow != 48*time.Hour {
		t.Errorf("RetentionWindow: хотели 48h, получили %s", cfg.RetentionWindow)
	}
	if cfg.OrphanGracePeriod != 10*time.Minute {
		t.Errorf("OrphanGracePeriod: хотели 10m, получили %s", cfg.OrphanGracePeriod)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: хотели debug, получили %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: хотели text, получили %s", cfg.LogFormat)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_PORT", "99999")

	if _, err := Load(); err == nil {
		t.Error("Порт вне диапазона не вернул ошибку")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_RETENTION_WINDOW", "sometime")

	if _, err := Load(); err == nil {
		t.Error("Некорректная длительность не вернула ошибку")
	}
}

func TestLoad_SQLiteRequiresPath(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_METADATA_BACKEND", "sqlite")

	if _, err := Load(); err == nil {
		t.Error("sqlite без FS_SQLITE_PATH не вернул ошибку")
	}

	t.Setenv("FS_SQLITE_PATH", "/tmp/meta.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	if cfg.SQLitePath != "/tmp/meta.db" {
		t.Errorf("SQLitePath: получили %s", cfg.SQLitePath)
	}
}

func TestLoad_PostgresRequiresConnParams(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_METADATA_BACKEND", "postgres")

	if _, err := Load(); err == nil {
		t.Error("postgres без параметров подключения не вернул ошибку")
	}

	t.Setenv("FS_DB_HOST", "db.local")
	t.Setenv("FS_DB_NAME", "fileshare")
	t.Setenv("FS_DB_USER", "fileshare")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	want := "postgres://fileshare:@db.local:5432/fileshare?sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DSN: хотели %s, получили %s", want, got)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FS_METADATA_BACKEND", "cassandra")

	if _, err := Load(); err == nil {
		t.Error("Неизвестный бэкенд не вернул ошибку")
	}
}
