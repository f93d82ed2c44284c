// Точка входа файлообменника — сервиса временного хранения файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/fileshare/internal/api/handlers"
	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/database"
	"github.com/bigkaa/fileshare/internal/server"
	"github.com/bigkaa/fileshare/internal/service"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Файлообменник запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_dir", cfg.StorageDir),
		slog.String("metadata_backend", cfg.MetadataBackend),
		slog.String("retention_window", cfg.RetentionWindow.String()),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Дисковое хранилище файлов
	blobs, err := blobstore.New(cfg.StorageDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища файлов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Хранилище метаданных
	meta, err := buildMetadataStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer meta.Close()

	// 3. Сервисный слой
	share := service.NewShareService(cfg, blobs, meta, logger)
	reaper := service.NewReaper(cfg, blobs, meta, share, logger)
	reconciler := service.NewReconciler(cfg, blobs, meta, logger)

	// 4. Фоновые сервисы
	reaper.Start(ctx)
	defer reaper.Stop()
	reconciler.Start(ctx)
	defer reconciler.Stop()

	// 5. HTTP-слой
	filesHandler := handlers.NewFilesHandler(share, cfg.MaxUploadSize)
	systemHandler := handlers.NewSystemHandler(share, reaper, reconciler)
	healthHandler := handlers.NewHealthHandler(cfg.StorageDir, meta)

	srv := server.New(cfg, logger, filesHandler, systemHandler, healthHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildMetadataStore создаёт хранилище метаданных согласно конфигурации.
func buildMetadataStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metadata.Store, error) {
	switch cfg.MetadataBackend {
	case config.BackendMemory:
		logger.Warn("Хранилище метаданных in-memory: записи будут потеряны при перезапуске")
		return metadata.NewMemoryStore(), nil

	case config.BackendSQLite:
		store, err := metadata.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info("Хранилище метаданных SQLite открыто", slog.String("path", cfg.SQLitePath))
		return store, nil

	case config.BackendPostgres:
		if err := database.Migrate(cfg, logger); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return metadata.NewPostgresStore(pool), nil

	default:
		return nil, fmt.Errorf("неизвестный бэкенд метаданных: %s", cfg.MetadataBackend)
	}
}
