// reaper.go — фоновая очистка истёкших файлов.
//
// Три расписания, как три независимых гарантии своевременности:
//   - основной тикер (FS_SWEEP_INTERVAL) — штатная очистка;
//   - резервный тикер (FS_BACKUP_SWEEP_INTERVAL) — ограничивает
//     worst-case задержку, если основной проход упал или завис;
//   - разовый отложенный проход после старта (FS_STARTUP_SWEEP_DELAY) —
//     подбирает файлы, истёкшие за время простоя процесса.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
)

// Prometheus метрики очистки.
var (
	reaperSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reaper_sweeps_total",
		Help: "Общее количество проходов очистки истёкших файлов",
	})
	reaperDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reaper_deleted_total",
		Help: "Общее количество удалённых истёкших файлов",
	})
	reaperErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reaper_errors_total",
		Help: "Общее количество ошибок удаления при очистке",
	})
	reaperDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_reaper_duration_seconds",
		Help:    "Длительность прохода очистки",
		Buckets: prometheus.DefBuckets,
	})
)

// SweepResult — итог одного прохода очистки.
type SweepResult struct {
	// DeletedCount — количество полностью удалённых файлов
	DeletedCount int `json:"deleted_count"`
	// Errors — количество файлов, удаление которых не удалось
	Errors int `json:"errors"`
	// Duration — длительность прохода
	Duration time.Duration `json:"duration"`
}

// Reaper — сервис фоновой очистки истёкших файлов.
type Reaper struct {
	blobs *blobstore.BlobStore
	meta  metadata.Store
	share *ShareService

	sweepInterval       time.Duration
	backupSweepInterval time.Duration
	startupSweepDelay   time.Duration

	// mu сериализует проходы очистки: тикеры и ручной запуск
	// не должны обрабатывать одну запись конкурентно.
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewReaper создаёт сервис очистки истёкших файлов.
func NewReaper(
	cfg *config.Config,
	blobs *blobstore.BlobStore,
	meta metadata.Store,
	share *ShareService,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		blobs:               blobs,
		meta:                meta,
		share:               share,
		sweepInterval:       cfg.SweepInterval,
		backupSweepInterval: cfg.BackupSweepInterval,
		startupSweepDelay:   cfg.StartupSweepDelay,
		logger:              logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновые расписания очистки.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("Запуск сервиса очистки",
		slog.String("sweep_interval", r.sweepInterval.String()),
		slog.String("backup_sweep_interval", r.backupSweepInterval.String()),
		slog.String("startup_sweep_delay", r.startupSweepDelay.String()),
	)

	// Основной тикер
	r.wg.Add(1)
	go r.runTicker(ctx, r.sweepInterval, "main")

	// Резервный тикер
	r.wg.Add(1)
	go r.runTicker(ctx, r.backupSweepInterval, "backup")

	// Разовый отложенный проход после старта
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.startupSweepDelay):
			r.sweep(ctx, "startup")
		}
	}()
}

// Stop останавливает фоновые расписания и дожидается завершения
// текущего прохода.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("Сервис очистки остановлен")
}

// runTicker выполняет проходы очистки по тикеру до отмены контекста.
func (r *Reaper) runTicker(ctx context.Context, interval time.Duration, schedule string) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx, schedule)
		}
	}
}

// sweep выполняет проход и логирует итог.
func (r *Reaper) sweep(ctx context.Context, schedule string) {
	result, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("Ошибка прохода очистки",
			slog.String("schedule", schedule),
			slog.String("error", err.Error()),
		)
		return
	}
	if result.DeletedCount > 0 || result.Errors > 0 {
		r.logger.Info("Проход очистки завершён",
			slog.String("schedule", schedule),
			slog.Int("deleted", result.DeletedCount),
			slog.Int("errors", result.Errors),
			slog.String("duration", result.Duration.String()),
		)
	}
}

// RunOnce выполняет один проход очистки: находит записи с истёкшим
// сроком и удаляет сначала байты, затем метаданные.
//
// Порядок важен: если удаление байтов не удалось, запись метаданных
// сохраняется и файл будет повторно обработан следующим проходом.
// Обратный порядок оставил бы на диске вечный неучтённый файл.
// Отсутствие байтов при живой записи (полуудалённое состояние) —
// не ошибка: запись зачищается.
func (r *Reaper) RunOnce(ctx context.Context) (*SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	reaperSweepsTotal.Inc()

	expired, err := r.meta.FindExpiredBefore(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, rec := range expired {
		if err := r.blobs.Delete(rec.StoragePath); err != nil {
			// Байты не удалились — запись оставляем, попробуем в следующий раз
			result.Errors++
			reaperErrorsTotal.Inc()
			r.logger.Error("Ошибка удаления истёкшего файла с диска",
				slog.String("file_key", rec.FileKey),
				slog.String("stored_name", rec.StoredName),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := r.meta.Delete(ctx, rec.FileKey); err != nil {
			result.Errors++
			reaperErrorsTotal.Inc()
			r.logger.Error("Ошибка удаления метаданных истёкшего файла",
				slog.String("file_key", rec.FileKey),
				slog.String("error", err.Error()),
			)
			continue
		}

		if r.share != nil {
			r.share.InvalidateCached(rec.FileKey)
		}

		result.DeletedCount++
		reaperDeletedTotal.Inc()
		r.logger.Debug("Истёкший файл удалён",
			slog.String("file_key", rec.FileKey),
			slog.String("filename", rec.OriginalName),
			slog.Time("expire_time", rec.ExpireTime),
		)
	}

	result.Duration = time.Since(start)
	reaperDuration.Observe(result.Duration.Seconds())

	if errors.Is(ctx.Err(), context.Canceled) {
		return result, ctx.Err()
	}
	return result, nil
}
