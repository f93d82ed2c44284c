// reconcile.go — сверка дискового хранилища с метаданными.
//
// Двухфазная запись без транзакций неизбежно порождает сирот: байты
// на диске, для которых вставка метаданных не состоялась. Reconciler
// периодически обходит диск, находит файлы без записи и освобождает
// место, после чего зачищает опустевшие поддиректории.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
)

// Prometheus метрики сверки.
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_runs_total",
		Help: "Общее количество проходов сверки хранилища",
	})
	reconcileOrphansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_orphans_total",
		Help: "Общее количество удалённых файлов-сирот",
	})
	reconcileFreedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_freed_bytes_total",
		Help: "Суммарный объём освобождённого места в байтах",
	})
)

// ErrReconcileInProgress — проход сверки уже выполняется.
var ErrReconcileInProgress = errors.New("сверка хранилища уже выполняется")

// ReconcileResult — итог одного прохода сверки.
type ReconcileResult struct {
	// CleanedFiles — количество удалённых сирот
	CleanedFiles int `json:"cleaned_files"`
	// FreedBytes — освобождено байт
	FreedBytes int64 `json:"freed_bytes"`
	// PrunedDirs — удалено пустых директорий
	PrunedDirs int `json:"pruned_dirs"`
	// Duration — длительность прохода
	Duration time.Duration `json:"duration"`
}

// Reconciler — сервис сверки дискового хранилища с метаданными.
type Reconciler struct {
	blobs *blobstore.BlobStore
	meta  metadata.Store

	reconcileInterval time.Duration
	orphanGracePeriod time.Duration

	// inProcess защищает от наложения проходов: обход диска может
	// занимать дольше интервала тикера.
	inProcess bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewReconciler создаёт сервис сверки.
func NewReconciler(
	cfg *config.Config,
	blobs *blobstore.BlobStore,
	meta metadata.Store,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		blobs:             blobs,
		meta:              meta,
		reconcileInterval: cfg.ReconcileInterval,
		orphanGracePeriod: cfg.OrphanGracePeriod,
		logger:            logger.With(slog.String("component", "reconciler")),
	}
}

// Start запускает периодическую сверку.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.logger.Info("Запуск сервиса сверки",
		slog.String("reconcile_interval", r.reconcileInterval.String()),
		slog.String("orphan_grace_period", r.orphanGracePeriod.String()),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.reconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := r.RunOnce(ctx)
				if err != nil {
					r.logger.Error("Ошибка прохода сверки",
						slog.String("error", err.Error()),
					)
					continue
				}
				if result.CleanedFiles > 0 || result.PrunedDirs > 0 {
					r.logger.Info("Проход сверки завершён",
						slog.Int("cleaned_files", result.CleanedFiles),
						slog.String("freed_space", humanize.Bytes(uint64(result.FreedBytes))),
						slog.Int("pruned_dirs", result.PrunedDirs),
						slog.String("duration", result.Duration.String()),
					)
				}
			}
		}
	}()
}

// Stop останавливает периодическую сверку.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("Сервис сверки остановлен")
}

// RunOnce выполняет один проход сверки.
//
// Сиротой считается файл на диске, по stored name которого запись
// метаданных не найдена И mtime которого старше grace period:
// свежая загрузка между записью байтов и вставкой записи не должна
// классифицироваться как сирота.
//
// Если во время прохода уже идёт другой, возвращается ошибка —
// параллельные обходы диска не нужны.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	r.mu.Lock()
	if r.inProcess {
		r.mu.Unlock()
		return nil, ErrReconcileInProgress
	}
	r.inProcess = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inProcess = false
		r.mu.Unlock()
	}()

	start := time.Now()
	reconcileRunsTotal.Inc()

	names, err := r.blobs.List()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-r.orphanGracePeriod)
	result := &ReconcileResult{}

	for _, storedName := range names {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		_, err := r.meta.FindByStoredName(ctx, storedName)
		if err == nil {
			// Запись есть — файл учтён
			continue
		}
		if !errors.Is(err, metadata.ErrNotFound) {
			r.logger.Error("Ошибка поиска записи при сверке",
				slog.String("stored_name", storedName),
				slog.String("error", err.Error()),
			)
			continue
		}

		mtime, err := r.blobs.ModTime(storedName)
		if err != nil {
			// Файл исчез между List и Stat — не сирота
			continue
		}
		if mtime.After(cutoff) {
			r.logger.Debug("Свежий файл без записи, пропуск (grace period)",
				slog.String("stored_name", storedName),
				slog.Time("mtime", mtime),
			)
			continue
		}

		size, err := r.blobs.Size(storedName)
		if err != nil {
			size = 0
		}

		if err := r.blobs.Delete(storedName); err != nil {
			r.logger.Error("Ошибка удаления файла-сироты",
				slog.String("stored_name", storedName),
				slog.String("error", err.Error()),
			)
			continue
		}

		result.CleanedFiles++
		result.FreedBytes += size
		reconcileOrphansTotal.Inc()
		reconcileFreedBytes.Add(float64(size))

		r.logger.Info("Удалён файл-сирота",
			slog.String("stored_name", storedName),
			slog.String("size", humanize.Bytes(uint64(size))),
		)
	}

	pruned, err := r.blobs.PruneEmptyDirs()
	if err != nil {
		r.logger.Error("Ошибка зачистки пустых директорий",
			slog.String("error", err.Error()),
		)
	}
	result.PrunedDirs = pruned

	result.Duration = time.Since(start)
	return result, nil
}
