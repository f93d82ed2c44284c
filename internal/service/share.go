// Пакет service — бизнес-логика файлообменника.
// share.go — ShareService: конвейер загрузки, чтения и удаления файлов
// поверх двух независимых хранилищ (BlobStore + MetadataStore).
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/domain/model"
	"github.com/bigkaa/fileshare/internal/fserr"
	"github.com/bigkaa/fileshare/internal/keygen"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
	"github.com/bigkaa/fileshare/internal/validate"
)

// Prometheus метрики файловых операций.
var (
	// operationsTotal — количество операций по типу и результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_operations_total",
		Help: "Общее количество файловых операций",
	}, []string{"operation", "result"})

	// uploadBytesTotal — суммарный объём загруженных данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_upload_bytes_total",
		Help: "Суммарный объём загруженных данных в байтах",
	})
)

// ShareService — конвейер файловых операций.
// Запись двухфазная и нетранзакционная: сначала байты на диск, затем
// метаданные. Расхождения между хранилищами устраняет Reconciler,
// а не компенсирующая логика в конвейере.
type ShareService struct {
	validator *validate.Validator
	blobs     *blobstore.BlobStore
	meta      metadata.Store
	cache     *metadataCache

	retentionWindow time.Duration
	recentLimit     int
	logger          *slog.Logger
}

// NewShareService создаёт конвейер файловых операций.
func NewShareService(
	cfg *config.Config,
	blobs *blobstore.BlobStore,
	meta metadata.Store,
	logger *slog.Logger,
) *ShareService {
	return &ShareService{
		validator:       validate.New(cfg.MaxUploadSize, cfg.AllowedExtensions),
		blobs:           blobs,
		meta:            meta,
		cache:           newMetadataCache(cfg.CacheSize, cfg.CacheTTL),
		retentionWindow: cfg.RetentionWindow,
		recentLimit:     cfg.RecentLimit,
		logger:          logger.With(slog.String("component", "share_service")),
	}
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// ContentType — MIME-тип из дескриптора загрузки
	ContentType string
	// Size — заявленный размер (из Content-Length multipart part)
	Size int64
	// OwnerToken — сетевая идентичность загрузившего
	OwnerToken string
}

// Upload загружает файл.
//
// Поток:
//  1. Валидация дескриптора (при отказе — без побочных эффектов)
//  2. Генерация ключа и имени хранения
//  3. Запись байтов на диск
//  4. Вставка метаданных
//
// Если вставка метаданных падает после успешной записи байтов, файл
// становится временной сиротой: вызывающему возвращается ошибка,
// сироту освободит ближайший проход reconciliation.
func (s *ShareService) Upload(ctx context.Context, params UploadParams) (*model.FileInfo, error) {
	if err := s.validator.Validate(validate.Descriptor{
		OriginalName: params.OriginalName,
		Size:         params.Size,
		ContentType:  params.ContentType,
	}); err != nil {
		operationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, err
	}

	fileKey := keygen.NewKey()
	storedName := keygen.StoredName(fileKey, params.OriginalName)

	size, err := s.blobs.Write(storedName, params.Reader)
	if err != nil {
		operationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка записи файла на диск",
			slog.String("file_key", fileKey),
			slog.String("error", err.Error()),
		)
		return nil, fserr.Wrap(fserr.UploadFailed, "ошибка сохранения файла", err)
	}

	now := time.Now().UTC()
	rec := &model.FileInfo{
		FileKey:       fileKey,
		OriginalName:  params.OriginalName,
		StoredName:    storedName,
		Size:          size,
		ContentType:   params.ContentType,
		StoragePath:   storedName,
		UploadTime:    now,
		ExpireTime:    now.Add(s.retentionWindow),
		DownloadCount: 0,
		OwnerToken:    params.OwnerToken,
	}

	if err := s.meta.Insert(ctx, rec); err != nil {
		operationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка вставки метаданных, файл останется сиротой до reconciliation",
			slog.String("file_key", fileKey),
			slog.String("stored_name", storedName),
			slog.String("error", err.Error()),
		)
		return nil, fserr.Wrap(fserr.UploadFailed, "ошибка сохранения метаданных", err)
	}

	s.cache.Set(fileKey, rec)

	operationsTotal.WithLabelValues("upload", "success").Inc()
	uploadBytesTotal.Add(float64(size))

	s.logger.Info("Файл загружен",
		slog.String("file_key", fileKey),
		slog.String("filename", params.OriginalName),
		slog.Int64("size", size),
		slog.String("owner", params.OwnerToken),
		slog.Time("expire_time", rec.ExpireTime),
	)

	return rec, nil
}

// GetInfo возвращает метаданные живого файла.
// Промах по ключу — NotFound; истёкшее окно хранения — Expired
// (отдельный сигнал "существовал, но исчез").
func (s *ShareService) GetInfo(ctx context.Context, fileKey string) (*model.FileInfo, error) {
	rec, ok := s.cache.Get(fileKey)
	if !ok {
		var err error
		rec, err = s.meta.FindByKey(ctx, fileKey)
		if err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return nil, fserr.New(fserr.NotFound, "файл не найден")
			}
			return nil, fserr.Wrap(fserr.SystemError, "ошибка поиска метаданных", err)
		}
		s.cache.Set(fileKey, rec)
	}

	if rec.IsExpired(time.Now().UTC()) {
		return nil, fserr.New(fserr.Expired, "срок хранения файла истёк")
	}

	return rec, nil
}

// DownloadResult — результат запроса на скачивание.
type DownloadResult struct {
	// File — открытый файл; вызывающий код обязан закрыть
	File *os.File
	// Record — метаданные файла (имя для Content-Disposition, MIME-тип)
	Record *model.FileInfo
}

// Download открывает файл для скачивания и инкрементирует счётчик.
//
// Порядок: поиск записи → проверка срока → открытие файла → инкремент.
// Запись читается напрямую из хранилища, минуя кэш: сразу после
// инкремента кэшированный счётчик был бы заведомо устаревшим.
// Ошибка персистирования инкремента не срывает отдачу файла
// (политика приблизительного счётчика).
func (s *ShareService) Download(ctx context.Context, fileKey string) (*DownloadResult, error) {
	rec, err := s.meta.FindByKey(ctx, fileKey)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			operationsTotal.WithLabelValues("download", "not_found").Inc()
			return nil, fserr.New(fserr.NotFound, "файл не найден")
		}
		return nil, fserr.Wrap(fserr.SystemError, "ошибка поиска метаданных", err)
	}

	if rec.IsExpired(time.Now().UTC()) {
		operationsTotal.WithLabelValues("download", "expired").Inc()
		return nil, fserr.New(fserr.Expired, "срок хранения файла истёк")
	}

	file, err := s.blobs.Read(rec.StoragePath)
	if err != nil {
		// Запись есть, байтов нет — расхождение хранилищ
		operationsTotal.WithLabelValues("download", "not_readable").Inc()
		s.logger.Error("Файл отсутствует или нечитаем на диске",
			slog.String("file_key", fileKey),
			slog.String("stored_name", rec.StoredName),
			slog.String("error", err.Error()),
		)
		return nil, fserr.Wrap(fserr.NotReadable, "файл отсутствует или нечитаем", err)
	}

	if err := s.meta.IncrementDownloadCount(ctx, rec); err != nil {
		s.logger.Warn("Ошибка персистирования счётчика скачиваний",
			slog.String("file_key", fileKey),
			slog.String("error", err.Error()),
		)
	}

	operationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Info("Файл скачан",
		slog.String("file_key", fileKey),
		slog.String("filename", rec.OriginalName),
		slog.Int("download_count", rec.DownloadCount),
	)

	return &DownloadResult{File: file, Record: rec}, nil
}

// Delete удаляет файл по инициативе владельца или администратора.
// Возвращает false, если удалять нечего (идемпотентность, не ошибка).
// При ошибке удаления байтов метаданные сохраняются: висячий файл
// Reconciler ещё найдёт, а по удалённой записи файл уже не найти.
func (s *ShareService) Delete(ctx context.Context, fileKey string) (bool, error) {
	rec, err := s.meta.FindByKey(ctx, fileKey)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return false, nil
		}
		return false, fserr.Wrap(fserr.SystemError, "ошибка поиска метаданных", err)
	}

	if err := s.blobs.Delete(rec.StoragePath); err != nil {
		operationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления файла с диска, метаданные сохранены",
			slog.String("file_key", fileKey),
			slog.String("error", err.Error()),
		)
		return false, fserr.Wrap(fserr.SystemError, "ошибка удаления файла", err)
	}

	if err := s.meta.Delete(ctx, fileKey); err != nil {
		operationsTotal.WithLabelValues("delete", "error").Inc()
		return false, fserr.Wrap(fserr.SystemError, "ошибка удаления метаданных", err)
	}

	s.cache.Delete(fileKey)

	operationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_key", fileKey),
		slog.String("filename", rec.OriginalName),
	)

	return true, nil
}

// ListByOwner возвращает файлы владельца, новые первыми.
func (s *ShareService) ListByOwner(ctx context.Context, ownerToken string) ([]*model.FileInfo, error) {
	records, err := s.meta.FindByOwner(ctx, ownerToken)
	if err != nil {
		return nil, fserr.Wrap(fserr.SystemError, "ошибка поиска файлов владельца", err)
	}
	return records, nil
}

// ListRecent возвращает последние загруженные файлы, новые первыми.
// Только публичные поля: без owner token и пути хранения.
func (s *ShareService) ListRecent(ctx context.Context) ([]model.PublicFileInfo, error) {
	records, err := s.meta.FindRecent(ctx, s.recentLimit)
	if err != nil {
		return nil, fserr.Wrap(fserr.SystemError, "ошибка поиска последних файлов", err)
	}

	result := make([]model.PublicFileInfo, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.Public())
	}
	return result, nil
}

// Stats — агрегированная статистика хранилища.
type Stats struct {
	TotalFiles     int64 `json:"total_files"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// Stats возвращает агрегаты по всем живым записям.
func (s *ShareService) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.meta.Count(ctx)
	if err != nil {
		return nil, fserr.Wrap(fserr.SystemError, "ошибка подсчёта файлов", err)
	}
	total, err := s.meta.TotalSize(ctx)
	if err != nil {
		return nil, fserr.Wrap(fserr.SystemError, "ошибка подсчёта суммарного размера", err)
	}
	return &Stats{TotalFiles: count, TotalSizeBytes: total}, nil
}

// InvalidateCached удаляет запись из кэша метаданных.
// Используется Reaper'ом после удаления истёкших записей.
func (s *ShareService) InvalidateCached(fileKey string) {
	s.cache.Delete(fileKey)
}
