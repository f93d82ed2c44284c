// Пакет metadata — абстракция хранилища метаданных файлов.
//
// Store — capability-интерфейс с одинаковой семантикой для всех
// адаптеров: in-memory таблица, встраиваемая файловая БД (SQLite)
// и сетевая реляционная БД (PostgreSQL). Insert немедленно виден
// последующему FindByKey в той же логической сессии (read-your-writes);
// Delete уже удалённой записи — no-op, не ошибка.
package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// ErrNotFound — запись не найдена.
var ErrNotFound = errors.New("запись не найдена")

// Store — хранилище записей FileInfo.
type Store interface {
	// Insert сохраняет новую запись.
	Insert(ctx context.Context, rec *model.FileInfo) error

	// FindByKey возвращает запись по ключу файла или ErrNotFound.
	FindByKey(ctx context.Context, fileKey string) (*model.FileInfo, error)

	// FindByStoredName возвращает запись по имени хранения или ErrNotFound.
	// Используется reconciliation для поиска сирот.
	FindByStoredName(ctx context.Context, storedName string) (*model.FileInfo, error)

	// FindExpiredBefore возвращает записи с expire_time раньше указанного момента.
	FindExpiredBefore(ctx context.Context, moment time.Time) ([]*model.FileInfo, error)

	// FindByOwner возвращает записи владельца, новые первыми.
	FindByOwner(ctx context.Context, ownerToken string) ([]*model.FileInfo, error)

	// FindRecent возвращает n последних записей, новые первыми.
	FindRecent(ctx context.Context, n int) ([]*model.FileInfo, error)

	// Count возвращает общее количество записей.
	Count(ctx context.Context) (int64, error)

	// TotalSize возвращает суммарный размер всех файлов в байтах (0 для пустого хранилища).
	TotalSize(ctx context.Context) (int64, error)

	// Delete удаляет запись по ключу. Удаление отсутствующей записи — no-op.
	Delete(ctx context.Context, fileKey string) error

	// IncrementDownloadCount персистирует инкремент счётчика скачиваний
	// записи rec и обновляет rec.DownloadCount. Политика приблизительного
	// счётчика: конкурентные инкременты могут теряться, без блокировок,
	// сериализующих несвязанные скачивания.
	IncrementDownloadCount(ctx context.Context, rec *model.FileInfo) error

	// Close освобождает ресурсы адаптера.
	Close() error
}
