// memory.go — in-memory адаптер Store.
//
// Потокобезопасная таблица на sync.RWMutex: конкурентное чтение,
// эксклюзивная запись. Не персистентный — подходит для разработки
// и тестов. Потребление памяти: ~400 байт/запись.
package metadata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// MemoryStore — in-memory реализация Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.FileInfo // file_key → запись
}

// NewMemoryStore создаёт пустое in-memory хранилище метаданных.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.FileInfo),
	}
}

// Insert сохраняет запись. Запись с существующим ключом перезаписывается.
func (s *MemoryStore) Insert(_ context.Context, rec *model.FileInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Копия — защита от data race при внешних изменениях
	copied := *rec
	s.records[rec.FileKey] = &copied
	return nil
}

// FindByKey возвращает копию записи по ключу или ErrNotFound.
func (s *MemoryStore) FindByKey(_ context.Context, fileKey string) (*model.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[fileKey]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// FindByStoredName возвращает запись по имени хранения или ErrNotFound.
func (s *MemoryStore) FindByStoredName(_ context.Context, storedName string) (*model.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.StoredName == storedName {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// FindExpiredBefore возвращает записи с истёкшим сроком хранения.
func (s *MemoryStore) FindExpiredBefore(_ context.Context, moment time.Time) ([]*model.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*model.FileInfo
	for _, rec := range s.records {
		if rec.ExpireTime.Before(moment) {
			copied := *rec
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

// FindByOwner возвращает записи владельца, новые первыми.
func (s *MemoryStore) FindByOwner(_ context.Context, ownerToken string) ([]*model.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.FileInfo
	for _, rec := range s.records {
		if rec.OwnerToken == ownerToken {
			copied := *rec
			result = append(result, &copied)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// FindRecent возвращает n последних записей, новые первыми.
func (s *MemoryStore) FindRecent(_ context.Context, n int) ([]*model.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.FileInfo, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		result = append(result, &copied)
	}
	sortNewestFirst(result)

	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result, nil
}

// Count возвращает количество записей.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// TotalSize возвращает суммарный размер файлов в байтах.
func (s *MemoryStore) TotalSize(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, rec := range s.records {
		total += rec.Size
	}
	return total, nil
}

// Delete удаляет запись по ключу. Отсутствующая запись — no-op.
func (s *MemoryStore) Delete(_ context.Context, fileKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, fileKey)
	return nil
}

// IncrementDownloadCount персистирует счётчик read-modify-write:
// записывается значение rec.DownloadCount + 1, конкурентные инкременты
// могут теряться (политика приблизительного счётчика).
func (s *MemoryStore) IncrementDownloadCount(_ context.Context, rec *model.FileInfo) error {
	rec.DownloadCount++

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.FileKey]
	if !ok {
		return ErrNotFound
	}
	stored.DownloadCount = rec.DownloadCount
	return nil
}

// Close — no-op для in-memory хранилища.
func (s *MemoryStore) Close() error {
	return nil
}

// sortNewestFirst сортирует записи по времени загрузки, новые первыми.
func sortNewestFirst(records []*model.FileInfo) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].UploadTime.After(records[j].UploadTime)
	})
}
