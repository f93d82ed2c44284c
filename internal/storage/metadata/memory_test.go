package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

func newTestRecord(key string, uploadTime time.Time) *model.FileInfo {
	return &model.FileInfo{
		FileKey:      key,
		OriginalName: key + ".txt",
		StoredName:   key + ".txt",
		Size:         100,
		ContentType:  "text/plain",
		StoragePath:  key + ".txt",
		UploadTime:   uploadTime,
		ExpireTime:   uploadTime.Add(24 * time.Hour),
		OwnerToken:   "10.0.0.1",
	}
}

func TestMemoryStore_InsertAndFindByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newTestRecord("key1", time.Now().UTC())
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	// read-your-writes: вставка немедленно видна
	got, err := s.FindByKey(ctx, "key1")
	if err != nil {
		t.Fatalf("Ошибка поиска: %v", err)
	}
	if got.FileKey != "key1" || got.OriginalName != "key1.txt" || got.Size != 100 {
		t.Errorf("Поля записи не совпадают: %+v", got)
	}
}

func TestMemoryStore_FindByKey_NotFound(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.FindByKey(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("Хотели ErrNotFound, получили %v", err)
	}
}

func TestMemoryStore_FindByStoredName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newTestRecord("key1", time.Now().UTC())
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	got, err := s.FindByStoredName(ctx, "key1.txt")
	if err != nil {
		t.Fatalf("Ошибка поиска по имени хранения: %v", err)
	}
	if got.FileKey != "key1" {
		t.Errorf("Ключ: хотели key1, получили %s", got.FileKey)
	}

	if _, err := s.FindByStoredName(ctx, "orphan.bin"); err != ErrNotFound {
		t.Errorf("Хотели ErrNotFound, получили %v", err)
	}
}

func TestMemoryStore_FindExpiredBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	expired := newTestRecord("old", now.Add(-48*time.Hour))
	live := newTestRecord("new", now)
	if err := s.Insert(ctx, expired); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}
	if err := s.Insert(ctx, live); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	got, err := s.FindExpiredBefore(ctx, now)
	if err != nil {
		t.Fatalf("Ошибка поиска истёкших: %v", err)
	}
	if len(got) != 1 || got[0].FileKey != "old" {
		t.Errorf("Истёкшие записи: хотели [old], получили %+v", got)
	}
}

func TestMemoryStore_FindByOwner_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	first := newTestRecord("first", now.Add(-2*time.Hour))
	second := newTestRecord("second", now.Add(-1*time.Hour))
	third := newTestRecord("third", now)
	other := newTestRecord("other", now)
	other.OwnerToken = "10.0.0.2"

	for _, rec := range []*model.FileInfo{first, second, third, other} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Ошибка вставки: %v", err)
		}
	}

	got, err := s.FindByOwner(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Ошибка поиска по владельцу: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Количество записей: хотели 3, получили %d", len(got))
	}
	if got[0].FileKey != "third" || got[1].FileKey != "second" || got[2].FileKey != "first" {
		t.Errorf("Порядок не новые-первыми: %s, %s, %s",
			got[0].FileKey, got[1].FileKey, got[2].FileKey)
	}
}

func TestMemoryStore_FindRecent_Limit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		rec := newTestRecord(string(rune('a'+i)), now.Add(time.Duration(i)*time.Minute))
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Ошибка вставки: %v", err)
		}
	}

	got, err := s.FindRecent(ctx, 3)
	if err != nil {
		t.Fatalf("Ошибка поиска последних: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Количество записей: хотели 3, получили %d", len(got))
	}
	if got[0].FileKey != "e" || got[1].FileKey != "d" || got[2].FileKey != "c" {
		t.Errorf("Порядок не новые-первыми: %s, %s, %s",
			got[0].FileKey, got[1].FileKey, got[2].FileKey)
	}
}

func TestMemoryStore_CountAndTotalSize(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Пустое хранилище: 0, не ошибка
	count, err := s.Count(ctx)
	if err != nil || count != 0 {
		t.Errorf("Count пустого хранилища: хотели 0, получили %d (%v)", count, err)
	}
	total, err := s.TotalSize(ctx)
	if err != nil || total != 0 {
		t.Errorf("TotalSize пустого хранилища: хотели 0, получили %d (%v)", total, err)
	}

	now := time.Now().UTC()
	a := newTestRecord("a", now)
	a.Size = 100
	b := newTestRecord("b", now)
	b.Size = 250
	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	count, _ = s.Count(ctx)
	if count != 2 {
		t.Errorf("Count: хотели 2, получили %d", count)
	}
	total, _ = s.TotalSize(ctx)
	if total != 350 {
		t.Errorf("TotalSize: хотели 350, получили %d", total)
	}
}

func TestMemoryStore_Delete_NoOpForMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newTestRecord("key1", time.Now().UTC())
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	if err := s.Delete(ctx, "key1"); err != nil {
		t.Errorf("Ошибка удаления: %v", err)
	}
	// Повторное удаление — no-op
	if err := s.Delete(ctx, "key1"); err != nil {
		t.Errorf("Повторное удаление вернуло ошибку: %v", err)
	}
	if _, err := s.FindByKey(ctx, "key1"); err != ErrNotFound {
		t.Errorf("Запись не удалена: %v", err)
	}
}

func TestMemoryStore_IncrementDownloadCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newTestRecord("key1", time.Now().UTC())
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	if err := s.IncrementDownloadCount(ctx, rec); err != nil {
		t.Fatalf("Ошибка инкремента: %v", err)
	}
	if rec.DownloadCount != 1 {
		t.Errorf("DownloadCount записи: хотели 1, получили %d", rec.DownloadCount)
	}

	stored, err := s.FindByKey(ctx, "key1")
	if err != nil {
		t.Fatalf("Ошибка поиска: %v", err)
	}
	if stored.DownloadCount != 1 {
		t.Errorf("Персистированный DownloadCount: хотели 1, получили %d", stored.DownloadCount)
	}
}

func TestMemoryStore_InsertReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := newTestRecord("key1", time.Now().UTC())
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Ошибка вставки: %v", err)
	}

	// Изменение исходной структуры не влияет на хранилище
	rec.OriginalName = "mutated.txt"

	stored, err := s.FindByKey(ctx, "key1")
	if err != nil {
		t.Fatalf("Ошибка поиска: %v", err)
	}
	if stored.OriginalName != "key1.txt" {
		t.Errorf("Хранилище отдало мутированную запись: %s", stored.OriginalName)
	}
}
