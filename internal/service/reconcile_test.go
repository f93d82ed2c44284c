package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/fileshare/internal/keygen"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
)

// newTestReconciler создаёт Reconciler поверх temp-хранилища.
func newTestReconciler(t *testing.T) (*Reconciler, *ShareService, *blobstore.BlobStore, *metadata.MemoryStore) {
	t.Helper()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания BlobStore: %v", err)
	}
	meta := metadata.NewMemoryStore()
	cfg := testConfig()
	share := NewShareService(cfg, blobs, meta, testLogger())
	rec := NewReconciler(cfg, blobs, meta, testLogger())
	return rec, share, blobs, meta
}

// writeOrphan пишет файл без записи метаданных и состаривает его mtime.
func writeOrphan(t *testing.T, blobs *blobstore.BlobStore, age time.Duration) string {
	t.Helper()

	storedName := keygen.NewKey() + ".txt"
	if _, err := blobs.Write(storedName, strings.NewReader("осиротевшие данные")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(blobs.FullPath(storedName), old, old); err != nil {
		t.Fatalf("Ошибка изменения mtime: %v", err)
	}
	return storedName
}

func TestReconcile_DeletesOldOrphan(t *testing.T) {
	rec, share, blobs, _ := newTestReconciler(t)

	orphan := writeOrphan(t, blobs, time.Hour) // старше grace period (5m)
	alive := upload(t, share, "учтённый.txt", "данные", "10.0.0.1")

	result, err := rec.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Ошибка прохода сверки: %v", err)
	}
	if result.CleanedFiles != 1 {
		t.Errorf("CleanedFiles: хотели 1, получили %d", result.CleanedFiles)
	}
	if result.FreedBytes <= 0 {
		t.Errorf("FreedBytes: хотели > 0, получили %d", result.FreedBytes)
	}

	if blobs.Exists(orphan) {
		t.Error("Сирота осталась на диске")
	}
	if !blobs.Exists(alive.StoredName) {
		t.Error("Учтённый файл удалён сверкой")
	}
}

func TestReconcile_KeepsFreshOrphan(t *testing.T) {
	rec, _, blobs, _ := newTestReconciler(t)

	// Файл без записи, но свежий: вставка метаданных могла ещё не завершиться
	orphan := writeOrphan(t, blobs, time.Minute)

	result, err := rec.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Ошибка прохода сверки: %v", err)
	}
	if result.CleanedFiles != 0 {
		t.Errorf("Свежая сирота удалена: cleaned=%d", result.CleanedFiles)
	}
	if !blobs.Exists(orphan) {
		t.Error("Свежий файл без записи исчез с диска")
	}
}

func TestReconcile_PrunesEmptyDirs(t *testing.T) {
	rec, _, blobs, _ := newTestReconciler(t)

	empty := filepath.Join(blobs.RootDir(), "2026", "08")
	if err := os.MkdirAll(empty, 0o750); err != nil {
		t.Fatalf("Ошибка создания директорий: %v", err)
	}

	result, err := rec.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Ошибка прохода сверки: %v", err)
	}
	if result.PrunedDirs != 2 {
		t.Errorf("PrunedDirs: хотели 2, получили %d", result.PrunedDirs)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("Пустая директория осталась")
	}
	if _, err := os.Stat(blobs.RootDir()); err != nil {
		t.Error("Корневая директория хранилища удалена")
	}
}

func TestReconcile_SecondRunIsEmpty(t *testing.T) {
	rec, _, blobs, _ := newTestReconciler(t)

	writeOrphan(t, blobs, time.Hour)

	if _, err := rec.RunOnce(context.Background()); err != nil {
		t.Fatalf("Ошибка первого прохода: %v", err)
	}

	result, err := rec.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Ошибка второго прохода: %v", err)
	}
	if result.CleanedFiles != 0 || result.FreedBytes != 0 {
		t.Errorf("Второй проход нашёл сирот: %+v", result)
	}
}
