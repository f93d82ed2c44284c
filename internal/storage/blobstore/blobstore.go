// Пакет blobstore — операции с физическими файлами на диске.
// Файлы адресуются по stored name (ключ + расширение) относительно
// корневой директории хранилища. Запись атомарна: temp файл → fsync →
// rename, частично записанные файлы наружу не видны.
package blobstore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore — управление физическими файлами на диске.
type BlobStore struct {
	// rootDir — корневая директория хранения файлов (FS_STORAGE_DIR)
	rootDir string
}

// New создаёт BlobStore. Создаёт корневую директорию, если она
// не существует. Ошибка создания — неустранимое условие старта.
func New(rootDir string) (*BlobStore, error) {
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", rootDir, err)
	}
	return &BlobStore{rootDir: rootDir}, nil
}

// Write записывает данные из reader в файл storedName.
// Создаёт или перезаписывает целевой файл целиком.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется, целевой файл не появляется.
func (bs *BlobStore) Write(storedName string, reader io.Reader) (int64, error) {
	fullPath := filepath.Join(bs.rootDir, storedName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Read открывает файл для чтения и возвращает *os.File.
// Отказывает, если файл отсутствует, нечитаем или является директорией.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Read(storedName string) (*os.File, error) {
	fullPath := filepath.Join(bs.rootDir, storedName)

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storedName, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка stat файла %s: %w", storedName, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s является директорией, а не файлом", storedName)
	}

	return f, nil
}

// Delete удаляет файл с диска. Идемпотентна: удаление несуществующего
// файла — успех, не ошибка.
func (bs *BlobStore) Delete(storedName string) error {
	fullPath := filepath.Join(bs.rootDir, storedName)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (bs *BlobStore) Exists(storedName string) bool {
	fullPath := filepath.Join(bs.rootDir, storedName)
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Size возвращает размер файла на диске.
func (bs *BlobStore) Size(storedName string) (int64, error) {
	fullPath := filepath.Join(bs.rootDir, storedName)
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storedName, err)
	}
	return info.Size(), nil
}

// ModTime возвращает время последней модификации файла.
// Используется reconciliation для grace period сирот.
func (bs *BlobStore) ModTime(storedName string) (time.Time, error) {
	fullPath := filepath.Join(bs.rootDir, storedName)
	info, err := os.Stat(fullPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка получения mtime файла %s: %w", storedName, err)
	}
	return info.ModTime(), nil
}

// List возвращает stored names всех файлов в хранилище.
// Дерево директорий перечитывается при каждом вызове, кэширования нет.
// Служебные (скрытые) и temp файлы пропускаются.
func (bs *BlobStore) List() ([]string, error) {
	var names []string

	err := filepath.WalkDir(bs.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
			return nil
		}

		rel, relErr := filepath.Rel(bs.rootDir, path)
		if relErr != nil {
			return relErr
		}
		names = append(names, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода хранилища: %w", err)
	}

	return names, nil
}

// PruneEmptyDirs рекурсивно удаляет пустые поддиректории хранилища
// снизу вверх. Корневая директория не удаляется.
// Возвращает количество удалённых директорий.
func (bs *BlobStore) PruneEmptyDirs() (int, error) {
	return pruneEmptyDirs(bs.rootDir, false)
}

// pruneEmptyDirs обходит dir снизу вверх и удаляет пустые директории.
// removeSelf управляет удалением самой dir.
func pruneEmptyDirs(dir string, removeSelf bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	pruned := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := pruneEmptyDirs(filepath.Join(dir, entry.Name()), true)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}

	if !removeSelf {
		return pruned, nil
	}

	// Перечитываем: дочерние директории могли быть удалены
	entries, err = os.ReadDir(dir)
	if err != nil {
		return pruned, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			return pruned, fmt.Errorf("ошибка удаления пустой директории %s: %w", dir, err)
		}
		pruned++
	}

	return pruned, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (bs *BlobStore) FullPath(storedName string) string {
	return filepath.Join(bs.rootDir, storedName)
}

// RootDir возвращает путь к корневой директории хранилища.
func (bs *BlobStore) RootDir() string {
	return bs.rootDir
}
