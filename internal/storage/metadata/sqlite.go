// sqlite.go — адаптер Store на встраиваемой файловой БД SQLite.
//
// Метаданные переживают рестарт процесса без внешней СУБД.
// Времена хранятся как Unix-наносекунды (INTEGER): сравнения точны
// и не зависят от строкового формата дат драйвера.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// sqliteSchema — схема таблицы file_info.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS file_info (
	file_key       TEXT PRIMARY KEY,
	original_name  TEXT NOT NULL,
	stored_name    TEXT NOT NULL,
	size           INTEGER NOT NULL,
	content_type   TEXT NOT NULL DEFAULT '',
	storage_path   TEXT NOT NULL,
	upload_time    INTEGER NOT NULL,
	expire_time    INTEGER NOT NULL,
	download_count INTEGER NOT NULL DEFAULT 0,
	owner_token    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_file_info_expire_time ON file_info (expire_time);
CREATE INDEX IF NOT EXISTS idx_file_info_stored_name ON file_info (stored_name);
CREATE INDEX IF NOT EXISTS idx_file_info_owner_token ON file_info (owner_token);
`

// sqliteColumns — список столбцов для SELECT-запросов.
const sqliteColumns = `file_key, original_name, stored_name, size, content_type,
	storage_path, upload_time, expire_time, download_count, owner_token`

// SQLiteStore — реализация Store на SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) файл БД по указанному пути
// и применяет схему. busy_timeout сглаживает конкурентный доступ
// запросов и фоновых сверок.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite БД %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite БД %s: %w", path, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка применения схемы SQLite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert сохраняет новую запись.
func (s *SQLiteStore) Insert(ctx context.Context, rec *model.FileInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_info (`+sqliteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FileKey, rec.OriginalName, rec.StoredName, rec.Size, rec.ContentType,
		rec.StoragePath, rec.UploadTime.UnixNano(), rec.ExpireTime.UnixNano(),
		rec.DownloadCount, rec.OwnerToken,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи: %w", err)
	}
	return nil
}

// FindByKey возвращает запись по ключу или ErrNotFound.
func (s *SQLiteStore) FindByKey(ctx context.Context, fileKey string) (*model.FileInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM file_info WHERE file_key = ?`, fileKey)
	return scanSQLiteRow(row)
}

// FindByStoredName возвращает запись по имени хранения или ErrNotFound.
func (s *SQLiteStore) FindByStoredName(ctx context.Context, storedName string) (*model.FileInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM file_info WHERE stored_name = ?`, storedName)
	return scanSQLiteRow(row)
}

// FindExpiredBefore возвращает записи с истёкшим сроком хранения.
func (s *SQLiteStore) FindExpiredBefore(ctx context.Context, moment time.Time) ([]*model.FileInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM file_info WHERE expire_time < ?`, moment.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших записей: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

// FindByOwner возвращает записи владельца, новые первыми.
func (s *SQLiteStore) FindByOwner(ctx context.Context, ownerToken string) ([]*model.FileInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM file_info
		 WHERE owner_token = ? ORDER BY upload_time DESC`, ownerToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска записей владельца: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

// FindRecent возвращает n последних записей, новые первыми.
func (s *SQLiteStore) FindRecent(ctx context.Context, n int) ([]*model.FileInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM file_info
		 ORDER BY upload_time DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска последних записей: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

// Count возвращает количество записей.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_info`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}

// TotalSize возвращает суммарный размер файлов в байтах.
func (s *SQLiteStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM file_info`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта суммарного размера: %w", err)
	}
	return total, nil
}

// Delete удаляет запись по ключу. Отсутствующая запись — no-op.
func (s *SQLiteStore) Delete(ctx context.Context, fileKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_info WHERE file_key = ?`, fileKey)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

// IncrementDownloadCount персистирует счётчик read-modify-write:
// записывается rec.DownloadCount + 1 (политика приблизительного счётчика).
func (s *SQLiteStore) IncrementDownloadCount(ctx context.Context, rec *model.FileInfo) error {
	rec.DownloadCount++
	_, err := s.db.ExecContext(ctx,
		`UPDATE file_info SET download_count = ? WHERE file_key = ?`,
		rec.DownloadCount, rec.FileKey)
	if err != nil {
		return fmt.Errorf("ошибка обновления счётчика скачиваний: %w", err)
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanTarget — общий интерфейс sql.Row и sql.Rows для сканирования.
type scanTarget interface {
	Scan(dest ...any) error
}

// scanSQLiteRecord читает одну запись из строки результата.
func scanSQLiteRecord(row scanTarget) (*model.FileInfo, error) {
	rec := &model.FileInfo{}
	var uploadNano, expireNano int64

	err := row.Scan(
		&rec.FileKey, &rec.OriginalName, &rec.StoredName, &rec.Size, &rec.ContentType,
		&rec.StoragePath, &uploadNano, &expireNano, &rec.DownloadCount, &rec.OwnerToken,
	)
	if err != nil {
		return nil, err
	}

	rec.UploadTime = time.Unix(0, uploadNano).UTC()
	rec.ExpireTime = time.Unix(0, expireNano).UTC()
	return rec, nil
}

// scanSQLiteRow читает одну запись, отображая sql.ErrNoRows в ErrNotFound.
func scanSQLiteRow(row *sql.Row) (*model.FileInfo, error) {
	rec, err := scanSQLiteRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения записи: %w", err)
	}
	return rec, nil
}

// scanSQLiteRows читает все записи результата.
func scanSQLiteRows(rows *sql.Rows) ([]*model.FileInfo, error) {
	var result []*model.FileInfo
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода результата: %w", err)
	}
	return result, nil
}
