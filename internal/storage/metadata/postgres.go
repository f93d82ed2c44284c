// postgres.go — адаптер Store на PostgreSQL через pgx.
// Чистый SQL без ORM. Счётчик скачиваний обновляется атомарным
// инкрементом на стороне БД — точный вариант счётчика на границе
// MetadataStore, монотонность сохраняется.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/fileshare/internal/domain/model"
)

// pgColumns — список столбцов таблицы file_info для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const pgColumns = `file_key, original_name, stored_name, size, content_type,
	storage_path, upload_time, expire_time, download_count, owner_token`

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать адаптер как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore — реализация Store на PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore создаёт адаптер поверх готового подключения.
// Применение миграций — обязанность вызывающего кода (internal/database).
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert сохраняет новую запись.
func (s *PostgresStore) Insert(ctx context.Context, rec *model.FileInfo) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO file_info (`+pgColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.FileKey, rec.OriginalName, rec.StoredName, rec.Size, rec.ContentType,
		rec.StoragePath, rec.UploadTime, rec.ExpireTime, rec.DownloadCount, rec.OwnerToken,
	)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи: %w", err)
	}
	return nil
}

// FindByKey возвращает запись по ключу или ErrNotFound.
func (s *PostgresStore) FindByKey(ctx context.Context, fileKey string) (*model.FileInfo, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+pgColumns+` FROM file_info WHERE file_key = $1`, fileKey)
	return scanPGRow(row)
}

// FindByStoredName возвращает запись по имени хранения или ErrNotFound.
func (s *PostgresStore) FindByStoredName(ctx context.Context, storedName string) (*model.FileInfo, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+pgColumns+` FROM file_info WHERE stored_name = $1`, storedName)
	return scanPGRow(row)
}

// FindExpiredBefore возвращает записи с истёкшим сроком хранения.
func (s *PostgresStore) FindExpiredBefore(ctx context.Context, moment time.Time) ([]*model.FileInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgColumns+` FROM file_info WHERE expire_time < $1`, moment)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших записей: %w", err)
	}
	defer rows.Close()
	return scanPGRows(rows)
}

// FindByOwner возвращает записи владельца, новые первыми.
func (s *PostgresStore) FindByOwner(ctx context.Context, ownerToken string) ([]*model.FileInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgColumns+` FROM file_info
		 WHERE owner_token = $1 ORDER BY upload_time DESC`, ownerToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска записей владельца: %w", err)
	}
	defer rows.Close()
	return scanPGRows(rows)
}

// FindRecent возвращает n последних записей, новые первыми.
func (s *PostgresStore) FindRecent(ctx context.Context, n int) ([]*model.FileInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgColumns+` FROM file_info
		 ORDER BY upload_time DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска последних записей: %w", err)
	}
	defer rows.Close()
	return scanPGRows(rows)
}

// Count возвращает количество записей.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM file_info`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return count, nil
}

// TotalSize возвращает суммарный размер файлов в байтах.
func (s *PostgresStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM file_info`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта суммарного размера: %w", err)
	}
	return total, nil
}

// Delete удаляет запись по ключу. Отсутствующая запись — no-op.
func (s *PostgresStore) Delete(ctx context.Context, fileKey string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM file_info WHERE file_key = $1`, fileKey)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

// IncrementDownloadCount атомарно инкрементирует счётчик на стороне БД
// и читает новое значение в rec.DownloadCount.
func (s *PostgresStore) IncrementDownloadCount(ctx context.Context, rec *model.FileInfo) error {
	err := s.db.QueryRow(ctx,
		`UPDATE file_info SET download_count = download_count + 1
		 WHERE file_key = $1 RETURNING download_count`,
		rec.FileKey).Scan(&rec.DownloadCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления счётчика скачиваний: %w", err)
	}
	return nil
}

// Close — no-op: жизненным циклом пула владеет internal/database.
func (s *PostgresStore) Close() error {
	return nil
}

// scanPGRecord читает одну запись из строки результата.
func scanPGRecord(row pgx.Row) (*model.FileInfo, error) {
	rec := &model.FileInfo{}
	err := row.Scan(
		&rec.FileKey, &rec.OriginalName, &rec.StoredName, &rec.Size, &rec.ContentType,
		&rec.StoragePath, &rec.UploadTime, &rec.ExpireTime, &rec.DownloadCount, &rec.OwnerToken,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// scanPGRow читает одну запись, отображая pgx.ErrNoRows в ErrNotFound.
func scanPGRow(row pgx.Row) (*model.FileInfo, error) {
	rec, err := scanPGRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения записи: %w", err)
	}
	return rec, nil
}

// scanPGRows читает все записи результата.
func scanPGRows(rows pgx.Rows) ([]*model.FileInfo, error) {
	var result []*model.FileInfo
	for rows.Next() {
		rec, err := scanPGRecord(rows)
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
