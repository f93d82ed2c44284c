// Пакет model — доменные модели файлообменника.
// FileInfo — единственная персистентная сущность: запись о загруженном
// файле с ограниченным сроком хранения.
package model

import (
	"time"
)

// FileInfo — метаданные загруженного файла.
// Создаётся один раз при загрузке; после создания изменяется только
// счётчик скачиваний. Удаляется либо явно, либо Reaper'ом по истечении
// срока хранения.
type FileInfo struct {
	// FileKey — уникальный ключ файла (128 бит случайности, hex без разделителей).
	// Выдаётся сервером, неизменяемый.
	FileKey string `json:"file_key"`

	// OriginalName — оригинальное имя файла при загрузке.
	// Может содержать произвольные символы; используется только для
	// отображения и заголовка Content-Disposition, никогда для путей.
	OriginalName string `json:"original_name"`

	// StoredName — имя файла на диске: {file_key}{расширение}.
	// Адресный ключ BlobStore, неизменяемый.
	StoredName string `json:"stored_name"`

	// Size — размер файла в байтах, фиксируется при загрузке.
	Size int64 `json:"size"`

	// ContentType — MIME-тип из дескриптора загрузки (справочный).
	ContentType string `json:"content_type"`

	// StoragePath — локатор файла относительно корня хранилища.
	// Производный от StoredName, не возвращается в публичных списках.
	StoragePath string `json:"storage_path"`

	// UploadTime — дата и время загрузки (UTC), неизменяемое.
	UploadTime time.Time `json:"upload_time"`

	// ExpireTime — UploadTime + окно хранения, неизменяемое.
	ExpireTime time.Time `json:"expire_time"`

	// DownloadCount — количество скачиваний. Приблизительный счётчик:
	// конкурентные инкременты могут теряться, монотонность сохраняется.
	DownloadCount int `json:"download_count"`

	// OwnerToken — сетевая идентичность загрузившего (IP).
	// Используется только для scope листинга, не для авторизации.
	OwnerToken string `json:"owner_token"`
}

// IsExpired проверяет, истёк ли срок хранения файла на момент now.
func (f *FileInfo) IsExpired(now time.Time) bool {
	return now.After(f.ExpireTime)
}

// PublicFileInfo — публичная проекция FileInfo для списка недавних файлов.
// Не содержит owner token и путь хранения.
type PublicFileInfo struct {
	FileKey       string    `json:"file_key"`
	OriginalName  string    `json:"original_name"`
	Size          int64     `json:"size"`
	ContentType   string    `json:"content_type"`
	UploadTime    time.Time `json:"upload_time"`
	ExpireTime    time.Time `json:"expire_time"`
	DownloadCount int       `json:"download_count"`
}

// Public возвращает публичную проекцию записи.
func (f *FileInfo) Public() PublicFileInfo {
	return PublicFileInfo{
		FileKey:       f.FileKey,
		OriginalName:  f.OriginalName,
		Size:          f.Size,
		ContentType:   f.ContentType,
		UploadTime:    f.UploadTime,
		ExpireTime:    f.ExpireTime,
		DownloadCount: f.DownloadCount,
	}
}
