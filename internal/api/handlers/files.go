// files.go — HTTP handlers файловых операций.
// Upload, Get info, Download, Delete, списки "мои" и "недавние".
package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	share         *service.ShareService
	maxUploadSize int64
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(share *service.ShareService, maxUploadSize int64) *FilesHandler {
	return &FilesHandler{
		share:         share,
		maxUploadSize: maxUploadSize,
	}
}

// multipartMemoryBuffer — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemoryBuffer = 32 << 20 // 32 MB

// Upload обрабатывает POST /api/files/upload.
// Multipart form: file (обязательно).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит тела запроса: лимит файла + запас на заголовки формы
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartMemoryBuffer)

	if err := r.ParseMultipartForm(multipartMemoryBuffer); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec, uploadErr := h.share.Upload(r.Context(), service.UploadParams{
		Reader:       file,
		OriginalName: header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
		OwnerToken:   clientIP(r),
	})
	if uploadErr != nil {
		errors.FromDomain(w, uploadErr)
		return
	}

	writeJSON(w, http.StatusCreated, rec.Public())
}

// GetInfo обрабатывает GET /api/files/{key}.
func (h *FilesHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rec, err := h.share.GetInfo(r.Context(), key)
	if err != nil {
		errors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec.Public())
}

// Download обрабатывает GET /api/files/{key}/download.
// Отдаёт файл с оригинальным именем в Content-Disposition.
// http.ServeContent поверх *os.File даёт Range requests бесплатно.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	res, err := h.share.Download(r.Context(), key)
	if err != nil {
		errors.FromDomain(w, err)
		return
	}
	defer res.File.Close()

	rec := res.Record
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": rec.OriginalName}))

	http.ServeContent(w, r, rec.OriginalName, rec.UploadTime, res.File)
}

// Delete обрабатывает DELETE /api/files/{key}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	deleted, err := h.share.Delete(r.Context(), key)
	if err != nil {
		errors.FromDomain(w, err)
		return
	}
	if !deleted {
		errors.NotFound(w, fmt.Sprintf("Файл %s не найден", key))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMy обрабатывает GET /api/files/my.
// Scope — сетевая идентичность клиента, новые первыми.
func (h *FilesHandler) ListMy(w http.ResponseWriter, r *http.Request) {
	records, err := h.share.ListByOwner(r.Context(), clientIP(r))
	if err != nil {
		errors.FromDomain(w, err)
		return
	}

	items := make([]any, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.Public())
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// ListRecent обрабатывает GET /api/files/recent.
// Публичный список последних загрузок без owner token и путей.
func (h *FilesHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	records, err := h.share.ListRecent(r.Context())
	if err != nil {
		errors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": records, "total": len(records)})
}

// clientIP возвращает сетевую идентичность клиента: первый адрес из
// X-Forwarded-For (если сервис стоит за прокси), иначе RemoteAddr без порта.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON — запись JSON-ответа с указанным статус-кодом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
