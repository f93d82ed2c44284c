package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/fileshare/internal/config"
	"github.com/bigkaa/fileshare/internal/service"
	"github.com/bigkaa/fileshare/internal/storage/blobstore"
	"github.com/bigkaa/fileshare/internal/storage/metadata"
)

// newTestRouter собирает chi-роутер с файловыми handlers поверх
// temp-хранилища и in-memory метаданных.
func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания BlobStore: %v", err)
	}
	meta := metadata.NewMemoryStore()
	cfg := &config.Config{
		MaxUploadSize:     1024 * 1024,
		AllowedExtensions: []string{".txt", ".jpg"},
		RetentionWindow:   24 * time.Hour,
		RecentLimit:       10,
		CacheSize:         16,
		CacheTTL:          time.Minute,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	share := service.NewShareService(cfg, blobs, meta, logger)
	files := NewFilesHandler(share, cfg.MaxUploadSize)

	router := chi.NewRouter()
	router.Route("/api/files", func(r chi.Router) {
		r.Post("/upload", files.Upload)
		r.Get("/my", files.ListMy)
		r.Get("/recent", files.ListRecent)
		r.Get("/{key}", files.GetInfo)
		r.Get("/{key}/download", files.Download)
		r.Delete("/{key}", files.Delete)
	})
	return router
}

// multipartUpload собирает multipart-запрос с одним файлом.
func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Ошибка создания form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Ошибка записи form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.RemoteAddr = "10.0.0.1:54321"
	return req
}

// uploadedKey загружает файл и возвращает выданный ключ.
func uploadedKey(t *testing.T, router *chi.Mux, filename, content string) string {
	t.Helper()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartUpload(t, filename, content))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Загрузка: хотели 201, получили %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		FileKey string `json:"file_key"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if len(resp.FileKey) != 32 {
		t.Fatalf("Некорректный ключ в ответе: %q", resp.FileKey)
	}
	return resp.FileKey
}

func TestUploadEndpoint_Roundtrip(t *testing.T) {
	router := newTestRouter(t)

	key := uploadedKey(t, router, "заметка.txt", "привет")

	// Метаданные доступны по ключу
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/"+key, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GetInfo: хотели 200, получили %d", rr.Code)
	}

	var info struct {
		OriginalName string `json:"original_name"`
		Size         int64  `json:"size"`
		OwnerToken   string `json:"owner_token"`
		StoragePath  string `json:"storage_path"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if info.OriginalName != "заметка.txt" {
		t.Errorf("OriginalName: получили %s", info.OriginalName)
	}
	// Публичная проекция не раскрывает владельца и путь хранения
	if info.OwnerToken != "" || info.StoragePath != "" {
		t.Errorf("Публичный ответ раскрыл внутренние поля: %s", rr.Body.String())
	}
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("comment", "без файла")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Хотели 400, получили %d", rr.Code)
	}
}

func TestUploadEndpoint_DisallowedExtension(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartUpload(t, "script.exe", "MZ"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Хотели 400, получили %d", rr.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Error.Code != "INVALID_FILE_TYPE" {
		t.Errorf("Код ошибки: хотели INVALID_FILE_TYPE, получили %s", resp.Error.Code)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	router := newTestRouter(t)

	key := uploadedKey(t, router, "данные.txt", "содержимое файла")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/"+key+"/download", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Скачивание: хотели 200, получили %d", rr.Code)
	}
	if got := rr.Body.String(); got != "содержимое файла" {
		t.Errorf("Тело ответа: получили %q", got)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd == "" {
		t.Error("Заголовок Content-Disposition отсутствует")
	}
}

func TestDownloadEndpoint_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/api/files/00000000000000000000000000000000/download", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Хотели 404, получили %d", rr.Code)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	router := newTestRouter(t)

	key := uploadedKey(t, router, "удалить.txt", "данные")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/files/"+key, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Удаление: хотели 204, получили %d", rr.Code)
	}

	// Повторное удаление — 404
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/files/"+key, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Повторное удаление: хотели 404, получили %d", rr.Code)
	}
}

func TestListMyEndpoint_ScopedByClient(t *testing.T) {
	router := newTestRouter(t)

	uploadedKey(t, router, "мой.txt", "aaa")

	// Запрос от другого клиента
	req := httptest.NewRequest(http.MethodGet, "/api/files/my", nil)
	req.RemoteAddr = "10.0.0.99:12345"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("ListMy: хотели 200, получили %d", rr.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Total != 0 {
		t.Errorf("Чужой клиент увидел %d файлов", resp.Total)
	}

	// Запрос от загрузившего
	req = httptest.NewRequest(http.MethodGet, "/api/files/my", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Владелец увидел %d файлов, хотели 1", resp.Total)
	}
}

func TestListRecentEndpoint(t *testing.T) {
	router := newTestRouter(t)

	uploadedKey(t, router, "недавний.txt", "данные")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/recent", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("ListRecent: хотели 200, получили %d", rr.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Total: хотели 1, получили %d", resp.Total)
	}
}
