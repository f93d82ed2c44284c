// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/fileshare/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// MetadataPinger — проверка доступности хранилища метаданных.
type MetadataPinger interface {
	Count(ctx context.Context) (int64, error)
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// storageDir — корневая директория хранения (для проверки FS)
	storageDir string
	// meta — хранилище метаданных для проверки готовности
	meta MetadataPinger
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(storageDir string, meta MetadataPinger) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		storageDir: storageDir,
		meta:       meta,
	}
}

// Live обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "fileshare",
	})
}

// Ready обрабатывает GET /health/ready.
// Проверяет: файловая система доступна на запись, метаданные отвечают.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	metaCheck := h.checkMetadata(r.Context())
	if metaCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "fileshare",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"metadata":   metaCheck,
		},
	})
}

// checkFilesystem проверяет доступность директории хранения на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	testFile := filepath.Join(h.storageDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория хранения недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}

// checkMetadata проверяет, что хранилище метаданных отвечает на запросы.
func (h *HealthHandler) checkMetadata(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := h.meta.Count(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Хранилище метаданных не отвечает: " + err.Error(),
		}
	}

	return map[string]any{
		"status": "ok",
	}
}
