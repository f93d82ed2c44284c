// system.go — служебные endpoints: статистика и ручной запуск
// обслуживания хранилища.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/bigkaa/fileshare/internal/api/errors"
	"github.com/bigkaa/fileshare/internal/service"
)

// SystemHandler — обработчик служебных endpoints.
type SystemHandler struct {
	share      *service.ShareService
	reaper     *service.Reaper
	reconciler *service.Reconciler
}

// NewSystemHandler создаёт обработчик служебных endpoints.
func NewSystemHandler(share *service.ShareService, reaper *service.Reaper, reconciler *service.Reconciler) *SystemHandler {
	return &SystemHandler{
		share:      share,
		reaper:     reaper,
		reconciler: reconciler,
	}
}

// Stats обрабатывает GET /api/system/stats.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.share.Stats(r.Context())
	if err != nil {
		errors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_files":      stats.TotalFiles,
		"total_size_bytes": stats.TotalSizeBytes,
		"total_size_human": humanize.Bytes(uint64(stats.TotalSizeBytes)),
	})
}

// Cleanup обрабатывает POST /api/system/cleanup.
// Внеочередной проход очистки истёкших файлов, синхронный.
func (h *SystemHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.reaper.RunOnce(r.Context())
	if err != nil {
		errors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_count": result.DeletedCount,
		"errors":        result.Errors,
		"duration":      result.Duration.String(),
	})
}

// Optimize обрабатывает POST /api/system/optimize.
// Внеочередной проход сверки: удаление сирот и пустых директорий.
// Если сверка уже идёт — 409, параллельные обходы диска не нужны.
func (h *SystemHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		if stderrors.Is(err, service.ErrReconcileInProgress) {
			errors.ReconcileInProgress(w, "Сверка хранилища уже выполняется")
			return
		}
		errors.FromDomain(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cleaned_files": result.CleanedFiles,
		"freed_bytes":   result.FreedBytes,
		"freed_space":   humanize.Bytes(uint64(result.FreedBytes)),
		"pruned_dirs":   result.PrunedDirs,
		"duration":      result.Duration.String(),
	})
}
