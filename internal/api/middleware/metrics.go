// metrics.go — Prometheus HTTP метрики файлообменника.
// Регистрирует fs_http_requests_total и fs_http_request_duration_seconds.
// Бизнес-метрики (fs_operations_total и др.) регистрируются и обновляются
// в сервисном слое.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fs_http_requests_total",
			Help: "Общее количество HTTP-запросов к файлообменнику",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к файлообменнику в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик: ключ файла заменяется
			// на {key}, иначе кардинальность растёт с каждым файлом
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// filesPrefix — префикс файловых endpoints с ключом в пути.
const filesPrefix = "/api/files/"

// normalizePath заменяет ключ файла в пути на {key}.
// /api/files/a1b2c3... → /api/files/{key}
// /api/files/a1b2c3.../download → /api/files/{key}/download
func normalizePath(path string) string {
	if !strings.HasPrefix(path, filesPrefix) {
		return path
	}

	rest := path[len(filesPrefix):]
	switch rest {
	case "upload", "my", "recent":
		return path
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		if isFileKey(rest) {
			return filesPrefix + "{key}"
		}
		return path
	}
	if isFileKey(rest[:slash]) {
		return filesPrefix + "{key}" + rest[slash:]
	}
	return path
}

// isFileKey проверяет, что сегмент — это 32 hex-символа ключа файла.
func isFileKey(segment string) bool {
	if len(segment) != 32 {
		return false
	}
	for _, c := range segment {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
