// Пакет errors — HTTP-представление ошибок файлообменника.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib осознанный, пакет используется только в api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/fileshare/internal/fserr"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// FromDomain отображает ошибку ядра в HTTP-ответ.
// Вид ошибки (Kind) становится машиночитаемым кодом, статус-код
// выбирается по виду. Expired отображается в 410 Gone: ресурс
// существовал и безвозвратно исчез, это не 404.
func FromDomain(w http.ResponseWriter, err error) {
	var e *fserr.Error
	message := "внутренняя ошибка сервера"
	kind := fserr.KindOf(err)
	if stderrors.As(err, &e) {
		message = e.Message
	}

	WriteError(w, statusCodeFor(kind), string(kind), message)
}

// statusCodeFor возвращает HTTP статус-код для вида ошибки ядра.
func statusCodeFor(kind fserr.Kind) int {
	switch kind {
	case fserr.EmptyFile, fserr.InvalidFileName, fserr.InvalidFileType:
		return http.StatusBadRequest
	case fserr.FileTooLarge:
		return http.StatusRequestEntityTooLarge
	case fserr.NotFound:
		return http.StatusNotFound
	case fserr.Expired:
		return http.StatusGone
	case fserr.NotReadable:
		return http.StatusNotFound
	case fserr.UploadFailed, fserr.SystemError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, string(fserr.NotFound), message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, string(fserr.SystemError), message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "RECONCILE_IN_PROGRESS", message)
}
