// Пакет fserr — типизированные ошибки ядра файлообменника.
// Ошибки валидации и поиска возвращаются как значения с машиночитаемым
// видом (Kind); слой HTTP отображает вид в статус-код и код ответа.
// Ядро никогда не использует panic для управления потоком.
package fserr

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки ядра.
type Kind string

const (
	// EmptyFile — пустой дескриптор загрузки.
	EmptyFile Kind = "EMPTY_FILE"
	// FileTooLarge — размер превышает лимит загрузки.
	FileTooLarge Kind = "FILE_TOO_LARGE"
	// InvalidFileName — пустое или пробельное имя файла.
	InvalidFileName Kind = "INVALID_FILE_NAME"
	// InvalidFileType — расширение вне allow-list.
	InvalidFileType Kind = "INVALID_FILE_TYPE"
	// NotFound — ключ никогда не существовал или запись удалена.
	NotFound Kind = "FILE_NOT_FOUND"
	// Expired — запись существовала, окно хранения истекло.
	// Отдельный терминальный сигнал "Gone", не NotFound.
	Expired Kind = "FILE_EXPIRED"
	// NotReadable — метаданные есть, файл на диске отсутствует или нечитаем.
	// Сигнал расхождения хранилищ, устраняемого reconciliation.
	NotReadable Kind = "FILE_NOT_READABLE"
	// UploadFailed — инфраструктурная ошибка записи при загрузке.
	UploadFailed Kind = "UPLOAD_FAILED"
	// SystemError — неклассифицированная ошибка.
	SystemError Kind = "SYSTEM_ERROR"
)

// Error — ошибка ядра с видом и сообщением.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap возвращает обёрнутую ошибку для errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку указанного вида.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap создаёт ошибку указанного вида, оборачивая причину.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf возвращает вид ошибки или SystemError для посторонних ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return SystemError
}

// IsKind проверяет, что ошибка имеет указанный вид.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
