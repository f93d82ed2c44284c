// Пакет validate — проверка дескриптора загрузки по политике сервиса.
// Чистая проверка без побочных эффектов: при отказе загрузка не оставляет
// следов ни в одном из хранилищ.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bigkaa/fileshare/internal/fserr"
)

// Descriptor — кандидат на загрузку.
type Descriptor struct {
	// OriginalName — имя файла, заявленное клиентом.
	OriginalName string
	// Size — заявленный размер в байтах.
	Size int64
	// ContentType — заявленный MIME-тип (справочный, не проверяется).
	ContentType string
}

// Validator — проверка дескрипторов по настроенной политике.
type Validator struct {
	maxSize int64
	// allowed — точное множество расширений с точкой в нижнем регистре.
	allowed map[string]bool
}

// New создаёт Validator с лимитом размера и allow-list расширений.
// Расширения нормализуются к нижнему регистру; сопоставление
// регистронезависимое, без wildcard и MIME-sniffing.
func New(maxSize int64, allowedExtensions []string) *Validator {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		allowed[ext] = true
	}
	return &Validator{maxSize: maxSize, allowed: allowed}
}

// Validate проверяет дескриптор. Порядок проверок фиксирован:
// пустой файл → размер → имя → тип.
func (v *Validator) Validate(d Descriptor) error {
	if d.Size == 0 {
		return fserr.New(fserr.EmptyFile, "файл не может быть пустым")
	}

	if d.Size > v.maxSize {
		return fserr.New(fserr.FileTooLarge,
			fmt.Sprintf("размер файла %d байт превышает лимит %d байт", d.Size, v.maxSize))
	}

	if strings.TrimSpace(d.OriginalName) == "" {
		return fserr.New(fserr.InvalidFileName, "имя файла не может быть пустым")
	}

	ext := strings.ToLower(filepath.Ext(d.OriginalName))
	if !v.allowed[ext] {
		return fserr.New(fserr.InvalidFileType,
			fmt.Sprintf("неподдерживаемый тип файла: %s", ext))
	}

	return nil
}
