// Пакет keygen — генерация ключей файлов и производных имён хранения.
//
// Ключ — UUID v4 без дефисов: 128 бит случайности, 32 hex-символа.
// Вероятность коллизии пренебрежимо мала на всём сроке жизни хранилища,
// поэтому конкурентные загрузки никогда не конкурируют за один путь.
package keygen

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewKey возвращает новый ключ файла: 32 hex-символа без разделителей.
func NewKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// StoredName возвращает имя файла для хранения на диске:
// ключ + расширение оригинального имени. Расширение берётся как есть,
// регистр сохраняется для round-trip content negotiation.
func StoredName(key, originalName string) string {
	return key + filepath.Ext(originalName)
}
