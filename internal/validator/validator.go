// Package validator классифицирует загруженные файлы до обработки.
// Тип файла определяется по содержимому (сигнатурам), а не по имени или
// заявленному клиентом Content-Type.
package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sol1corejz/imgify/internal/models"
)

// Причины отклонения файла.
const (
	ReasonUnsupportedType = "unsupported_type"
	ReasonTooLarge        = "too_large"
	ReasonEmptyFile       = "empty_file"
)

// ErrNoFiles — пустой пакет.
var ErrNoFiles = errors.New("no_files_provided")

// mimeToFormat — разрешённые MIME-типы и соответствующие им имена форматов.
var mimeToFormat = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

// Verdict — результат проверки одного файла.
type Verdict struct {
	Valid bool
	// Format — формат, определённый по содержимому, например "png".
	Format string
	// MIME — обнаруженный MIME-тип (заполняется и для отклонённых файлов).
	MIME   string
	Reason string
	Detail string
}

// Validator проверяет тип и размер файлов.
type Validator struct {
	maxFileSize int64
	allowed     map[string]string
}

// New создаёт валидатор. formats ограничивает список разрешённых форматов;
// пустой список разрешает все поддерживаемые.
func New(maxFileSize int64, formats ...string) *Validator {
	allowed := make(map[string]string, len(mimeToFormat))
	for mime, format := range mimeToFormat {
		if len(formats) == 0 || slices.Contains(formats, format) {
			allowed[mime] = format
		}
	}
	return &Validator{maxFileSize: maxFileSize, allowed: allowed}
}

// CheckBatch возвращает ErrNoFiles для пустого пакета.
func (v *Validator) CheckBatch(items []models.UploadItem) error {
	if len(items) == 0 {
		return ErrNoFiles
	}
	return nil
}

// Classify проверяет каждый файл независимо и возвращает вердикты в порядке входа.
func (v *Validator) Classify(items []models.UploadItem) []Verdict {
	verdicts := make([]Verdict, len(items))
	for i, item := range items {
		verdicts[i] = v.Check(item)
	}
	return verdicts
}

// Check проверяет один файл: сначала тип по содержимому, затем размер.
func (v *Validator) Check(item models.UploadItem) Verdict {
	if len(item.Data) == 0 {
		return Verdict{Reason: ReasonEmptyFile, Detail: "file is empty"}
	}

	mime := mimetype.Detect(item.Data)
	format, ok := v.allowed[baseMIME(mime)]
	if !ok {
		return Verdict{
			MIME:   mime.String(),
			Reason: ReasonUnsupportedType,
			Detail: fmt.Sprintf("detected content type %s is not a supported image", mime.String()),
		}
	}

	if v.maxFileSize > 0 && item.Size() > v.maxFileSize {
		return Verdict{
			Format: format,
			MIME:   mime.String(),
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("file size %d bytes exceeds limit of %d bytes", item.Size(), v.maxFileSize),
		}
	}

	return Verdict{Valid: true, Format: format, MIME: mime.String()}
}

// SupportedInput возвращает разрешённые входные форматы.
func (v *Validator) SupportedInput() []string {
	out := make([]string, 0, len(v.allowed))
	for _, mime := range []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff"} {
		if format, ok := v.allowed[mime]; ok {
			out = append(out, format)
		}
	}
	return out
}

// baseMIME ищет разрешённый тип среди обнаруженного и его родителей
// (без параметров вида "; charset=...").
func baseMIME(m *mimetype.MIME) string {
	for mm := m; mm != nil; mm = mm.Parent() {
		if _, ok := mimeToFormat[mimeOnly(mm.String())]; ok {
			return mimeOnly(mm.String())
		}
	}
	return mimeOnly(m.String())
}

func mimeOnly(s string) string {
	base, _, _ := strings.Cut(s, ";")
	return base
}
