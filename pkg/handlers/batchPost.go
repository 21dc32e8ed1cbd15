package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/batch"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/transform"
)

// Имена полей multipart-формы с файлами. Браузерная форма присылает "images[]".
var uploadFields = []string{"images[]", "images"}

// HandleOptimize обрабатывает пакетную оптимизацию изображений.
//
// Поддерживаемые HTTP-методы: POST
// Тело запроса: multipart/form-data с файлами в поле `images[]` (или `images`),
// необязательными `quality` (0–100, по умолчанию 85) и `include_data`.
// Ответ:
//   - 200 OK: JSON с результатами по каждому файлу в порядке загрузки и снимком лимитов.
//   - 401 Unauthorized: недействительный bearer-токен.
//   - 413 Request Entity Too Large: тело запроса превышает допустимый размер.
//   - 422 Unprocessable Entity: нет файлов, некорректные параметры или все файлы отклонены.
//   - 429 Too Many Requests: превышен размер пакета или квота клиента.
func (h *Handlers) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, transform.OpOptimize)
}

// HandleConvert обрабатывает пакетную конвертацию изображений.
//
// Поддерживаемые HTTP-методы: POST
// Тело запроса: как у HandleOptimize, плюс обязательное поле `format`
// (jpeg, jpg, png, gif, bmp, tiff); `quality` по умолчанию 90.
// Ответ: как у HandleOptimize; результаты дополнительно содержат `original_format`.
func (h *Handlers) HandleConvert(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, transform.OpConvert)
}

func (h *Handlers) handleBatch(w http.ResponseWriter, r *http.Request, op transform.Op) {
	id := identity(r)
	req, items, err := h.parseBatch(w, r, op, h.bodyLimit(id))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.deps.Batch.Handle(r.Context(), items, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseBatch разбирает multipart-форму не длиннее maxBody байт. Параметры
// проверяются раньше лимитов, поэтому некорректный запрос не расходует квоту.
func (h *Handlers) parseBatch(w http.ResponseWriter, r *http.Request, op transform.Op, maxBody int64) (batch.Request, []models.UploadItem, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return batch.Request{}, nil, apperrors.TooLarge(maxErr.Limit)
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return batch.Request{}, nil, apperrors.Validation("invalid_request", "Request must be multipart/form-data.")
		}
		return batch.Request{}, nil, apperrors.Validation("invalid_request", "Malformed multipart body.")
	}
	defer r.MultipartForm.RemoveAll()

	req := batch.Request{Request: transform.Request{Op: op}}

	defaultQuality := h.deps.OptimizeQuality
	if op == transform.OpConvert {
		defaultQuality = h.deps.ConvertQuality
	}
	quality, err := parseQuality(r.FormValue("quality"), defaultQuality)
	if err != nil {
		return batch.Request{}, nil, err
	}
	req.Quality = quality

	if op == transform.OpConvert {
		format := transform.Normalize(r.FormValue("format"))
		if format == "" {
			return batch.Request{}, nil, apperrors.Validation("invalid_request", "Target format is required.",
				models.FieldError{Field: "format", Reason: "required"})
		}
		if !transform.CanEncode(format) {
			return batch.Request{}, nil, apperrors.Validation(transform.CodeUnsupportedFormat,
				fmt.Sprintf("Unsupported target format. Supported: %s.", strings.Join(transform.SupportedOutput(), ", ")),
				models.FieldError{Field: "format", Reason: transform.CodeUnsupportedFormat})
		}
		req.Format = format
	}

	req.IncludeData, _ = strconv.ParseBool(r.FormValue("include_data"))

	items, err := readUploads(r.MultipartForm)
	if err != nil {
		return batch.Request{}, nil, err
	}
	return req, items, nil
}

func parseQuality(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	q, err := strconv.Atoi(raw)
	if err != nil || q < 0 || q > 100 {
		return 0, apperrors.Validation("invalid_request", "Quality must be an integer between 0 and 100.",
			models.FieldError{Field: "quality", Reason: "range"})
	}
	return q, nil
}

func readUploads(form *multipart.Form) ([]models.UploadItem, error) {
	var items []models.UploadItem
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			data, err := readFile(fh)
			if err != nil {
				return nil, apperrors.Internal("upload_read_failed", err)
			}
			items = append(items, models.UploadItem{
				Filename:     fh.Filename,
				DeclaredType: fh.Header.Get("Content-Type"),
				Data:         data,
			})
		}
	}
	return items, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
