// Package transform перекодирует изображения: оптимизирует в исходном
// формате или конвертирует в другой. Пакет работает только с байтами в памяти.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"math"
	"strings"
)

// Op — вид преобразования.
type Op string

const (
	OpOptimize Op = "optimize"
	OpConvert  Op = "convert"
)

// Коды ошибок изображения в ответе.
const (
	CodeDecode            = "decode_error"
	CodeEncode            = "encode_error"
	CodeUnsupportedFormat = "unsupported_format"
	CodeTimeout           = "timeout"
	CodeInternal          = "internal_error"
)

var (
	// Файл прошёл проверку типа, но не декодируется.
	ErrDecode = errors.New("decode failed")
	// Кодировщик вернул ошибку.
	ErrEncode = errors.New("encode failed")
	// Для формата нет декодера или кодировщика.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// Кодек запаниковал.
	ErrPanic = errors.New("codec panic")
	// Размеры изображения превышают допустимые.
	ErrTooManyPixels = errors.New("image dimensions exceed limit")
)

// DefaultMaxPixels ограничивает площадь декодируемого изображения.
const DefaultMaxPixels = 100_000_000

// Request — параметры преобразования.
type Request struct {
	Op Op
	// Format — целевой формат, только для OpConvert.
	Format  string
	Quality int
}

// Output — результат преобразования одного изображения.
type Output struct {
	Data             []byte
	Format           string
	OriginalFormat   string
	OriginalSize     int64
	OptimizedSize    int64
	Ratio            int
	UsedOriginal     bool
	AlreadyOptimized bool
}

// Engine выполняет преобразования. Безопасен для конкурентного использования.
type Engine struct {
	maxPixels int
}

// New создаёт движок; maxPixels <= 0 означает DefaultMaxPixels.
func New(maxPixels int) *Engine {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Engine{maxPixels: maxPixels}
}

// Transform применяет req к data, формат которого уже определён по содержимому.
func (e *Engine) Transform(ctx context.Context, data []byte, format string, req Request) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	format = Normalize(format)
	quality := clampQuality(req.Quality)

	switch req.Op {
	case OpOptimize:
		return e.optimize(data, format, quality)
	case OpConvert:
		return e.convert(data, format, Normalize(req.Format), quality)
	default:
		return Output{}, fmt.Errorf("unknown operation %q", req.Op)
	}
}

func (e *Engine) optimize(data []byte, format string, quality int) (Output, error) {
	if _, ok := encoders[format]; !ok {
		if _, ok := decoders[format]; !ok {
			return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}
		// Кодировщика нет (webp): проверяем, что файл читается, и отдаём оригинал.
		if _, err := e.decode(data, format); err != nil {
			return Output{}, err
		}
		return original(data, format), nil
	}

	src, err := e.decode(data, format)
	if err != nil {
		return Output{}, err
	}
	encoded, err := encode(src, format, quality)
	if err != nil {
		return Output{}, err
	}
	if len(encoded) >= len(data) {
		return original(data, format), nil
	}

	ratio := Ratio(int64(len(data)), int64(len(encoded)))
	return Output{
		Data:             encoded,
		Format:           format,
		OriginalSize:     int64(len(data)),
		OptimizedSize:    int64(len(encoded)),
		Ratio:            ratio,
		AlreadyOptimized: ratio <= 1,
	}, nil
}

func (e *Engine) convert(data []byte, from, to string, quality int) (Output, error) {
	if _, ok := encoders[to]; !ok {
		return Output{}, fmt.Errorf("%w: cannot encode %q", ErrUnsupportedFormat, to)
	}
	src, err := e.decode(data, from)
	if err != nil {
		return Output{}, err
	}
	encoded, err := encode(src, to, quality)
	if err != nil {
		return Output{}, err
	}
	return Output{
		Data:           encoded,
		Format:         to,
		OriginalFormat: from,
		OriginalSize:   int64(len(data)),
		OptimizedSize:  int64(len(encoded)),
		Ratio:          Ratio(int64(len(data)), int64(len(encoded))),
	}, nil
}

// decode проверяет размеры по заголовку и декодирует изображение.
func (e *Engine) decode(data []byte, format string) (decoded, error) {
	codec, ok := decoders[format]
	if !ok {
		return decoded{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	cfg, err := codec.config(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("%w: %s header: %v", ErrDecode, format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > e.maxPixels/cfg.Height {
		return decoded{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	if format == "gif" {
		anim, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return decoded{}, fmt.Errorf("%w: gif: %v", ErrDecode, err)
		}
		if len(anim.Image) == 0 {
			return decoded{}, fmt.Errorf("%w: gif has no frames", ErrDecode)
		}
		return decoded{img: anim.Image[0], anim: anim}, nil
	}

	img, err := codec.decode(bytes.NewReader(data))
	if err != nil {
		return decoded{}, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}
	return decoded{img: img}, nil
}

func encode(src decoded, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := encoders[format](&buf, src, quality); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEncode, format, err)
	}
	return buf.Bytes(), nil
}

func original(data []byte, format string) Output {
	return Output{
		Data:             data,
		Format:           format,
		OriginalSize:     int64(len(data)),
		OptimizedSize:    int64(len(data)),
		Ratio:            0,
		UsedOriginal:     true,
		AlreadyOptimized: true,
	}
}

// Ratio вычисляет процент экономии round(100*(1-optimized/original)) в границах [0, 100].
func Ratio(originalSize, optimizedSize int64) int {
	if originalSize <= 0 {
		return 0
	}
	r := int(math.Round(100 * (1 - float64(optimizedSize)/float64(originalSize))))
	return min(max(r, 0), 100)
}

// Normalize приводит имя формата к каноническому виду.
func Normalize(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return format
}

// SupportedOutput возвращает форматы, в которые возможна конвертация.
func SupportedOutput() []string {
	return []string{"jpeg", "png", "gif", "bmp", "tiff"}
}

// CanEncode сообщает, поддерживается ли формат как целевой.
func CanEncode(format string) bool {
	_, ok := encoders[Normalize(format)]
	return ok
}

// Code отображает ошибку преобразования на код ошибки в результате.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrDecode), errors.Is(err, ErrTooManyPixels):
		return CodeDecode
	case errors.Is(err, ErrEncode):
		return CodeEncode
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

func clampQuality(q int) int {
	return min(max(q, 1), 100)
}

// decoded — декодированное изображение; anim заполнен для GIF.
type decoded struct {
	img  image.Image
	anim *gif.GIF
}
