// Модуль gzip для компрессии и декомпрессии HTTP-тел.
// Ответы сжимаются только если тип содержимого ещё не сжат:
// JSON и текст сжимаются, а изображения отдаются как есть.
package gzip

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var writers = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	},
}

// compressible — префиксы типов содержимого, которые имеет смысл сжимать.
var compressible = []string{"application/json", "text/", "application/xml", "image/svg+xml"}

// CompressWriter оборачивает http.ResponseWriter и решает, сжимать ли ответ,
// в момент записи заголовков.
type CompressWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	wroteHeader bool
}

// NewCompressWriter создаёт CompressWriter. После записи ответа нужно вызвать Close.
func NewCompressWriter(w http.ResponseWriter) *CompressWriter {
	return &CompressWriter{w: w}
}

// Header возвращает заголовки ответа.
func (c *CompressWriter) Header() http.Header {
	return c.w.Header()
}

// Write записывает тело, при необходимости сжимая его.
func (c *CompressWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		if c.w.Header().Get("Content-Type") == "" {
			c.w.Header().Set("Content-Type", http.DetectContentType(p))
		}
		c.WriteHeader(http.StatusOK)
	}
	if c.zw != nil {
		return c.zw.Write(p)
	}
	return c.w.Write(p)
}

// WriteHeader включает сжатие для успешных ответов со сжимаемым типом содержимого.
func (c *CompressWriter) WriteHeader(statusCode int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true

	h := c.w.Header()
	if statusCode < 300 && statusCode != http.StatusNoContent && h.Get("Content-Encoding") == "" && Compressible(h.Get("Content-Type")) {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
		zw := writers.Get().(*gzip.Writer)
		zw.Reset(c.w)
		c.zw = zw
	}
	c.w.WriteHeader(statusCode)
}

// Flush сбрасывает сжатые данные клиенту.
func (c *CompressWriter) Flush() {
	if c.zw != nil {
		_ = c.zw.Flush()
	}
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Close завершает gzip-поток и возвращает писатель в пул.
func (c *CompressWriter) Close() error {
	if c.zw == nil {
		return nil
	}
	err := c.zw.Close()
	writers.Put(c.zw)
	c.zw = nil
	return err
}

// Compressible сообщает, стоит ли сжимать содержимое типа contentType.
func Compressible(contentType string) bool {
	for _, prefix := range compressible {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// CompressReader распаковывает тело запроса, сжатое gzip.
type CompressReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressReader создаёт CompressReader поверх тела запроса.
func NewCompressReader(r io.ReadCloser) (*CompressReader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	return &CompressReader{
		r:  r,
		zr: zr,
	}, nil
}

// Read читает распакованные данные.
func (c *CompressReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close закрывает как исходный Reader, так и gzip.Reader.
func (c *CompressReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}
