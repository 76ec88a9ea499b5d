package middleware

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var errRequestTooLarge = errors.New("decompressed request body too large")

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinLength is the smallest body worth compressing
	MinLength int
	// Level is the gzip level, 1-9
	Level int
	// MaxRequestBody caps the size of a decompressed request body
	MaxRequestBody int64
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinLength:      1024,
		Level:          gzip.DefaultCompression,
		MaxRequestBody: 1 << 20,
	}
}

// Compression gzips responses for clients that accept it and inflates gzip request bodies
func Compression(cfg CompressionConfig) gin.HandlerFunc {
	pool := sync.Pool{New: func() any {
		gz, _ := gzip.NewWriterLevel(io.Discard, cfg.Level)
		return gz
	}}

	return func(c *gin.Context) {
		if c.Request.Header.Get("Content-Encoding") == "gzip" {
			if err := inflateBody(c.Request, cfg.MaxRequestBody); err != nil {
				c.AbortWithStatus(http.StatusBadRequest)
				return
			}
		}

		if c.Request.Method == http.MethodHead || !strings.Contains(c.Request.Header.Get("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		w := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Header("Vary", "Accept-Encoding")

		c.Next()

		c.Writer = w.ResponseWriter
		body := w.buf.Bytes()
		if !compressible(w.Header(), w.Status(), len(body), cfg.MinLength) {
			w.ResponseWriter.Write(body)
			return
		}

		gz := pool.Get().(*gzip.Writer)
		defer pool.Put(gz)
		gz.Reset(w.ResponseWriter)

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		gz.Write(body)
		gz.Close()
	}
}

func inflateBody(r *http.Request, limit int64) error {
	reader, err := gzip.NewReader(r.Body)
	if err != nil {
		return err
	}
	defer reader.Close()

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > limit {
		return errRequestTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.Header.Del("Content-Encoding")
	r.ContentLength = int64(len(body))
	return nil
}

func compressible(h http.Header, status, size, minLength int) bool {
	if size < minLength || h.Get("Content-Encoding") != "" {
		return false
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	contentType := h.Get("Content-Type")
	for _, prefix := range []string{"image/", "video/", "audio/"} {
		if strings.HasPrefix(contentType, prefix) {
			return false
		}
	}
	return true
}

// bufferedWriter holds the body until the handler chain finishes
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Written() bool {
	return w.buf.Len() > 0 || w.ResponseWriter.Written()
}
