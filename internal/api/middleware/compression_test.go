package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzip(t *testing.T, body []byte) string {
	t.Helper()
	reader, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer reader.Close()

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(out)
}

func gzipBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestCompression(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name              string
		method            string
		acceptEncoding    string
		contentType       string
		status            int
		responseSize      int
		expectCompression bool
	}{
		{name: "Compresses JSON", acceptEncoding: "gzip, deflate", contentType: "application/json", status: http.StatusOK, responseSize: 2048, expectCompression: true},
		{name: "Compresses Error Bodies", acceptEncoding: "gzip", contentType: "application/json", status: http.StatusNotFound, responseSize: 2048, expectCompression: true},
		{name: "Skips Small Response", acceptEncoding: "gzip", contentType: "application/json", status: http.StatusOK, responseSize: 512},
		{name: "Skips Without Accept-Encoding", contentType: "application/json", status: http.StatusOK, responseSize: 2048},
		{name: "Skips Images", acceptEncoding: "gzip", contentType: "image/png", status: http.StatusOK, responseSize: 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Compression(DefaultCompressionConfig()))

			data := strings.Repeat("a", tt.responseSize)
			r.GET("/test", func(c *gin.Context) {
				c.Header("Content-Type", tt.contentType)
				c.String(tt.status, data)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.expectCompression {
				assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
				assert.Equal(t, data, gunzip(t, w.Body.Bytes()))
			} else {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				assert.Equal(t, data, w.Body.String())
			}
		})
	}
}

func TestCompression_NoContent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Compression(DefaultCompressionConfig()))
	r.DELETE("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/test", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Zero(t, w.Body.Len())
}

func TestCompressedRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := DefaultCompressionConfig()
	cfg.MaxRequestBody = 64

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
		wantBody   string
	}{
		{name: "Inflates Body", body: gzipBytes(t, `{"content":"hello"}`), wantStatus: http.StatusOK, wantBody: `{"content":"hello"}`},
		{name: "Rejects Invalid Gzip", body: []byte("not gzipped data"), wantStatus: http.StatusBadRequest},
		{name: "Rejects Oversized Body", body: gzipBytes(t, strings.Repeat("x", 65)), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Compression(cfg))
			r.POST("/test", func(c *gin.Context) {
				body, err := io.ReadAll(c.Request.Body)
				require.NoError(t, err)
				c.String(http.StatusOK, string(body))
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(tt.body))
			req.Header.Set("Content-Encoding", "gzip")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
