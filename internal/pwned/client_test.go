package pwned_test

import (
	"context"
	"fmt"
	"inkwell/internal/pwned"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	// Well known digest of "password"
	require.Equal(t, "5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8", pwned.HashPassword("password"))

	// No trimming or normalisation
	require.NotEqual(t, pwned.HashPassword("password"), pwned.HashPassword(" password"))

	prefix, suffix := pwned.SplitHash(pwned.HashPassword("password"))
	require.Equal(t, "5BAA6", prefix)
	require.Equal(t, "1E4C9B93F3F0682250B6CF8331B7EE68FD8", suffix)
	require.Len(t, suffix, 35)
}

func rangeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *pwned.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return pwned.NewClient(pwned.Config{BaseURL: srv.URL, UserAgent: "inkwell-test", Timeout: time.Second})
}

func TestClient_Check(t *testing.T) {
	_, suffix := pwned.SplitHash(pwned.HashPassword("password"))

	tests := []struct {
		name           string
		password       string
		status         int
		body           string
		wantCompromise bool
		wantErr        bool
	}{
		{
			name:           "Suffix Present",
			password:       "password",
			status:         http.StatusOK,
			body:           "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n" + suffix + ":3861493\r\n",
			wantCompromise: true,
		},
		{
			name:           "Lowercase Suffix Matches",
			password:       "password",
			status:         http.StatusOK,
			body:           strings.ToLower(suffix) + ":12\n",
			wantCompromise: true,
		},
		{
			name:     "Suffix Absent",
			password: "password",
			status:   http.StatusOK,
			body:     "0018A45C4D1DEF81644B54AB7F969B88D65:1\n00D4F6E8FA6EECAD2A3AA415EEC418D38EC:2\n",
		},
		{
			name:           "Zero Count Row Matches",
			password:       "password",
			status:         http.StatusOK,
			body:           "0018A45C4D1DEF81644B54AB7F969B88D65:0\n" + suffix + ":0\n",
			wantCompromise: true,
		},
		{
			name:     "Padding Rows Only",
			password: "password",
			status:   http.StatusOK,
			body:     "0018A45C4D1DEF81644B54AB7F969B88D65:0\n00D4F6E8FA6EECAD2A3AA415EEC418D38EC:0\n",
		},
		{
			name:     "Empty Body Fails Open",
			password: "password",
			status:   http.StatusOK,
			body:     "",
			wantErr:  true,
		},
		{
			name:     "Server Error Fails Open",
			password: "password",
			status:   http.StatusServiceUnavailable,
			body:     "down",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			result := client.Check(context.Background(), tt.password)
			assert.Equal(t, tt.wantCompromise, result.IsCompromised)
			if tt.wantErr {
				require.Error(t, result.Err)
				require.NotEmpty(t, result.Error())
				return
			}
			require.NoError(t, result.Err)
			require.Empty(t, result.Error())
		})
	}
}

func TestClient_RequestShape(t *testing.T) {
	var calls int32
	client := rangeServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/range/5BAA6", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))
		assert.Equal(t, "inkwell-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		fmt.Fprint(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\n")
	})

	// Each call must reach the server; nothing is cached
	client.Check(context.Background(), "password")
	client.Check(context.Background(), "password")
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_NetworkFailureFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := pwned.NewClient(pwned.Config{BaseURL: baseURL, Timeout: time.Second})
	result := client.Check(context.Background(), "password")
	require.False(t, result.IsCompromised)
	require.Error(t, result.Err)
}

func TestCheckerFunc(t *testing.T) {
	var checker pwned.Checker = pwned.CheckerFunc(func(ctx context.Context, password string) pwned.Result {
		return pwned.Result{IsCompromised: password == "hunter2"}
	})
	require.True(t, checker.Check(context.Background(), "hunter2").IsCompromised)
	require.False(t, checker.Check(context.Background(), "correct horse").IsCompromised)
}
