package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	handler := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "not-an-ip"})(echoRemoteAddr())

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy with X-Real-IP",
			remote:  "10.1.2.3:4567",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name:    "trusted proxy with X-Forwarded-For chain",
			remote:  "192.168.1.5:80",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.2, 10.1.1.1"},
			want:    "198.51.100.2",
		},
		{
			name:    "X-Real-IP wins",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Real-IP": "203.0.113.7", "X-Forwarded-For": "198.51.100.2"},
			want:    "203.0.113.7",
		},
		{
			name:    "untrusted peer keeps its address",
			remote:  "203.0.113.9:1234",
			headers: map[string]string{"X-Real-IP": "1.2.3.4"},
			want:    "203.0.113.9:1234",
		},
		{
			name:    "garbage header is ignored",
			remote:  "10.0.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "unknown"},
			want:    "10.0.0.1:80",
		},
		{
			name:   "no headers",
			remote: "10.0.0.1:80",
			want:   "10.0.0.1:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestTrustedRealIP_NoProxies(t *testing.T) {
	handler := TrustedRealIP(nil)(echoRemoteAddr())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Real-IP", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "10.0.0.1:80", rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		keys   []string
		header string
		want   int
	}{
		{name: "disabled", want: http.StatusNoContent},
		{name: "missing key", keys: []string{"a"}, want: http.StatusUnauthorized},
		{name: "wrong key", keys: []string{"a"}, header: "b", want: http.StatusForbidden},
		{name: "first key", keys: []string{"a", "b"}, header: "a", want: http.StatusNoContent},
		{name: "second key", keys: []string{"a", "b"}, header: "b", want: http.StatusNoContent},
		{name: "prefix is not enough", keys: []string{"abc"}, header: "ab", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(tt.keys)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want >= http.StatusBadRequest {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestLogger_CapturesStatusAndFlushes(t *testing.T) {
	var flushed bool
	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hi"))
		f, ok := w.(http.Flusher)
		flushed = ok
		if ok {
			f.Flush()
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}
