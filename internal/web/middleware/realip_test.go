package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"no proxies configured", nil, "10.0.0.1:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "10.0.0.1:1234"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.0.0.1:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for", []string{"10.0.0.1"}, "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"untrusted peer", []string{"10.0.0.0/8"}, "192.168.1.1:99", map[string]string{"X-Real-IP": "1.2.3.4"}, "192.168.1.1:99"},
		{"invalid header", []string{"10.0.0.0/8"}, "10.0.0.1:1234", map[string]string{"X-Real-IP": "nope"}, "10.0.0.1:1234"},
		{"bad cidr skipped", []string{"bogus", "10.0.0.0/8"}, "10.0.0.1:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short", rec.Body.String())
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	h := APIKeyAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
