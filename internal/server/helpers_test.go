package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProxyCIDRs(t *testing.T) {
	nets := parseProxyCIDRs([]string{"10.0.0.0/8", "192.0.2.1", "  ", "garbage", "2001:db8::/32"})
	require.Len(t, nets, 3)

	contains := func(host string) bool {
		return isTrustedProxy(host, nets)
	}
	assert.True(t, contains("10.1.2.3"))
	assert.True(t, contains("192.0.2.1"))
	assert.False(t, contains("192.0.2.2"), "a bare address covers only itself")
	assert.True(t, contains("2001:db8::5"))
	assert.False(t, contains("203.0.113.9"))
	assert.False(t, contains("not-an-ip"))
}

func TestClientIP(t *testing.T) {
	proxies := parseProxyCIDRs([]string{"10.0.0.0/8"})

	cases := map[string]struct {
		remote  string
		trusted []net.IPNet
		headers map[string]string
		want    string
	}{
		"direct peer": {
			remote: "203.0.113.7:5123",
			want:   "203.0.113.7",
		},
		"forwarded header from untrusted peer is ignored": {
			remote:  "203.0.113.7:5123",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9"},
			want:    "203.0.113.7",
		},
		"trusted proxy yields first forwarded hop": {
			remote:  "10.1.2.3:443",
			trusted: proxies,
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 10.1.2.3"},
			want:    "198.51.100.9",
		},
		"trusted proxy falls back to X-Real-IP": {
			remote:  "10.1.2.3:443",
			trusted: proxies,
			headers: map[string]string{"X-Real-IP": "198.51.100.10"},
			want:    "198.51.100.10",
		},
		"trusted proxy without headers keeps peer": {
			remote:  "10.1.2.3:443",
			trusted: proxies,
			want:    "10.1.2.3",
		},
		"blank forwarded entry keeps peer": {
			remote:  "10.1.2.3:443",
			trusted: proxies,
			headers: map[string]string{"X-Forwarded-For": "  ,10.1.2.3"},
			want:    "10.1.2.3",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(r, tc.trusted))
		})
	}
}

func TestDeriveLocation(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", deriveLocation(r))

	r.Header.Set("CF-IPCountry", "DE")
	assert.Equal(t, "DE", deriveLocation(r))

	r.Header.Set("X-City", "Berlin")
	assert.Equal(t, "Berlin, DE", deriveLocation(r))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var req updateProfileRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestDecodeJSONEnforcesBodyLimit(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	var req updateProfileRequest
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	require.Error(t, err)
}

func TestSecureHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	secureHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	h := rec.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))
	assert.NotEmpty(t, h.Get("Content-Security-Policy"))
}
