package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"authcore/internal/auth"
)

const maxRequestBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"status":  status,
		"message": message,
	})
}

// writeServiceError maps a service error onto the wire. The client only
// ever sees the sanitized message; underlying causes are logged for 5xx.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	ae := auth.AsError(err)
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "kind", string(ae.Kind), "error", err)
	}

	body := map[string]interface{}{
		"status":  status,
		"message": ae.Message,
	}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// clientIP resolves the request's origin address. Forwarded headers are
// honored only when the immediate peer is a configured trusted proxy;
// otherwise spoofed headers would poison rate limiting and the audit
// trail.
func clientIP(r *http.Request, trusted []net.IPNet) string {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil && h != "" {
		host = h
	}
	if host == "" || !isTrustedProxy(host, trusted) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	return host
}

// deriveLocation assembles a coarse "city, country" string from
// proxy-provided geo headers for the sign-in alert. Empty when no proxy
// supplies them.
func deriveLocation(r *http.Request) string {
	var parts []string
	if city := firstHeader(r, "X-City", "X-Geo-City"); city != "" {
		parts = append(parts, city)
	}
	if country := firstHeader(r, "CF-IPCountry", "X-Country", "X-Geo-Country"); country != "" {
		parts = append(parts, country)
	}
	return strings.Join(parts, ", ")
}

func firstHeader(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.Header.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

// parseProxyCIDRs reads the trusted-proxy list; entries are single
// addresses or CIDR ranges, and unparsable ones are dropped.
func parseProxyCIDRs(values []string) []net.IPNet {
	var nets []net.IPNet
	for _, v := range values {
		val := strings.TrimSpace(v)
		switch {
		case val == "":
		case strings.Contains(val, "/"):
			if _, cidr, err := net.ParseCIDR(val); err == nil {
				nets = append(nets, *cidr)
			}
		default:
			if ip := net.ParseIP(val); ip != nil {
				bits := 128
				if ip.To4() != nil {
					bits = 32
				}
				nets = append(nets, net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
		}
	}
	return nets
}

func isTrustedProxy(host string, proxies []net.IPNet) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
