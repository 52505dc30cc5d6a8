package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"accessops/pkg/requestcontext"
)

// ClientMetadata resolves the client IP and a parsed User-Agent description
// and stores both in the context. Services pick them up when they enrich
// audit details, so this must run before authentication.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientIP(ctx, ClientIPFromRequest(r))

		if raw := r.Header.Get("User-Agent"); raw != "" {
			ctx = requestcontext.WithUserAgent(ctx, DescribeUserAgent(raw))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DescribeUserAgent condenses a raw User-Agent string into "Browser on OS".
// Unrecognizable agents fall back to the raw string so nothing is lost in
// the audit trail.
func DescribeUserAgent(raw string) string {
	ua := useragent.New(raw)

	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if browser == "" || os == "" {
		return raw
	}
	return browser + " on " + os
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can hold a chain; the first entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for IPv4 and "[::1]:port" for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
