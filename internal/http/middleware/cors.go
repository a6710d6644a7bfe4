package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/wolfman30/lead-intake-gateway/internal/http/response"
	"github.com/wolfman30/lead-intake-gateway/pkg/logging"
)

const (
	allowedMethods  = "POST, OPTIONS"
	allowedHeaders  = "content-type"
	preflightMaxAge = "600"
)

// OriginObserver counts rejected origins. *metrics.LeadMetrics satisfies it.
type OriginObserver interface {
	ObserveOriginRejected(path string)
}

// OriginGuard answers CORS preflights and refuses requests whose origin is
// not on the allowlist. An empty allowlist, or a request whose origin cannot
// be determined, is let through: this is defense in depth behind bot
// verification, not the trust boundary.
func OriginGuard(allowedOrigins []string, logger *logging.Logger, observer OriginObserver) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	allow := map[string]struct{}{}
	var first string
	for _, origin := range allowedOrigins {
		origin = NormalizeOrigin(origin)
		if origin == "" {
			continue
		}
		if first == "" {
			first = origin
		}
		allow[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := RequestOrigin(r)
			_, matched := allow[origin]

			allowOrigin := "*"
			switch {
			case matched:
				allowOrigin = origin
			case first != "":
				allowOrigin = first
			}
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Max-Age", preflightMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(allow) > 0 && origin != "" && !matched {
				logger.FromContext(r.Context()).Warn("forbidden origin",
					"origin", origin,
					"path", r.URL.Path,
				)
				if observer != nil {
					observer.ObserveOriginRejected(r.URL.Path)
				}
				response.Error(w, http.StatusForbidden, "Forbidden origin")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestOrigin returns the Origin header, else the origin of the Referer
// URL, else "". Both are normalized with NormalizeOrigin.
func RequestOrigin(r *http.Request) string {
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
		if normalized := NormalizeOrigin(origin); normalized != "" {
			return normalized
		}
		// Opaque origins such as "null" stay known so an allowlist rejects them.
		return strings.ToLower(origin)
	}
	return NormalizeOrigin(r.Header.Get("Referer"))
}

// NormalizeOrigin reduces a URL to scheme://host[:port] in lower case,
// dropping the port when it is the scheme's default. It returns "" when raw
// has no scheme or host.
func NormalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	switch port := u.Port(); {
	case port == "",
		scheme == "http" && port == "80",
		scheme == "https" && port == "443":
		return scheme + "://" + host
	default:
		return scheme + "://" + host + ":" + port
	}
}
