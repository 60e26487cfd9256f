package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls cross-origin access to the HTTP transport.
// Browsers cannot read the session id header unless it is exposed, so
// the defaults list SessionIDHeader on both sides of the exchange.
type CORSConfig struct {
	// AllowOrigins lists permitted origins; "*" alone permits any.
	AllowOrigins []string

	// AllowMethods lists permitted methods. Defaults to the methods the
	// transport actually serves, OPTIONS included for preflight.
	AllowMethods []string

	// AllowHeaders lists request headers a preflight may ask for.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and authorization headers.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig permits any origin. Suitable for development; pin
// AllowOrigins for anything exposed.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  corsDefaultMethods(),
		AllowHeaders:  corsDefaultHeaders(),
		ExposeHeaders: []string{SessionIDHeader},
		MaxAge:        86400,
	}
}

func corsDefaultMethods() []string {
	return []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
}

func corsDefaultHeaders() []string {
	return []string{"Content-Type", "Authorization", "X-Request-ID", SessionIDHeader}
}

// CORSHandler wraps next with the configured CORS policy. Preflight
// requests from an allowed origin are answered here with 204 and never
// reach the wrapped handler; disallowed origins pass through with no
// CORS headers at all, leaving the refusal to the browser.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = corsDefaultMethods()
	}
	if len(config.AllowHeaders) == 0 {
		config.AllowHeaders = corsDefaultHeaders()
	}
	if config.MaxAge == 0 {
		config.MaxAge = 86400
	}

	anyOrigin := len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*"
	origins := make(map[string]bool, len(config.AllowOrigins))
	for _, o := range config.AllowOrigins {
		origins[o] = true
	}

	methods := strings.Join(config.AllowMethods, ", ")
	headers := strings.Join(config.AllowHeaders, ", ")
	exposed := strings.Join(config.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allow := ""
		switch {
		case anyOrigin:
			allow = "*"
		case origin != "" && origins[origin]:
			allow = origin
		}

		if allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposed)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// WithCORS configures CORS for the HTTP transport.
func WithCORS(config CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}

// WithDefaultCORS enables CORS with the permissive defaults.
func WithDefaultCORS() HTTPOption {
	config := DefaultCORSConfig()
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}
