package middleware

import (
	"net/http"
	"strings"
)

// OriginChecker returns the upgrade-time origin check. An empty allow
// list permits everything (dev mode); otherwise the Origin header must
// match one of the configured origins exactly, or by suffix when the
// entry starts with ".".
func OriginChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser client
			return true
		}
		for _, a := range allowed {
			if strings.HasPrefix(a, ".") {
				if strings.HasSuffix(origin, a) {
					return true
				}
				continue
			}
			if strings.EqualFold(origin, a) {
				return true
			}
		}
		return false
	}
}
