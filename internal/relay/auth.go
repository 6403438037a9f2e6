package relay

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// bearerToken extracts the request's token from the Authorization header,
// falling back to the "token" query parameter for browser WebSocket clients
// that cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// authorized reports whether r carries the expected token. An empty
// expected token disables the check.
func authorized(expected string, r *http.Request) bool {
	if expected == "" {
		return true
	}
	got := bearerToken(r)
	if got == "" {
		return false
	}
	return safeEqual(got, expected)
}

// requireToken rejects requests without the relay token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(s.cfg.Token, r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// safeEqual performs a constant-time string comparison.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
