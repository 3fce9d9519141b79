package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthEnabled checks if a bearer token is required
func (s *Server) AuthEnabled() bool {
	return s.token != ""
}

// IsAuthenticated checks the request's bearer token
func (s *Server) IsAuthenticated(r *http.Request) bool {
	if !s.AuthEnabled() {
		return true
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.token)) == 1
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || s.IsAuthenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="jellyrename"`)
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	})
}
