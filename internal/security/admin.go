package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// AdminToken guards merchant dashboard routes with a shared bearer token.
// Identity and sessions live in the dashboard; this service only checks that
// the caller is the dashboard backend. An empty Token leaves routes open,
// which config only allows outside production.
type AdminToken struct {
	Token  string
	Logger zerolog.Logger
}

// Middleware rejects requests without the expected token.
func (a AdminToken) Middleware(next http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(a.Token))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(expected) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := bearer(r)
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing admin token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			a.Logger.Warn().Str("client_ip", common.ClientIP(r)).Str("path", r.URL.Path).Msg("admin token rejected")
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
