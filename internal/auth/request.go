package auth

import (
	"net/http"
	"strings"
)

// CookieName is the httpOnly cookie that carries the access token for browser clients.
const CookieName = "token"

// TokenFromRequest returns the bearer token from the Authorization header, falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
