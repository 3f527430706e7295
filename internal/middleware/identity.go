package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/ourslists/internal/member"
)

const (
	MemberHeader = "X-Member"
	DeviceHeader = "X-Device-ID"

	maxIdentityLen = 100
)

// Identify stores the member and device named in the request headers in the
// request context. Values that are empty or too long are ignored.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := member.Identity{
			Name:     headerValue(r, MemberHeader),
			DeviceID: headerValue(r, DeviceHeader),
		}
		if id.Name != "" || id.DeviceID != "" {
			r = r.WithContext(member.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func headerValue(r *http.Request, name string) string {
	v := strings.TrimSpace(r.Header.Get(name))
	if len(v) > maxIdentityLen {
		return ""
	}
	return v
}
