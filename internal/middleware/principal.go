package middleware

import (
	"net/http"
	"strings"

	"github.com/metacat-io/metacat/internal/auth"
)

// Identity headers set by the authenticating gateway. Login flows are out of
// scope here; the service only consumes the asserted identity.
const (
	HeaderUser  = "X-Metacat-User"
	HeaderRoles = "X-Metacat-Roles"
	HeaderAdmin = "X-Metacat-Admin"
)

// PrincipalMiddleware lifts gateway identity headers into an auth.Principal
// on the request context.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get(HeaderUser))
		if name == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal := auth.Principal{
			Name:    name,
			IsAdmin: r.Header.Get(HeaderAdmin) == "true",
		}
		for _, role := range strings.Split(r.Header.Get(HeaderRoles), ",") {
			if role = strings.TrimSpace(role); role != "" {
				principal.Roles = append(principal.Roles, role)
			}
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}
