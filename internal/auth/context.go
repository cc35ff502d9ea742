package auth

import (
	"context"
	"fmt"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal identifies the caller of a request.
type Principal struct {
	Name    string
	Roles   []string
	IsAdmin bool
}

// ContextWithPrincipal returns a new context carrying the authenticated caller.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the authenticated caller from the context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	value := ctx.Value(principalKey)
	if value == nil {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	if !ok || principal.Name == "" {
		return Principal{}, false
	}
	return principal, true
}

// EnforceCapability checks that the caller on the context may perform the
// operation on the given entity type. Requests with no principal are
// rejected.
func EnforceCapability(ctx context.Context, checker *Checker, op Operation, entityType string) error {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no authenticated principal on request")
	}
	allowed, err := checker.Allows(ctx, principal, op, entityType)
	if err != nil {
		return fmt.Errorf("failed to resolve capabilities for %s: %w", principal.Name, err)
	}
	if !allowed {
		return fmt.Errorf("principal %s may not %s %s", principal.Name, op, entityType)
	}
	return nil
}
