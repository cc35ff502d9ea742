package middleware

import (
	"context"
	"net/http"

	"github.com/metacat-io/metacat/internal/entityloader"
	"github.com/metacat-io/metacat/internal/repository"
)

type ctxKey string

const entityLoaderKey ctxKey = "entityLoader"

// DataLoaderMiddleware attaches a per-request entity loader to the context so
// handlers hydrating search hits share one batch window.
func DataLoaderMiddleware(repo repository.EntityRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := entityloader.NewEntityLoader(repo)
			ctx := context.WithValue(r.Context(), entityLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EntityLoaderFromContext retrieves the request's entity loader, if present.
func EntityLoaderFromContext(ctx context.Context) *entityloader.EntityLoader {
	if l, ok := ctx.Value(entityLoaderKey).(*entityloader.EntityLoader); ok {
		return l
	}
	return nil
}
