// Package actor carries the id of the authenticated caller through a request.
package actor

import (
	"context"
	"net/http"
	"strconv"
)

// Header is the request header carrying the caller's user id.
const Header = "X-User-ID"

type ctxKey struct{}

// NewActorMiddleware stores the caller id from Header in the request context.
// Requests without a valid id pass through anonymously.
func NewActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(Header), 10, 64)
		if err == nil && id > 0 {
			r = r.WithContext(WithID(r.Context(), id))
		}

		next.ServeHTTP(w, r)
	})
}

// WithID returns a copy of ctx carrying the caller id.
func WithID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller id, or false for anonymous requests.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)

	return id, ok
}
