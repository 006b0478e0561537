package auth

import (
	"context"
	"errors"
	"net/http"
)

type contextKey string

const ctxUID contextKey = "uid"

type Options struct {
	Header       string
	BearerPrefix string
	QueryKey     string
}

// Middleware resolves the session token on every request and stores the
// caller's user id in the context. Unresolvable tokens stop at 401 before
// any core operation runs.
func Middleware(a Authenticator, opt Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ExtractToken(r, opt.Header, opt.BearerPrefix, opt.QueryKey)
			if tok == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			uid, err := a.Resolve(r.Context(), tok)
			if err != nil {
				if errors.Is(err, ErrUnauthorized) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				} else {
					http.Error(w, "auth error", http.StatusUnauthorized)
				}
				return
			}
			ctx := context.WithValue(r.Context(), ctxUID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UID returns the authenticated user id stored by Middleware.
func UID(ctx context.Context) int64 {
	if v, ok := ctx.Value(ctxUID).(int64); ok {
		return v
	}
	return 0
}
