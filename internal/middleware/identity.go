package middleware

import (
	"context"
	"net/http"
	"strconv"
)

const identityKey key = 1

// Identity extracts the authenticated user id from the X-User-ID header set by
// the auth layer in front of this service. Requests without it are rejected:
// every vector-store read and write is scoped by user id.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			http.Error(w, `{"error":"missing or invalid X-User-ID header"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetUserID(ctx context.Context) int64 {
	if id, ok := ctx.Value(identityKey).(int64); ok {
		return id
	}
	return 0
}
