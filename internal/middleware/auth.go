package middleware

import (
	"context"
	"net/http"
	"strings"

	"piggy-appointment-api/internal/auth"
)

type ctxKey string

const (
	UserIDKey   ctxKey = "uid"
	NicknameKey ctxKey = "nick"
)

// UserID pulls the authenticated user id out of a request context.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func Nickname(ctx context.Context) string {
	v, _ := ctx.Value(NicknameKey).(string)
	return v
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// token from Authorization: Bearer <jwt>
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				http.Error(w, "no token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, NicknameKey, claims.Nickname)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
