// Package mwauth resolves the caller identity from a bearer token
package mwauth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/go-pkgz/auth/v2/token"
)

type userKey struct{}

// TokenParser - контракт валидации токена; реализуется token.Service
// из go-pkgz/auth
type TokenParser interface {
	Parse(tokenString string) (token.Claims, error)
}

// New оборачивает next проверкой токена. Пути из skip пропускаются без
// аутентификации. Токен берется из Authorization: Bearer, куки JWT или
// query-параметра token (последнее - для websocket-хендшейка).
func New(next http.Handler, parser TokenParser, skip ...string) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipped[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := extractToken(r)
		if tokenStr == "" {
			writeUnauthorized(w)
			return
		}

		claims, err := parser.Parse(tokenStr)
		if err != nil || claims.User == nil {
			writeUnauthorized(w)
			return
		}

		userID, err := strconv.ParseInt(claims.User.ID, 10, 64)
		if err != nil {
			log.Printf("Failed to parse user ID %q from token", claims.User.ID)
			writeUnauthorized(w)
			return
		}

		user := model.User{ID: userID, Name: claims.User.Name}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if cookie, err := r.Cookie("JWT"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": model.ErrUnauthorized.Error(),
	}); err != nil {
		log.Println("Failed to write 401 response:", err)
	}
}

// ContextWithUser кладет идентичность вызывающего в контекст запроса
func ContextWithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext extracts the authenticated caller - used by handlers
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey{}).(model.User)
	return u, ok
}
