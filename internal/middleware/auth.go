package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"relay-service/internal/response"
)

type contextKey string

const ContextUserID contextKey = "user_id"

// AuthMiddleware validates bearer tokens and places the user identity into
// the request context. Websocket clients may also pass the token as a
// query parameter since browsers cannot set headers on upgrade requests.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (am *AuthMiddleware) extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (am *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := am.extractToken(r)
		if tokenStr == "" {
			response.Error(w, http.StatusUnauthorized, "Missing token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return am.secret, nil
		})
		if err != nil || !token.Valid {
			response.Error(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			response.Error(w, http.StatusUnauthorized, "Token missing subject")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePublisher guards the trusted publish endpoint with a shared token.
// Publishers are backend processes, not end users, so a static bearer
// credential is enough here.
func RequirePublisher(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if token == "" || h != "Bearer "+token {
				response.Error(w, http.StatusForbidden, "Publisher token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
