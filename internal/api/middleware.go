/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth
 * middleware validates bearer tokens and places the caller's email address
 * on the request context for handlers to read.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/john67k/zelle-style/internal/domain"
)

// EmailContextKey is a custom type for the context key to avoid collisions.
type EmailContextKey string

const userEmailKey EmailContextKey = "userEmail"

// AuthMiddleware creates a middleware that validates HS256 bearer tokens and
// extracts the caller's email from the token's email claim.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			email, ok := claims["email"].(string)
			if !ok || email == "" {
				http.Error(w, "Email not found in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userEmailKey, domain.NormalizeEmail(email))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserEmail retrieves the authenticated caller's email from the request
// context. Handlers behind AuthMiddleware should use this.
func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailKey).(string)
	return email, ok
}
