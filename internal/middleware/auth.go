package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminKey contextKey = "admin"

// Admin is the identity carried by a verified bearer token.
type Admin struct {
	ID       string
	Username string
}

// AdminFromContext returns the admin set by AdminAuth.
func AdminFromContext(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminKey).(Admin)
	return a, ok
}

// AdminAuth rejects requests without a valid, non-blacklisted bearer token.
// rdb may be nil, in which case logout blacklisting is not enforced.
func AdminAuth(secret string, rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				unauthorized(w, "No token provided")
				return
			}

			admin, err := validateToken(secret, token)
			if err != nil {
				log.Printf("[AUTH] Rejected token from %s: %v", r.RemoteAddr, err)
				unauthorized(w, "Invalid token")
				return
			}

			if rdb != nil {
				n, err := rdb.Exists(r.Context(), fmt.Sprintf("blacklist:%s", token)).Result()
				if err != nil {
					log.Printf("[AUTH] Blacklist lookup failed: %v", err)
				} else if n > 0 {
					unauthorized(w, "Invalid token")
					return
				}
			}

			ctx := context.WithValue(r.Context(), adminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateToken(secret, tokenString string) (Admin, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Admin{}, err
	}
	if !token.Valid {
		return Admin{}, errors.New("token not valid")
	}

	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" {
		return Admin{}, errors.New("token has no admin id")
	}
	return Admin{ID: id, Username: username}, nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "message": message})
}
