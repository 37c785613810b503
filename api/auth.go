/*
auth.go - Bearer-token authentication middleware

PURPOSE:
  Verifies JWTs on endpoints that require an authenticated caller
  (generate, stats, deactivate) and places the verified identity in the
  request context. Identity is always passed explicitly through the
  context - handlers never read ambient global state.

TOKEN FORMAT:
  Authorization: Bearer <jwt>, HS256-signed, with a "uid" claim naming
  the caller. Tokens are verified here, never issued; identity is an
  external collaborator.

SEE ALSO:
  - server.go: Applies the middleware to protected route groups
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/referral-engine/referral"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the verified caller placed in the request context.
type Identity struct {
	UserID referral.UserID
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth verifies the Bearer token and injects the identity.
// Requests without a valid token get 401 with a structured body.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized", referral.ErrUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Unauthorized", referral.ErrUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", referral.ErrUnauthorized)
				return
			}
			uid, _ := claims["uid"].(string)
			if uid == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", referral.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, Identity{UserID: referral.UserID(uid)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
