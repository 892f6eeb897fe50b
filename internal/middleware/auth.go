package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/blinkchat/blink-backend/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const userIDKey contextKey = "user_id"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "jwt"

// ExtractToken pulls the session token from the cookie, the Authorization
// header, or (for WebSocket clients that cannot set headers) the token query
// parameter, in that order.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// RequireAuth resolves the request's session token to a user identity and
// injects it into the context. Requests without a valid session get 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			http.Error(w, "Unauthorized - No Token Provided", http.StatusUnauthorized)
			return
		}

		userID, ok := services.ValidateSession(r.Context(), token)
		if !ok {
			http.Error(w, "Unauthorized - Invalid Token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id injected by RequireAuth.
func UserID(r *http.Request) (primitive.ObjectID, bool) {
	id, ok := r.Context().Value(userIDKey).(primitive.ObjectID)
	return id, ok
}
