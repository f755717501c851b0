package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/intermernet/afterlife/internal/auth"
)

// contextKey is a custom type used for keys in context.Context. Using a custom
// type prevents collisions between context keys defined in different packages.
type contextKey string

// userContextKey holds the authenticated profile ID.
const userContextKey = contextKey("userID")

// authMiddleware protects routes that require a session. The JWT comes from
// the Authorization header or, for SSE connections, the 'token' query
// parameter. Valid tokens put the profile ID into the request context;
// anything else ends the request with 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) == 2 && strings.ToLower(headerParts[0]) == "bearer" {
			tokenString = headerParts[1]
		}

		// EventSource cannot set headers.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			s.errorJSON(w, errors.New("authorization token is required"), http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateJWT(tokenString, s.config.JwtSecret)
		if err != nil {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserIDFromContext returns the profile ID set by authMiddleware.
func (s *Server) getUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := r.Context().Value(userContextKey).(string)
	if !ok || userID == "" {
		return "", errors.New("could not retrieve user ID from context")
	}
	return userID, nil
}

// functionsCORS is the open CORS policy of the /functions endpoints, which
// are called straight from browsers on any origin.
func functionsCORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"POST", "GET", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:         300,
	})
}

// handlePreflight answers bare OPTIONS requests on the /functions endpoints.
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
