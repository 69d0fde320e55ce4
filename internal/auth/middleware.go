package auth

import (
	"net/http"
	"strings"
)

// RequireAuth rejects requests without a valid Bearer access token and
// attaches the validated claims to the request context.
func RequireAuth(jwt *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				http.Error(w, `{"error":"Authentication required","code":"UNAUTHORIZED"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwt.ValidateAccessToken(token)
			if err != nil {
				http.Error(w, `{"error":"Invalid or expired token","code":"INVALID_TOKEN"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
