package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets the configured web origins call the API with credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{HeaderRateLimitRemaining, HeaderRetryAfter, requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
