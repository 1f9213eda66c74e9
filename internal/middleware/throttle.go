package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"upload-gate/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

// AdminThrottle limita tentativas nas rotas administrativas por IP (força bruta no segredo).
// Limite <= 0 desativa o throttle.
func AdminThrottle(requests int, window time.Duration, logger domain.Logger) gin.HandlerFunc {
	if requests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ClientIPFromRequest(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.WithContext(r.Context()).Warn("Admin request throttled", map[string]interface{}{
				"path": r.URL.Path,
			})

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]interface{}{
				"error":      "Too many admin requests. Try again later.",
				"retryAfter": int(window.Seconds()),
			}); err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}),
	)

	return WrapHTTPMiddleware(limiter)
}

// WrapHTTPMiddleware adapta um middleware net/http para o pipeline do gin.
// Se o middleware não chamar o próximo handler, a cadeia é abortada.
func WrapHTTPMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}
