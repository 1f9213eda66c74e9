package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UnknownClient é a identidade usada quando nenhum endereço pode ser resolvido
const UnknownClient = "unknown"

const (
	requestIDHeader = "X-Request-ID"
	clientIPKey     = "client_ip"
)

// RequestContextMiddleware resolve request id e IP do cliente e os coloca no contexto
type RequestContextMiddleware struct {
	logger domain.Logger
}

// NewRequestContextMiddleware cria uma nova instância do middleware
func NewRequestContextMiddleware(logger domain.Logger) gin.HandlerFunc {
	middleware := &RequestContextMiddleware{
		logger: logger,
	}

	return middleware.Handle
}

// Handle é o handler principal do middleware
func (m *RequestContextMiddleware) Handle(c *gin.Context) {
	start := time.Now()

	requestID := m.getRequestID(c)
	clientIP := ClientIPFromRequest(c.Request)

	ctx := logger.ContextWithRequestInfo(c.Request.Context(), requestID, clientIP, c.GetHeader("User-Agent"))
	c.Request = c.Request.WithContext(ctx)
	c.Set(clientIPKey, clientIP)

	log := m.logger.WithContext(ctx)
	log.Debug("Request received", map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	})

	c.Next()

	log.Debug("Request completed", map[string]interface{}{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

// getRequestID obtém ou gera um Request ID para tracking
func (m *RequestContextMiddleware) getRequestID(c *gin.Context) string {
	if requestID := c.GetHeader(requestIDHeader); requestID != "" {
		c.Header(requestIDHeader, requestID)
		return requestID
	}

	requestID := uuid.New().String()
	c.Header(requestIDHeader, requestID)
	return requestID
}

// ClientIPFromRequest extrai o IP do cliente.
// Prioridade: X-Forwarded-For (primeiro) > X-Real-IP > RemoteAddr > "unknown".
func ClientIPFromRequest(r *http.Request) string {
	// O primeiro IP do X-Forwarded-For é o cliente original
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	// Remove porta se presente
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}

	if remote := strings.TrimSpace(r.RemoteAddr); remote != "" {
		return remote
	}

	return UnknownClient
}

// GetClientIP retorna o IP resolvido pelo middleware, ou o resolve na hora
func GetClientIP(c *gin.Context) string {
	if clientIP := c.GetString(clientIPKey); clientIP != "" {
		return clientIP
	}
	return ClientIPFromRequest(c.Request)
}
