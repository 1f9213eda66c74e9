package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/middleware"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	adminPasswordHeader = "X-Admin-Password"
	serviceName         = "Upload Gate API"
)

// UploadService decide e executa uploads
type UploadService interface {
	Handle(ctx context.Context, req *domain.UploadRequest) (*domain.StoredFile, error)
}

// FileService atende as rotas de leitura do storage
type FileService interface {
	ListFiles(ctx context.Context, parentID string) ([]*domain.StoredFile, error)
	ListAll(ctx context.Context) ([]*domain.StoredFile, error)
	OpenFile(ctx context.Context, id string) (*domain.StoredFile, io.ReadCloser, error)
	ReloadCache(ctx context.Context) (int, error)
}

// AdminService lê e altera a política de upload
type AdminService interface {
	Read(ctx context.Context) *domain.UploadConfig
	Write(ctx context.Context, secret string, raw json.RawMessage) (*domain.UploadConfig, error)
	RateStatus(ctx context.Context, secret, identity string) (*domain.RateStatus, error)
}

// HealthChecker verifica a saúde do counter store
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options agrupa parâmetros de ambiente dos handlers
type Options struct {
	AdminRateLimit  int
	AdminRateWindow time.Duration
	MaxRequestBody  int64 // bytes; 0 desativa
}

// Handlers contém os handlers da API
type Handlers struct {
	uploads   UploadService
	files     FileService
	admin     AdminService
	health    HealthChecker
	options   Options
	logger    domain.Logger
	startTime time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(
	uploads UploadService,
	files FileService,
	admin AdminService,
	health HealthChecker,
	options Options,
	logger domain.Logger,
) *Handlers {
	if options.AdminRateWindow <= 0 {
		options.AdminRateWindow = time.Minute
	}

	return &Handlers{
		uploads:   uploads,
		files:     files,
		admin:     admin,
		health:    health,
		options:   options,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.Use(middleware.NewRequestContextMiddleware(h.logger))

	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", h.MetricsHandler)
	router.GET("/metrics/prometheus", gin.WrapH(promhttp.Handler()))

	drive := router.Group("/api/drive")
	{
		drive.POST("/upload", h.UploadHandler)
		drive.GET("/files", h.ListFilesHandler)
		drive.GET("/all", h.ListAllHandler)
		drive.GET("/stream", h.StreamHandler)
		drive.POST("/reload-cache", h.ReloadCacheHandler)
	}

	throttle := middleware.AdminThrottle(h.options.AdminRateLimit, h.options.AdminRateWindow, h.logger)

	admin := router.Group("/api/admin")
	{
		admin.GET("/config", h.GetConfigHandler)
		admin.POST("/config", throttle, h.UpdateConfigHandler)
		admin.GET("/rate-status", throttle, h.RateStatusHandler)
	}
}

// HealthHandler verifica o counter store
func (h *Handlers) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	if err := h.health.Health(ctx); err != nil {
		h.logger.WithContext(ctx).Error("Health check failed", err, nil)

		response["status"] = "unhealthy"
		response["storage"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response["storage"] = "ok"
	c.JSON(http.StatusOK, response)
}

// MetricsHandler implementa endpoint de métricas do sistema
func (h *Handlers) MetricsHandler(c *gin.Context) {
	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := gin.H{
		"service":        serviceName,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"system": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": humanize.IBytes(m.Alloc),
			"memory_total": humanize.IBytes(m.TotalAlloc),
			"memory_sys":   humanize.IBytes(m.Sys),
			"gc_runs":      m.NumGC,
		},
	}

	c.JSON(http.StatusOK, response)
}

// UploadHandler recebe um arquivo multipart e o submete ao UploadGate
func (h *Handlers) UploadHandler(c *gin.Context) {
	if h.options.MaxRequestBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.options.MaxRequestBody)
	}

	req := &domain.UploadRequest{
		ClientID: middleware.GetClientIP(c),
		LoadPayload: func() (*domain.UploadPayload, error) {
			return loadMultipartPayload(c)
		},
	}

	stored, err := h.uploads.Handle(c.Request.Context(), req)
	if err != nil {
		h.writeRejection(c, err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

// loadMultipartPayload interpreta o corpo multipart (campos "file" e "parentId")
func loadMultipartPayload(c *gin.Context) (*domain.UploadPayload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, &domain.FileValidationError{
				Check:  domain.CheckSize,
				Reason: "Request body too large. Maximum " + humanize.IBytes(uint64(maxBytesErr.Limit)) + ".",
			}
		}
		return nil, err
	}

	payload := &domain.UploadPayload{}
	if values := form.Value["parentId"]; len(values) > 0 {
		payload.ParentID = strings.TrimSpace(values[0])
	}

	for _, header := range form.File["file"] {
		payload.Files = append(payload.Files, uploadFileFromHeader(header))
	}

	return payload, nil
}

func uploadFileFromHeader(header *multipart.FileHeader) *domain.UploadFile {
	return &domain.UploadFile{
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			file, err := header.Open()
			if err != nil {
				return nil, err
			}
			return file, nil
		},
	}
}

// writeRejection converte o resultado do UploadGate em resposta HTTP
func (h *Handlers) writeRejection(c *gin.Context, err error) {
	var rejection *domain.RejectionError
	if !errors.As(err, &rejection) {
		h.logger.WithContext(c.Request.Context()).Error("Unexpected upload error", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	response := gin.H{"error": rejection.Reason}

	if rejection.Kind == domain.RejectRateLimited {
		c.Header("Retry-After", strconv.Itoa(rejection.RetryAfter))
		response["retryAfter"] = rejection.RetryAfter
		response["reason"] = rejection.DenyReason
	}

	c.JSON(rejection.HTTPStatus(), response)
}

// ListFilesHandler lista uma pasta (com cache)
func (h *Handlers) ListFilesHandler(c *gin.Context) {
	files, err := h.files.ListFiles(c.Request.Context(), strings.TrimSpace(c.Query("parentId")))
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("Failed to list files", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// ListAllHandler lista todos os arquivos
func (h *Handlers) ListAllHandler(c *gin.Context) {
	files, err := h.files.ListAll(c.Request.Context())
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("Failed to list all files", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// StreamHandler envia o conteúdo de um arquivo
func (h *Handlers) StreamHandler(c *gin.Context) {
	fileID := strings.TrimSpace(c.Query("fileId"))
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId is required"})
		return
	}

	meta, content, err := h.files.OpenFile(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}

		h.logger.WithContext(c.Request.Context()).Error("Failed to open file", err, map[string]interface{}{
			"file_id": fileID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stream file"})
		return
	}
	defer content.Close()

	contentType := meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, meta.Size, contentType, content, map[string]string{
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": meta.Name}),
		"Cache-Control":       "public, max-age=3600",
	})
}

// ReloadCacheHandler descarta as listagens em cache
func (h *Handlers) ReloadCacheHandler(c *gin.Context) {
	cleared, err := h.files.ReloadCache(c.Request.Context())
	if err != nil {
		h.logger.WithContext(c.Request.Context()).Error("Failed to reload cache", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"clearedKeys": cleared,
	})
}

// GetConfigHandler retorna a configuração vigente (sem autenticação)
func (h *Handlers) GetConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Read(c.Request.Context()))
}

// UpdateConfigRequest representa o corpo da requisição de escrita
type UpdateConfigRequest struct {
	Password string          `json:"password"`
	Config   json.RawMessage `json:"config"`
}

// UpdateConfigHandler autentica o admin e grava a nova configuração
func (h *Handlers) UpdateConfigHandler(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	config, err := h.admin.Write(c.Request.Context(), req.Password, req.Config)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin password"})
		case errors.Is(err, domain.ErrInvalidConfig):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config: " + err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save config"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  config,
	})
}

// RateStatusHandler mostra o estado de rate limit de um IP (admin)
func (h *Handlers) RateStatusHandler(c *gin.Context) {
	identity := strings.TrimSpace(c.Query("ip"))
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip parameter is required"})
		return
	}

	status, err := h.admin.RateStatus(c.Request.Context(), c.GetHeader(adminPasswordHeader), identity)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin password"})
			return
		}

		h.logger.WithContext(c.Request.Context()).Error("Failed to get rate status", err, map[string]interface{}{
			"identity": identity,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rate status"})
		return
	}

	c.JSON(http.StatusOK, status)
}
