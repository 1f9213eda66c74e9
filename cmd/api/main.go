package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upload-gate/internal/config"
	"upload-gate/internal/handler"
	"upload-gate/internal/logger"
	"upload-gate/internal/service"
	"upload-gate/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// Carregar configurações
	configLoader := config.NewConfigLoader()
	cfg, err := configLoader.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Inicializar logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("Starting Upload Gate API", map[string]interface{}{
		"version":      "1.0.0",
		"log_level":    cfg.LogLevel,
		"port":         cfg.ServerPort,
		"storage_type": cfg.StorageType,
	})

	// Storage de arquivos antes dos stores, que exigem Close
	objects, err := storage.NewFilesystemStorage(cfg.UploadDir, appLogger)
	if err != nil {
		appLogger.Error("Failed to create file storage", err, nil)
		os.Exit(1)
	}

	// Inicializar stores (contadores, configuração e cache de listagens)
	storageConfig := storage.BuildStorageConfigFromEnv(
		cfg.StorageType,
		cfg.RedisHost,
		cfg.RedisPort,
		cfg.RedisPassword,
		cfg.RedisDB,
		cfg.UploadConfigFile,
		cfg.ConfigCacheTTL,
		cfg.ListingCacheTTL,
	)

	backends, err := storage.NewStorageFactory().CreateBackends(storageConfig, appLogger)
	if err != nil {
		appLogger.Error("Failed to create storage", err, nil)
		os.Exit(1)
	}
	defer backends.Close()

	// Inicializar services
	authenticator := service.NewAuthenticator(cfg.AdminPassword, cfg.AdminPasswordHash, appLogger)
	limiter := service.NewRateLimiterService(backends.Counters, appLogger)
	adminService := service.NewAdminConfigService(backends.Config, authenticator, limiter, appLogger)
	uploadGate := service.NewUploadGate(
		adminService,
		limiter,
		service.NewFileValidator(),
		objects,
		backends.Listings,
		service.GateOptions{
			RootFolderID: cfg.RootFolderID,
			StoreTimeout: cfg.StoreTimeout,
		},
		appLogger,
	)
	fileService := service.NewFileService(objects, backends.Listings, cfg.RootFolderID, appLogger)

	// Inicializar handlers
	handlers := handler.NewHandlers(
		uploadGate,
		fileService,
		adminService,
		backends.Counters,
		handler.Options{
			AdminRateLimit: cfg.AdminRateLimit,
			MaxRequestBody: int64(cfg.MaxRequestBodyMB) << 20,
		},
		appLogger,
	)

	// Configurar Gin
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Multipart acima disso vai para arquivo temporário
	router.MaxMultipartMemory = 32 << 20

	handlers.SetupRoutes(router)

	// Uploads grandes precisam de mais tempo que as demais rotas
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"port": cfg.ServerPort,
			"addr": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", err, nil)
			// os.Exit ignora os defers
			_ = backends.Close()
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("Upload Gate API is running", map[string]interface{}{
		"port": cfg.ServerPort,
		"endpoints": []string{
			"GET  /health",
			"GET  /metrics",
			"GET  /metrics/prometheus",
			"POST /api/drive/upload",
			"GET  /api/drive/files",
			"GET  /api/drive/all",
			"GET  /api/drive/stream",
			"POST /api/drive/reload-cache",
			"GET  /api/admin/config",
			"POST /api/admin/config",
			"GET  /api/admin/rate-status",
		},
		"upload_dir": cfg.UploadDir,
	})

	<-quit
	appLogger.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err, nil)
		return
	}

	appLogger.Info("Server stopped gracefully", nil)
}
