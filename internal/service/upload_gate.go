package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/metrics"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// UnknownIdentity é usado quando não há como identificar o cliente
	UnknownIdentity = "unknown"

	internalErrorMessage = "Failed to upload file"
	sniffLength          = 3072
	genericMimeType      = "application/octet-stream"
)

// ConfigReader fornece a configuração de upload vigente
type ConfigReader interface {
	Read(ctx context.Context) *domain.UploadConfig
}

// GateOptions agrupa os parâmetros de ambiente do UploadGate
type GateOptions struct {
	RootFolderID string
	StoreTimeout time.Duration
}

// UploadGate decide a admissão de cada upload e, se admitido, entrega os bytes ao storage
type UploadGate struct {
	configs   ConfigReader
	limiter   domain.RateLimiter
	validator domain.FileValidator
	objects   domain.ObjectStorage
	listings  domain.ListingCache
	options   GateOptions
	logger    domain.Logger
}

// NewUploadGate cria uma nova instância do orquestrador
func NewUploadGate(
	configs ConfigReader,
	limiter domain.RateLimiter,
	validator domain.FileValidator,
	objects domain.ObjectStorage,
	listings domain.ListingCache,
	options GateOptions,
	logger domain.Logger,
) *UploadGate {
	return &UploadGate{
		configs:   configs,
		limiter:   limiter,
		validator: validator,
		objects:   objects,
		listings:  listings,
		options:   options,
		logger:    logger,
	}
}

// Handle executa Received -> RateChecked -> Validated -> Stored.
// Rejeições retornam *domain.RejectionError; o motivo é seguro para o cliente.
func (g *UploadGate) Handle(ctx context.Context, req *domain.UploadRequest) (*domain.StoredFile, error) {
	identity := req.ClientID
	if identity == "" {
		identity = UnknownIdentity
	}
	log := g.logger.WithContext(ctx)

	config := g.configs.Read(ctx)

	decision, err := g.checkRate(ctx, identity, config)
	if err != nil {
		return nil, g.internalError(log, "rate_check", err)
	}

	if !decision.Allowed {
		metrics.RecordDecision("rejected", string(decision.Reason))
		return nil, &domain.RejectionError{
			Kind:       domain.RejectRateLimited,
			Reason:     decision.Message,
			DenyReason: decision.Reason,
			RetryAfter: decision.RetryAfter,
		}
	}

	// O corpo só é lido depois do rate limit
	payload, err := req.LoadPayload()
	if err != nil {
		// Corpo acima do limite do servidor é uma falha de tamanho, não interna
		var validationErr *domain.FileValidationError
		if errors.As(err, &validationErr) {
			metrics.RecordDecision("rejected", string(validationErr.Check))
			return nil, badRequest(validationErr.Reason)
		}
		return nil, g.internalError(log, "payload", err)
	}

	if len(payload.Files) == 0 {
		metrics.RecordDecision("rejected", "missing_file")
		return nil, badRequest("No file found in request.")
	}
	if len(payload.Files) > 1 {
		metrics.RecordDecision("rejected", "multiple_files")
		return nil, badRequest("Exactly one file must be uploaded per request.")
	}

	file := payload.Files[0]

	if err := g.validator.Validate(file.Name, file.Size, config); err != nil {
		var validationErr *domain.FileValidationError
		if !errors.As(err, &validationErr) {
			return nil, g.internalError(log, "validation", err)
		}

		metrics.RecordDecision("rejected", string(validationErr.Check))
		log.Info("Upload rejected by file validation", map[string]interface{}{
			"identity": identity,
			"file":     file.Name,
			"check":    validationErr.Check,
		})
		return nil, badRequest(validationErr.Reason)
	}

	parentID := payload.ParentID
	if parentID == "" {
		parentID = g.options.RootFolderID
	}

	stored, err := g.store(ctx, file, parentID)
	if err != nil {
		return nil, g.internalError(log, "storage", err)
	}

	if err := g.listings.Invalidate(ctx, parentID); err != nil {
		// O arquivo já foi gravado; a listagem expira pelo TTL
		log.Warn("Failed to invalidate listing cache", map[string]interface{}{
			"parent_id": parentID,
			"error":     err.Error(),
		})
	}

	metrics.RecordDecision("accepted", "none")
	metrics.UploadedBytesTotal.Add(float64(stored.Size))

	log.Info("Upload accepted", map[string]interface{}{
		"identity":  identity,
		"file_id":   stored.ID,
		"parent_id": parentID,
	})

	return stored, nil
}

// checkRate limita o tempo gasto no counter store
func (g *UploadGate) checkRate(ctx context.Context, identity string, config *domain.UploadConfig) (*domain.RateDecision, error) {
	if g.options.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.options.StoreTimeout)
		defer cancel()
	}

	return g.limiter.Check(ctx, identity, config)
}

// store abre o conteúdo, detecta o MIME quando necessário e grava no backend
func (g *UploadGate) store(ctx context.Context, file *domain.UploadFile, parentID string) (*domain.StoredFile, error) {
	content, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer content.Close()

	mimeType := file.MimeType
	var reader io.Reader = content

	if mimeType == "" || mimeType == genericMimeType {
		head := make([]byte, sniffLength)
		n, err := io.ReadFull(content, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		head = head[:n]

		mimeType = mimetype.Detect(head).String()
		reader = io.MultiReader(bytes.NewReader(head), content)
	}

	return g.objects.Create(ctx, &domain.ObjectMeta{
		Name:     file.Name,
		MimeType: mimeType,
		ParentID: parentID,
	}, reader)
}

func (g *UploadGate) internalError(log domain.Logger, stage string, err error) error {
	metrics.RecordDecision("error", stage)
	log.Error("Upload failed", err, map[string]interface{}{
		"stage": stage,
	})

	return &domain.RejectionError{
		Kind:   domain.RejectInternal,
		Reason: internalErrorMessage,
		Err:    err,
	}
}

func badRequest(reason string) error {
	return &domain.RejectionError{
		Kind:   domain.RejectBadRequest,
		Reason: reason,
	}
}
