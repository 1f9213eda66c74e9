package service

import (
	"context"
	"fmt"
	"io"

	"upload-gate/internal/domain"
)

// FileService atende as rotas de leitura do storage (listagem, stream, cache)
type FileService struct {
	objects      domain.ObjectStorage
	listings     domain.ListingCache
	rootFolderID string
	logger       domain.Logger
}

// NewFileService cria uma nova instância do serviço
func NewFileService(objects domain.ObjectStorage, listings domain.ListingCache, rootFolderID string, logger domain.Logger) *FileService {
	return &FileService{
		objects:      objects,
		listings:     listings,
		rootFolderID: rootFolderID,
		logger:       logger,
	}
}

// ListFiles lista uma pasta passando pelo cache de listagens
func (s *FileService) ListFiles(ctx context.Context, parentID string) ([]*domain.StoredFile, error) {
	if parentID == "" {
		parentID = s.rootFolderID
	}

	files, found, err := s.listings.Get(ctx, parentID)
	if err != nil {
		s.logger.Warn("Listing cache read failed, falling back to storage", map[string]interface{}{
			"parent_id": parentID,
			"error":     err.Error(),
		})
	} else if found {
		s.logger.Debug("Listing served from cache", map[string]interface{}{
			"parent_id": parentID,
			"files":     len(files),
		})
		return files, nil
	}

	files, err = s.objects.List(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	if err := s.listings.Set(ctx, parentID, files); err != nil {
		s.logger.Warn("Failed to cache listing", map[string]interface{}{
			"parent_id": parentID,
			"error":     err.Error(),
		})
	}

	return files, nil
}

// ListAll lista todos os arquivos, sem cache
func (s *FileService) ListAll(ctx context.Context) ([]*domain.StoredFile, error) {
	files, err := s.objects.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all files: %w", err)
	}
	return files, nil
}

// OpenFile abre um arquivo para stream; retorna domain.ErrFileNotFound se não existir
func (s *FileService) OpenFile(ctx context.Context, id string) (*domain.StoredFile, io.ReadCloser, error) {
	return s.objects.Open(ctx, id)
}

// ReloadCache descarta todas as listagens em cache. Contadores e cooldowns não são afetados.
func (s *FileService) ReloadCache(ctx context.Context) (int, error) {
	cleared, err := s.listings.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear listing cache: %w", err)
	}

	s.logger.Info("Listing cache cleared", map[string]interface{}{
		"cleared_keys": cleared,
	})
	return cleared, nil
}
