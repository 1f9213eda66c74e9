package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"upload-gate/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const metaSuffix = ".meta.json"

// FilesystemStorage implementa domain.ObjectStorage no sistema de arquivos local.
// Cada objeto é gravado como {id} (conteúdo) e {id}.meta.json (metadados).
type FilesystemStorage struct {
	basePath string
	logger   domain.Logger
	now      func() time.Time
}

// NewFilesystemStorage cria o backend e garante que o diretório exista
func NewFilesystemStorage(basePath string, logger domain.Logger) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &FilesystemStorage{
		basePath: basePath,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Create grava o conteúdo e os metadados de forma atômica
func (fs *FilesystemStorage) Create(ctx context.Context, meta *domain.ObjectMeta, content io.Reader) (*domain.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()

	pending, err := renameio.TempFile("", fs.contentPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}
	defer pending.Cleanup()

	size, err := io.Copy(pending, content)
	if err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("failed to commit file %s: %w", id, err)
	}

	stored := &domain.StoredFile{
		ID:          id,
		Name:        meta.Name,
		MimeType:    meta.MimeType,
		Size:        size,
		CreatedTime: fs.now().UTC(),
		Parents:     []string{meta.ParentID},
	}

	data, err := json.Marshal(stored)
	if err != nil {
		_ = os.Remove(fs.contentPath(id))
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := renameio.WriteFile(fs.metaPath(id), data, 0o644); err != nil {
		// Remove o conteúdo órfão
		_ = os.Remove(fs.contentPath(id))
		return nil, fmt.Errorf("failed to write metadata for %s: %w", id, err)
	}

	if fs.logger != nil {
		fs.logger.Info("File stored", map[string]interface{}{
			"id":     id,
			"name":   meta.Name,
			"parent": meta.ParentID,
			"size":   humanize.IBytes(uint64(size)),
		})
	}

	return stored, nil
}

// List retorna os arquivos de uma pasta, do mais novo para o mais antigo
func (fs *FilesystemStorage) List(ctx context.Context, parentID string) ([]*domain.StoredFile, error) {
	all, err := fs.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Filter(all, func(file *domain.StoredFile, _ int) bool {
		return lo.Contains(file.Parents, parentID)
	}), nil
}

// ListAll retorna todos os arquivos gravados
func (fs *FilesystemStorage) ListAll(ctx context.Context) ([]*domain.StoredFile, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	files := make([]*domain.StoredFile, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		file, err := fs.readMeta(strings.TrimSuffix(entry.Name(), metaSuffix))
		if err != nil {
			if fs.logger != nil {
				fs.logger.Warn("Skipping unreadable metadata", map[string]interface{}{
					"entry": entry.Name(),
					"error": err.Error(),
				})
			}
			continue
		}
		files = append(files, file)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedTime.After(files[j].CreatedTime)
	})

	return files, nil
}

// Open abre o conteúdo de um arquivo pelo id
func (fs *FilesystemStorage) Open(ctx context.Context, id string) (*domain.StoredFile, io.ReadCloser, error) {
	// IDs são UUIDs; qualquer outra coisa não existe (e não vira caminho)
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, domain.ErrFileNotFound
	}

	file, err := fs.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.ErrFileNotFound
		}
		return nil, nil, err
	}

	content, err := os.Open(fs.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to open file %s: %w", id, err)
	}

	return file, content, nil
}

func (fs *FilesystemStorage) readMeta(id string) (*domain.StoredFile, error) {
	data, err := os.ReadFile(fs.metaPath(id))
	if err != nil {
		return nil, err
	}

	var file domain.StoredFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", id, err)
	}
	return &file, nil
}

func (fs *FilesystemStorage) contentPath(id string) string {
	return filepath.Join(fs.basePath, id)
}

func (fs *FilesystemStorage) metaPath(id string) string {
	return filepath.Join(fs.basePath, id+metaSuffix)
}
