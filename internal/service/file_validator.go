package service

import (
	"fmt"
	"strconv"
	"strings"

	"upload-gate/internal/domain"

	"github.com/samber/lo"
)

// dangerousChars são caracteres que não podem aparecer no nome de arquivo
const dangerousChars = `<>:"/\|?*`

// UploadFileValidator implementa domain.FileValidator; não guarda estado
type UploadFileValidator struct{}

// NewFileValidator cria o validador de arquivos
func NewFileValidator() *UploadFileValidator {
	return &UploadFileValidator{}
}

// Validate verifica tamanho, extensão e caracteres perigosos, nessa ordem.
// Todas as verificações usam o nome original; só a de extensão ignora caixa.
func (v *UploadFileValidator) Validate(name string, size int64, config *domain.UploadConfig) error {
	if float64(size) > config.MaxFileSizeBytes() {
		return &domain.FileValidationError{
			Check:  domain.CheckSize,
			Reason: fmt.Sprintf("File too large. Maximum %sMB.", strconv.FormatFloat(config.MaxFileSize, 'f', -1, 64)),
		}
	}

	lowerName := strings.ToLower(name)
	// Match por sufixo: "archive.tar.exe" e ".exe" casam com .exe
	blocked, found := lo.Find(config.BlockedExtensions, func(ext string) bool {
		return ext != "" && strings.HasSuffix(lowerName, strings.ToLower(ext))
	})
	if found {
		return &domain.FileValidationError{
			Check:  domain.CheckExtension,
			Reason: fmt.Sprintf("File type %s is not allowed.", strings.ToLower(blocked)),
		}
	}

	if hasDangerousChars(name) {
		return &domain.FileValidationError{
			Check:  domain.CheckFilename,
			Reason: "File name contains invalid characters.",
		}
	}

	return nil
}

func hasDangerousChars(name string) bool {
	return strings.IndexFunc(name, func(r rune) bool {
		return r < 32 || strings.ContainsRune(dangerousChars, r)
	}) >= 0
}
