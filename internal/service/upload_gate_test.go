package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"upload-gate/internal/domain"
	"upload-gate/internal/logger"
	"upload-gate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const rootFolder = "root"

type gateFixture struct {
	gate     *UploadGate
	clock    *fakeClock
	limiter  *RateLimiterService
	objects  *storage.FilesystemStorage
	listings *storage.MemoryListingCache
}

func newGateFixture(t *testing.T, config *domain.UploadConfig) *gateFixture {
	limiter, clock := newTestLimiter(t)

	objects, err := storage.NewFilesystemStorage(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)

	listings := storage.NewMemoryListingCache(time.Minute)
	t.Cleanup(func() { _ = listings.Close() })

	gate := NewUploadGate(
		staticConfig{config: config},
		limiter,
		NewFileValidator(),
		objects,
		listings,
		GateOptions{RootFolderID: rootFolder, StoreTimeout: time.Second},
		logger.NewNopLogger(),
	)

	return &gateFixture{
		gate:     gate,
		clock:    clock,
		limiter:  limiter,
		objects:  objects,
		listings: listings,
	}
}

func newUploadFile(name string, content []byte, mimeType string) *domain.UploadFile {
	return &domain.UploadFile{
		Name:     name,
		Size:     int64(len(content)),
		MimeType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func newUploadRequest(clientID, parentID string, files ...*domain.UploadFile) *domain.UploadRequest {
	return &domain.UploadRequest{
		ClientID: clientID,
		LoadPayload: func() (*domain.UploadPayload, error) {
			return &domain.UploadPayload{Files: files, ParentID: parentID}, nil
		},
	}
}

func requireRejection(t *testing.T, err error) *domain.RejectionError {
	t.Helper()

	var rejection *domain.RejectionError
	require.True(t, errors.As(err, &rejection), "expected RejectionError, got %v", err)
	return rejection
}

func TestUploadGate_ConcreteRateScenario(t *testing.T) {
	fx := newGateFixture(t, scenarioConfig())
	ctx := context.Background()
	content := bytes.Repeat([]byte("a"), 500*1024)

	upload := func() (*domain.StoredFile, error) {
		return fx.gate.Handle(ctx, newUploadRequest("1.2.3.4", "", newUploadFile("notes.txt", content, "text/plain")))
	}

	first, err := upload()
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	fx.clock.Advance(3 * time.Second)
	_, err = upload()
	require.NoError(t, err)

	fx.clock.Advance(3 * time.Second)
	_, err = upload()
	rejection := requireRejection(t, err)
	assert.Equal(t, 429, rejection.HTTPStatus())
	assert.Equal(t, domain.DenyMinuteLimit, rejection.DenyReason)
	assert.Equal(t, 30, rejection.RetryAfter)

	fx.clock.Advance(5 * time.Second)
	_, err = upload()
	rejection = requireRejection(t, err)
	assert.Equal(t, 429, rejection.HTTPStatus())
	assert.Equal(t, domain.DenyCooldown, rejection.DenyReason)
	assert.Equal(t, 25, rejection.RetryAfter)
	assert.Contains(t, rejection.Reason, "25")

	files, err := fx.objects.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestUploadGate_FileValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    *domain.UploadConfig
		file      *domain.UploadFile
		reasonHas string
	}{
		{
			name:      "2MB file against 1MB ceiling",
			config:    scenarioConfig(),
			file:      newUploadFile("big.txt", make([]byte, 2*1024*1024), "text/plain"),
			reasonHas: "1MB",
		},
		{
			name:      "Blocked extension under default config",
			config:    domain.DefaultUploadConfig(),
			file:      newUploadFile("malware.EXE", []byte("MZ"), "application/x-msdownload"),
			reasonHas: ".exe",
		},
		{
			name:      "Path traversal in name",
			config:    domain.DefaultUploadConfig(),
			file:      newUploadFile("../secret", []byte("x"), "text/plain"),
			reasonHas: "invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newGateFixture(t, tt.config)
			ctx := context.Background()

			stored, err := fx.gate.Handle(ctx, newUploadRequest("5.6.7.8", "", tt.file))

			assert.Nil(t, stored)
			rejection := requireRejection(t, err)
			assert.Equal(t, 400, rejection.HTTPStatus())
			assert.Contains(t, rejection.Reason, tt.reasonHas)

			files, err := fx.objects.ListAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestUploadGate_FileCount(t *testing.T) {
	tests := []struct {
		name  string
		files []*domain.UploadFile
	}{
		{name: "No file", files: nil},
		{
			name: "Two files",
			files: []*domain.UploadFile{
				newUploadFile("a.txt", []byte("a"), "text/plain"),
				newUploadFile("b.txt", []byte("b"), "text/plain"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newGateFixture(t, domain.DefaultUploadConfig())

			_, err := fx.gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", tt.files...))

			rejection := requireRejection(t, err)
			assert.Equal(t, domain.RejectBadRequest, rejection.Kind)
		})
	}
}

func TestUploadGate_PayloadLoadedOnlyAfterRateCheck(t *testing.T) {
	fx := newGateFixture(t, scenarioConfig())
	ctx := context.Background()

	loads := 0
	request := &domain.UploadRequest{
		ClientID: "3.3.3.3",
		LoadPayload: func() (*domain.UploadPayload, error) {
			loads++
			return &domain.UploadPayload{Files: []*domain.UploadFile{newUploadFile("a.txt", []byte("a"), "text/plain")}}, nil
		},
	}

	for i := 0; i < 4; i++ {
		_, _ = fx.gate.Handle(ctx, request)
	}

	assert.Equal(t, 2, loads)
}

func TestUploadGate_UnknownIdentity(t *testing.T) {
	fx := newGateFixture(t, scenarioConfig())
	ctx := context.Background()

	_, err := fx.gate.Handle(ctx, newUploadRequest("", "", newUploadFile("a.txt", []byte("a"), "text/plain")))
	require.NoError(t, err)

	status, err := fx.limiter.Status(ctx, UnknownIdentity)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.MinuteCount)
}

func TestUploadGate_InvalidatesDestinationListing(t *testing.T) {
	fx := newGateFixture(t, domain.DefaultUploadConfig())
	ctx := context.Background()

	require.NoError(t, fx.listings.Set(ctx, rootFolder, []*domain.StoredFile{}))
	require.NoError(t, fx.listings.Set(ctx, "folder-1", []*domain.StoredFile{}))
	require.NoError(t, fx.listings.Set(ctx, "folder-2", []*domain.StoredFile{}))

	stored, err := fx.gate.Handle(ctx, newUploadRequest("1.1.1.1", "folder-1", newUploadFile("a.txt", []byte("a"), "text/plain")))
	require.NoError(t, err)
	assert.Equal(t, []string{"folder-1"}, stored.Parents)

	_, found, err := fx.listings.Get(ctx, "folder-1")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = fx.listings.Get(ctx, "folder-2")
	require.NoError(t, err)
	assert.True(t, found)

	// Sem pasta de destino o upload vai para a raiz
	stored, err = fx.gate.Handle(ctx, newUploadRequest("1.1.1.1", "", newUploadFile("b.txt", []byte("b"), "text/plain")))
	require.NoError(t, err)
	assert.Equal(t, []string{rootFolder}, stored.Parents)

	_, found, err = fx.listings.Get(ctx, rootFolder)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUploadGate_SniffsMimeType(t *testing.T) {
	fx := newGateFixture(t, domain.DefaultUploadConfig())
	ctx := context.Background()

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 4096)...)

	for _, declared := range []string{"", "application/octet-stream"} {
		stored, err := fx.gate.Handle(ctx, newUploadRequest("1.1.1.1", "", newUploadFile("image.png", png, declared)))
		require.NoError(t, err)
		assert.Equal(t, "image/png", stored.MimeType)
		assert.Equal(t, int64(len(png)), stored.Size)

		_, content, err := fx.objects.Open(ctx, stored.ID)
		require.NoError(t, err)
		data, err := io.ReadAll(content)
		content.Close()
		require.NoError(t, err)
		assert.Equal(t, png, data)
	}

	// MIME informado pelo cliente é mantido
	stored, err := fx.gate.Handle(ctx, newUploadRequest("1.1.1.1", "", newUploadFile("data.csv", []byte("a,b\n1,2\n"), "text/csv")))
	require.NoError(t, err)
	assert.Equal(t, "text/csv", stored.MimeType)
}

func TestUploadGate_InternalFailures(t *testing.T) {
	storeErr := errors.New("connection refused")

	t.Run("Counter store unavailable fails closed", func(t *testing.T) {
		counters := new(MockCounterStore)
		counters.On("CooldownRemaining", mock.Anything, mock.Anything).Return(time.Duration(0), storeErr)

		objects := new(MockObjectStorage)
		gate := NewUploadGate(
			staticConfig{config: domain.DefaultUploadConfig()},
			NewRateLimiterService(counters, logger.NewNopLogger()),
			NewFileValidator(),
			objects,
			new(MockListingCache),
			GateOptions{RootFolderID: rootFolder},
			logger.NewNopLogger(),
		)

		_, err := gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", newUploadFile("a.txt", []byte("a"), "text/plain")))

		rejection := requireRejection(t, err)
		assert.Equal(t, 500, rejection.HTTPStatus())
		assert.Equal(t, "Failed to upload file", rejection.Reason)
		assert.NotContains(t, rejection.Reason, "connection refused")
		assert.ErrorIs(t, err, storeErr)
		objects.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Malformed payload", func(t *testing.T) {
		fx := newGateFixture(t, domain.DefaultUploadConfig())
		request := &domain.UploadRequest{
			ClientID: "1.1.1.1",
			LoadPayload: func() (*domain.UploadPayload, error) {
				return nil, errors.New("multipart: NextPart: EOF")
			},
		}

		_, err := fx.gate.Handle(context.Background(), request)

		rejection := requireRejection(t, err)
		assert.Equal(t, domain.RejectInternal, rejection.Kind)
		assert.NotContains(t, rejection.Reason, "multipart")
	})

	t.Run("Storage backend failure", func(t *testing.T) {
		limiter, _ := newTestLimiter(t)
		objects := new(MockObjectStorage)
		objects.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, storeErr)
		listings := new(MockListingCache)

		gate := NewUploadGate(
			staticConfig{config: domain.DefaultUploadConfig()},
			limiter,
			NewFileValidator(),
			objects,
			listings,
			GateOptions{RootFolderID: rootFolder},
			logger.NewNopLogger(),
		)

		_, err := gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", newUploadFile("a.txt", []byte("a"), "text/plain")))

		rejection := requireRejection(t, err)
		assert.Equal(t, 500, rejection.HTTPStatus())
		assert.ErrorIs(t, err, storeErr)
		listings.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("File cannot be opened", func(t *testing.T) {
		fx := newGateFixture(t, domain.DefaultUploadConfig())
		file := newUploadFile("a.txt", []byte("a"), "text/plain")
		file.Open = func() (io.ReadCloser, error) { return nil, errors.New("temp file removed") }

		_, err := fx.gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", file))

		rejection := requireRejection(t, err)
		assert.Equal(t, domain.RejectInternal, rejection.Kind)
	})
}

func TestUploadGate_ListingInvalidationFailureStillAccepts(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	objects := new(MockObjectStorage)
	objects.On("Create", mock.Anything, mock.MatchedBy(func(meta *domain.ObjectMeta) bool {
		return meta.Name == "a.txt" && meta.ParentID == rootFolder && meta.MimeType == "text/plain"
	}), mock.Anything).Return(&domain.StoredFile{ID: "file-1", Size: 1}, nil)

	listings := new(MockListingCache)
	listings.On("Invalidate", mock.Anything, rootFolder).Return(errors.New("redis down"))

	gate := NewUploadGate(
		staticConfig{config: domain.DefaultUploadConfig()},
		limiter,
		NewFileValidator(),
		objects,
		listings,
		GateOptions{RootFolderID: rootFolder},
		logger.NewNopLogger(),
	)

	stored, err := gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", newUploadFile("a.txt", []byte("a"), "text/plain")))
	require.NoError(t, err)
	assert.Equal(t, "file-1", stored.ID)

	objects.AssertExpectations(t)
	listings.AssertExpectations(t)
}

func TestUploadGate_BoundsCounterStoreCalls(t *testing.T) {
	counters := new(MockCounterStore)
	hasDeadline := mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})
	counters.On("CooldownRemaining", hasDeadline, "upload_cooldown:1.1.1.1").Return(time.Duration(0), nil)
	counters.On("Increment", hasDeadline, "upload_rate:1.1.1.1:minute", time.Minute).Return(int64(1), time.Minute, nil)
	counters.On("Increment", hasDeadline, "upload_rate:1.1.1.1:hour", time.Hour).Return(int64(1), time.Hour, nil)

	objects := new(MockObjectStorage)
	objects.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(&domain.StoredFile{ID: "file-1"}, nil)
	listings := new(MockListingCache)
	listings.On("Invalidate", mock.Anything, rootFolder).Return(nil)

	gate := NewUploadGate(
		staticConfig{config: domain.DefaultUploadConfig()},
		NewRateLimiterService(counters, logger.NewNopLogger()),
		NewFileValidator(),
		objects,
		listings,
		GateOptions{RootFolderID: rootFolder, StoreTimeout: 2 * time.Second},
		logger.NewNopLogger(),
	)

	_, err := gate.Handle(context.Background(), newUploadRequest("1.1.1.1", "", newUploadFile("a.txt", []byte("a"), "text/plain")))
	require.NoError(t, err)

	counters.AssertExpectations(t)
}

func TestUploadGate_ConfigStoreOutageUsesDefaults(t *testing.T) {
	configs := new(MockConfigStore)
	configs.On("Get", mock.Anything).Return(nil, errors.New("redis down"))

	limiter, _ := newTestLimiter(t)
	admin := NewAdminConfigService(configs, NewSharedSecretAuthenticator(testSecret), limiter, logger.NewNopLogger())

	objects, err := storage.NewFilesystemStorage(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	listings := storage.NewMemoryListingCache(time.Minute)
	t.Cleanup(func() { _ = listings.Close() })

	gate := NewUploadGate(admin, limiter, NewFileValidator(), objects, listings, GateOptions{RootFolderID: rootFolder}, logger.NewNopLogger())
	ctx := context.Background()

	// Padrão: 5 por minuto
	for i := 0; i < 5; i++ {
		_, err := gate.Handle(ctx, newUploadRequest("7.7.7.7", "", newUploadFile("a.txt", []byte("a"), "text/plain")))
		require.NoError(t, err)
	}

	_, err = gate.Handle(ctx, newUploadRequest("7.7.7.7", "", newUploadFile("a.txt", []byte("a"), "text/plain")))
	rejection := requireRejection(t, err)
	assert.Equal(t, 60, rejection.RetryAfter)
	assert.True(t, strings.Contains(rejection.Reason, "5 uploads per minute"))
}

func TestUploadGate_PayloadValidationError(t *testing.T) {
	fx := newGateFixture(t, domain.DefaultUploadConfig())
	request := &domain.UploadRequest{
		ClientID: "1.1.1.1",
		LoadPayload: func() (*domain.UploadPayload, error) {
			return nil, &domain.FileValidationError{Check: domain.CheckSize, Reason: "Request body too large."}
		},
	}

	_, err := fx.gate.Handle(context.Background(), request)

	rejection := requireRejection(t, err)
	assert.Equal(t, 400, rejection.HTTPStatus())
	assert.Equal(t, "Request body too large.", rejection.Reason)
}
