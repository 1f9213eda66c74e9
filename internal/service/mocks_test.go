package service

import (
	"context"
	"io"
	"sync"
	"time"

	"upload-gate/internal/domain"

	"github.com/stretchr/testify/mock"
)

// fakeClock é um relógio controlado pelos testes
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockCounterStore é um mock do CounterStore para testes
type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Get(1).(time.Duration), args.Error(2)
}

func (m *MockCounterStore) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Get(1).(time.Duration), args.Error(2)
}

func (m *MockCounterStore) SetCooldown(ctx context.Context, key string, duration time.Duration) error {
	args := m.Called(ctx, key, duration)
	return args.Error(0)
}

func (m *MockCounterStore) CooldownRemaining(ctx context.Context, key string) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockCounterStore) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCounterStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockConfigStore é um mock do ConfigStore para testes
type MockConfigStore struct {
	mock.Mock
}

func (m *MockConfigStore) Get(ctx context.Context) (*domain.UploadConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadConfig), args.Error(1)
}

func (m *MockConfigStore) Set(ctx context.Context, config *domain.UploadConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

// MockObjectStorage é um mock do ObjectStorage para testes
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Create(ctx context.Context, meta *domain.ObjectMeta, content io.Reader) (*domain.StoredFile, error) {
	args := m.Called(ctx, meta, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StoredFile), args.Error(1)
}

func (m *MockObjectStorage) List(ctx context.Context, parentID string) ([]*domain.StoredFile, error) {
	args := m.Called(ctx, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StoredFile), args.Error(1)
}

func (m *MockObjectStorage) ListAll(ctx context.Context) ([]*domain.StoredFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StoredFile), args.Error(1)
}

func (m *MockObjectStorage) Open(ctx context.Context, id string) (*domain.StoredFile, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	var file *domain.StoredFile
	if args.Get(0) != nil {
		file = args.Get(0).(*domain.StoredFile)
	}
	var content io.ReadCloser
	if args.Get(1) != nil {
		content = args.Get(1).(io.ReadCloser)
	}
	return file, content, args.Error(2)
}

// MockListingCache é um mock do ListingCache para testes
type MockListingCache struct {
	mock.Mock
}

func (m *MockListingCache) Get(ctx context.Context, folderID string) ([]*domain.StoredFile, bool, error) {
	args := m.Called(ctx, folderID)
	var files []*domain.StoredFile
	if args.Get(0) != nil {
		files = args.Get(0).([]*domain.StoredFile)
	}
	return files, args.Bool(1), args.Error(2)
}

func (m *MockListingCache) Set(ctx context.Context, folderID string, files []*domain.StoredFile) error {
	args := m.Called(ctx, folderID, files)
	return args.Error(0)
}

func (m *MockListingCache) Invalidate(ctx context.Context, folderID string) error {
	args := m.Called(ctx, folderID)
	return args.Error(0)
}

func (m *MockListingCache) Clear(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// staticConfig implementa ConfigReader com uma configuração fixa
type staticConfig struct {
	config *domain.UploadConfig
}

func (s staticConfig) Read(ctx context.Context) *domain.UploadConfig {
	return s.config.Clone()
}

// scenarioConfig é a configuração dos cenários concretos de rate limit
func scenarioConfig() *domain.UploadConfig {
	return &domain.UploadConfig{
		MaxUploadsPerMinute: 2,
		MaxUploadsPerHour:   100,
		MaxFileSize:         1,
		CooldownAfterLimit:  30,
		BlockedExtensions:   []string{".exe"},
	}
}
