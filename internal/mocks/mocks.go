// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

// -- Backend Mocks --

// MockBackend mocks capture.Backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockBackend) Acquire(ctx context.Context, opts capture.LaunchOptions) (capture.Browser, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(capture.Browser), args.Error(1)
}

// MockBrowser mocks capture.Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) NewPage(ctx context.Context, viewport capture.Viewport) (capture.Page, error) {
	args := m.Called(ctx, viewport)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(capture.Page), args.Error(1)
}

func (m *MockBrowser) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPage mocks capture.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string, opts capture.NavigateOptions) error {
	args := m.Called(ctx, url, opts)
	return args.Error(0)
}

func (m *MockPage) Capture(ctx context.Context, opts capture.ShotOptions) ([]byte, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// -- Collaborator Mocks --

// MockPolicy mocks capture.Policy.
type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Allowed(ctx context.Context, targetURL string) (bool, error) {
	args := m.Called(ctx, targetURL)
	return args.Bool(0), args.Error(1)
}

// MockCache mocks capture.ArtifactCache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

// MockWriter mocks capture.ArtifactWriter.
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) Write(path string, data []byte) error {
	args := m.Called(path, data)
	return args.Error(0)
}

// -- Call Recorder --

// CallLog records the order in which backend steps were invoked. Mocks register
// entries through Run hooks, e.g. On("Release", ...).Run(log.Record("release")).
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) Record(name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.calls = append(l.calls, name)
	}
}

// Calls returns a copy of the recorded sequence.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
