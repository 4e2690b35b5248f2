package capture

import "context"

// Backend acquires browser instances. Implementations live under internal/browser.
type Backend interface {
	// Name identifies the backend in logs and traces.
	Name() string
	Acquire(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser instance, owned by a single invocation.
type Browser interface {
	NewPage(ctx context.Context, viewport Viewport) (Page, error)
	// Release stops the instance. Command.Run calls it exactly once per
	// successful Acquire.
	Release(ctx context.Context) error
}

// Page is a tab inside a Browser.
type Page interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Capture(ctx context.Context, opts ShotOptions) ([]byte, error)
}

// Policy decides whether a URL may be captured at all.
type Policy interface {
	Allowed(ctx context.Context, targetURL string) (bool, error)
}

// ArtifactCache stores previously captured images.
type ArtifactCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ArtifactWriter persists the captured image.
type ArtifactWriter interface {
	Write(path string, data []byte) error
}
