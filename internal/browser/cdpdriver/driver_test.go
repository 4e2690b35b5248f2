package cdpdriver_test

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/capture-cli/internal/browser/cdpdriver"
	"github.com/xkilldash9x/capture-cli/internal/capture"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// findChrome skips the test when no local Chrome is installed.
func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser integration test skipped in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome or Chromium executable found")
	return ""
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body style="height:3000px;background:#3a6"><h1>capture</h1></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBackend_CapturePage(t *testing.T) {
	execPath := findChrome(t)
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	backend := cdpdriver.New(zaptest.NewLogger(t))
	assert.Equal(t, "chromedp", backend.Name())

	b, err := backend.Acquire(ctx, capture.LaunchOptions{Headless: true, DisableSandbox: true, DisableGPU: true, ExecPath: execPath})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, b.Release(context.Background()))
	}()

	page, err := b.NewPage(ctx, capture.Viewport{Width: 640, Height: 480})
	require.NoError(t, err)

	err = page.Navigate(ctx, srv.URL, capture.NavigateOptions{WaitUntil: capture.WaitNetworkIdle0, IdleTime: 200 * time.Millisecond})
	require.NoError(t, err)

	viewport, err := page.Capture(ctx, capture.ShotOptions{Format: capture.FormatPNG})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(viewport, pngMagic))

	full, err := page.Capture(ctx, capture.ShotOptions{FullPage: true, Format: capture.FormatPNG})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(full, pngMagic))
	viewCfg, err := png.DecodeConfig(bytes.NewReader(viewport))
	require.NoError(t, err)
	fullCfg, err := png.DecodeConfig(bytes.NewReader(full))
	require.NoError(t, err)
	assert.Equal(t, 480, viewCfg.Height)
	assert.GreaterOrEqual(t, fullCfg.Height, 3000)

	jpeg, err := page.Capture(ctx, capture.ShotOptions{Format: capture.FormatJPEG, Quality: 70})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(jpeg, []byte{0xff, 0xd8}))
}

func TestBackend_NavigationError(t *testing.T) {
	execPath := findChrome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := cdpdriver.New(zaptest.NewLogger(t)).Acquire(ctx, capture.LaunchOptions{Headless: true, DisableSandbox: true, ExecPath: execPath})
	require.NoError(t, err)
	defer b.Release(context.Background())

	page, err := b.NewPage(ctx, capture.Viewport{Width: 640, Height: 480})
	require.NoError(t, err)

	err = page.Navigate(ctx, "http://127.0.0.1:1/", capture.NavigateOptions{WaitUntil: capture.WaitLoad})
	assert.Error(t, err)
}

func TestBackend_AcquireBadExecutable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := cdpdriver.New(zaptest.NewLogger(t)).Acquire(ctx, capture.LaunchOptions{Headless: true, ExecPath: "/nonexistent/chrome"})
	require.Error(t, err)
}
