package roddriver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

func TestNewLauncher(t *testing.T) {
	ctx := context.Background()

	t.Run("Headless", func(t *testing.T) {
		l := newLauncher(ctx, "/usr/bin/chromium", capture.LaunchOptions{Headless: true})
		assert.True(t, l.Has(flags.Flag("headless")))
		assert.True(t, l.Has(flags.Flag("disable-dev-shm-usage")))
	})

	t.Run("Headful", func(t *testing.T) {
		l := newLauncher(ctx, "chrome", capture.LaunchOptions{Headless: false})
		assert.False(t, l.Has(flags.Flag("headless")))
	})

	t.Run("SandboxDisabled", func(t *testing.T) {
		l := newLauncher(ctx, "chrome", capture.LaunchOptions{DisableSandbox: true})
		assert.True(t, l.Has(flags.Flag("no-sandbox")))
		assert.True(t, l.Has(flags.Flag("disable-setuid-sandbox")))
	})

	t.Run("ExtraArgsAndUserAgent", func(t *testing.T) {
		l := newLauncher(ctx, "chrome", capture.LaunchOptions{
			UserAgent: "capture-test/1.0",
			Args:      []string{"--lang=fr-FR", "mute-audio"},
		})
		assert.Equal(t, "capture-test/1.0", l.Get(flags.Flag("user-agent")))
		assert.Equal(t, "fr-FR", l.Get(flags.Flag("lang")))
		assert.True(t, l.Has(flags.Flag("mute-audio")))
	})
}

func TestAcquire_NoBrowserFound(t *testing.T) {
	b := New(zap.NewNop())
	b.lookPath = func() (string, bool) { return "", false }

	_, err := b.Acquire(context.Background(), capture.LaunchOptions{Headless: true})
	assert.ErrorIs(t, err, ErrBrowserNotFound)
}

func TestLifecycleEvent(t *testing.T) {
	assert.Equal(t, proto.PageLifecycleEventNameLoad, lifecycleEvent(capture.WaitLoad))
	assert.Equal(t, proto.PageLifecycleEventNameDOMContentLoaded, lifecycleEvent(capture.WaitDOMContentLoaded))
	assert.Equal(t, proto.PageLifecycleEventNameNetworkIdle, lifecycleEvent(capture.WaitNetworkIdle0))
	assert.Equal(t, proto.PageLifecycleEventNameNetworkAlmostIdle, lifecycleEvent(capture.WaitNetworkIdle2))
}

func TestScreenshotFormat(t *testing.T) {
	assert.Equal(t, proto.PageCaptureScreenshotFormatPng, screenshotFormat(capture.FormatPNG))
	assert.Equal(t, proto.PageCaptureScreenshotFormatPng, screenshotFormat(""))
	assert.Equal(t, proto.PageCaptureScreenshotFormatJpeg, screenshotFormat(capture.FormatJPEG))
	assert.Equal(t, proto.PageCaptureScreenshotFormatWebp, screenshotFormat(capture.FormatWebP))
}

func TestBackend_CapturePage(t *testing.T) {
	if testing.Short() {
		t.Skip("browser integration test skipped in short mode")
	}
	bin, found := launcher.LookPath()
	if !found {
		t.Skip("no Chrome or Chromium executable found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>rod capture</h1></body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	backend := New(zaptest.NewLogger(t))
	b, err := backend.Acquire(ctx, capture.LaunchOptions{Headless: true, DisableSandbox: true, ExecPath: bin})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, b.Release(context.Background()))
	}()

	page, err := b.NewPage(ctx, capture.Viewport{Width: 640, Height: 480})
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, srv.URL, capture.NavigateOptions{WaitUntil: capture.WaitNetworkIdle2}))

	img, err := page.Capture(ctx, capture.ShotOptions{FullPage: true, Format: capture.FormatPNG})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")))
}
