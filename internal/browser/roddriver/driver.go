// Package roddriver captures pages with a Chrome instance managed by go-rod.
package roddriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

const Name = "rod"

var ErrBrowserNotFound = errors.New("could not find a Chrome or Chromium executable; set browser.exec_path")

// Backend launches one browser per Acquire through rod's launcher. It never
// downloads a browser on its own.
type Backend struct {
	logger *zap.Logger
	// lookPath is swapped out in tests.
	lookPath func() (string, bool)
}

func New(logger *zap.Logger) *Backend {
	return &Backend{logger: logger.Named("rod"), lookPath: launcher.LookPath}
}

func (b *Backend) Name() string { return Name }

// newLauncher configures the launcher for a single run.
func newLauncher(ctx context.Context, bin string, opts capture.LaunchOptions) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(opts.Headless).
		Set("disable-dev-shm-usage").
		Set("hide-scrollbars")

	if opts.DisableSandbox {
		l = l.NoSandbox(true).Set("disable-setuid-sandbox")
	}
	if opts.DisableGPU {
		l = l.Set("disable-gpu")
	}
	if opts.IgnoreTLSErrors {
		l = l.Set("ignore-certificate-errors").Set("allow-insecure-localhost")
	}
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	for _, f := range opts.ExtraFlags() {
		if f.HasValue {
			l = l.Set(flags.Flag(f.Name), f.Value)
		} else {
			l = l.Set(flags.Flag(f.Name))
		}
	}
	return l
}

func (b *Backend) Acquire(ctx context.Context, opts capture.LaunchOptions) (capture.Browser, error) {
	bin := opts.ExecPath
	if bin == "" {
		path, found := b.lookPath()
		if !found {
			return nil, ErrBrowserNotFound
		}
		bin = path
	}

	l := newLauncher(ctx, bin, opts)
	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.logger.Debug("Browser started.", zap.String("bin", bin), zap.String("control_url", controlURL))
	return &instance{launcher: l, browser: browser, logger: b.logger}, nil
}

type instance struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger
}

func (i *instance) NewPage(ctx context.Context, viewport capture.Viewport) (capture.Page, error) {
	p, err := i.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("could not open page: %w", err)
	}

	scale := viewport.Scale
	if scale <= 0 {
		scale = 1
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewport.Width,
		Height:            viewport.Height,
		DeviceScaleFactor: scale,
	})
	if err != nil {
		return nil, fmt.Errorf("could not set window size: %w", err)
	}
	return &tab{page: p, logger: i.logger}, nil
}

// Release closes the browser and then makes sure the process is gone and its
// profile directory removed.
func (i *instance) Release(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- i.browser.Close()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	i.launcher.Kill()
	i.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("error closing browser: %w", err)
	}
	return nil
}

type tab struct {
	page   *rod.Page
	logger *zap.Logger
}

// lifecycleEvent maps a wait condition to the Chrome lifecycle event that
// signals it. Chrome's networkIdle and networkAlmostIdle events use a fixed
// 500ms quiet window.
func lifecycleEvent(w capture.WaitCondition) proto.PageLifecycleEventName {
	switch w {
	case capture.WaitLoad:
		return proto.PageLifecycleEventNameLoad
	case capture.WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded
	case capture.WaitNetworkIdle0:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameNetworkAlmostIdle
	}
}

func (t *tab) Navigate(ctx context.Context, url string, opts capture.NavigateOptions) error {
	p := t.page.Context(ctx)

	wait := p.WaitNavigation(lifecycleEvent(opts.WaitUntil))
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (t *tab) Capture(ctx context.Context, opts capture.ShotOptions) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: screenshotFormat(opts.Format)}
	if req.Format != proto.PageCaptureScreenshotFormatPng && opts.Quality > 0 {
		req.Quality = gson.Int(opts.Quality)
	}
	return t.page.Context(ctx).Screenshot(opts.FullPage, req)
}

func screenshotFormat(f capture.Format) proto.PageCaptureScreenshotFormat {
	switch f {
	case capture.FormatJPEG:
		return proto.PageCaptureScreenshotFormatJpeg
	case capture.FormatWebP:
		return proto.PageCaptureScreenshotFormatWebp
	default:
		return proto.PageCaptureScreenshotFormatPng
	}
}
