// Package cdpdriver captures pages with a Chrome instance driven over the
// DevTools protocol by chromedp.
package cdpdriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

// Name is the value of browser.backend that selects this driver.
const Name = "chromedp"

// contentSizeJS measures the full scrollable document.
const contentSizeJS = `({
	width: Math.max(document.documentElement.scrollWidth, document.body ? document.body.scrollWidth : 0, window.innerWidth),
	height: Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0, window.innerHeight)
})`

// Backend launches one local Chrome process per Acquire.
type Backend struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Backend {
	return &Backend{logger: logger.Named("chromedp")}
}

func (b *Backend) Name() string { return Name }

// Acquire starts a browser. The process outlives ctx and is stopped by Release;
// cancelling ctx while the launch is still in progress aborts it.
func (b *Backend) Acquire(ctx context.Context, opts capture.LaunchOptions) (capture.Browser, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(opts)...)
	sugar := b.logger.Sugar()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	stop := context.AfterFunc(ctx, cancelAlloc)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("browser launch interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b.logger.Debug("Browser started.", zap.Bool("headless", opts.Headless), zap.Bool("sandbox", !opts.DisableSandbox))
	return &instance{
		ctx:         browserCtx,
		cancel:      cancelBrowser,
		cancelAlloc: cancelAlloc,
		logger:      b.logger,
	}, nil
}

type instance struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger
}

func (i *instance) NewPage(ctx context.Context, viewport capture.Viewport) (capture.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(i.ctx)

	scale := viewport.Scale
	if scale <= 0 {
		scale = 1
	}

	// The first Run on a tab context creates the target, so it must use tabCtx
	// itself; ctx is honoured through AfterFunc.
	stop := context.AfterFunc(ctx, cancelTab)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(viewport.Width), int64(viewport.Height), scale, false),
	)
	stop()
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	t := &tab{ctx: tabCtx, tracker: newIdleTracker(), logger: i.logger}
	chromedp.ListenTarget(tabCtx, t.tracker.handle)
	return t, nil
}

// Release closes the browser gracefully, falling back to killing the process
// when ctx expires first.
func (i *instance) Release(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(i.ctx)
	}()

	select {
	case err := <-done:
		i.cancelAlloc()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("error closing browser: %w", err)
		}
		return nil
	case <-ctx.Done():
		i.cancel()
		i.cancelAlloc()
		return fmt.Errorf("browser did not shut down in time: %w", ctx.Err())
	}
}

type tab struct {
	ctx     context.Context
	tracker *idleTracker
	logger  *zap.Logger
}

// Navigate loads url and then, for the network idle conditions, waits for the
// tab's in-flight request count to settle. chromedp.Navigate returns after the
// load event, which also satisfies domcontentloaded.
func (t *tab) Navigate(ctx context.Context, url string, opts capture.NavigateOptions) error {
	runCtx, stop := bind(ctx, t.ctx)
	defer stop()

	t.tracker.reset()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return err
	}

	maxInflight := opts.WaitUntil.MaxInflight()
	if maxInflight < 0 {
		return nil
	}
	t.logger.Debug("Waiting for network to become idle.",
		zap.Int("max_inflight", maxInflight),
		zap.Int("inflight", t.tracker.active()),
	)
	return t.tracker.wait(runCtx, opts.IdleTime, maxInflight)
}

type contentSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (t *tab) Capture(ctx context.Context, opts capture.ShotOptions) ([]byte, error) {
	runCtx, stop := bind(ctx, t.ctx)
	defer stop()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot().WithFormat(screenshotFormat(opts.Format))
		if opts.Format != capture.FormatPNG && opts.Format != "" && opts.Quality > 0 {
			params = params.WithQuality(int64(opts.Quality))
		}

		if opts.FullPage {
			var size contentSize
			if err := chromedp.Evaluate(contentSizeJS, &size).Do(ctx); err != nil {
				return fmt.Errorf("could not measure page: %w", err)
			}
			params = params.
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{Width: size.Width, Height: size.Height, Scale: 1})
		}

		var err error
		buf, err = params.Do(ctx)
		return err
	}))
	return buf, err
}

func screenshotFormat(f capture.Format) page.CaptureScreenshotFormat {
	switch f {
	case capture.FormatJPEG:
		return page.CaptureScreenshotFormatJpeg
	case capture.FormatWebP:
		return page.CaptureScreenshotFormatWebp
	default:
		return page.CaptureScreenshotFormatPng
	}
}

// bind derives a context from target, which carries the chromedp executor, that
// also ends when parent does. A deadline on parent is copied so timeouts surface
// as context.DeadlineExceeded.
func bind(parent, target context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := parent.Deadline(); ok {
		ctx, cancel = context.WithDeadline(target, deadline)
	} else {
		ctx, cancel = context.WithCancel(target)
	}
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
