package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/cache"
	"github.com/xkilldash9x/capture-cli/internal/observability"
)

const defaultReleaseTimeout = 10 * time.Second

// Command turns a URL into a saved image using a Backend.
type Command struct {
	backend        Backend
	logger         *zap.Logger
	tracer         trace.Tracer
	writer         ArtifactWriter
	cache          ArtifactCache
	policy         Policy
	defaultScheme  string
	releaseTimeout time.Duration
}

// Option configures a Command.
type Option func(*Command)

// WithWriter replaces the default FileWriter.
func WithWriter(w ArtifactWriter) Option {
	return func(c *Command) { c.writer = w }
}

// WithCache enables the artifact cache.
func WithCache(a ArtifactCache) Option {
	return func(c *Command) { c.cache = a }
}

// WithPolicy installs a URL policy consulted before any browser is acquired.
func WithPolicy(p Policy) Option {
	return func(c *Command) { c.policy = p }
}

// WithDefaultScheme sets the scheme prefixed to URLs given without one.
func WithDefaultScheme(scheme string) Option {
	return func(c *Command) { c.defaultScheme = scheme }
}

// WithReleaseTimeout bounds the browser release step.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *Command) {
		if d > 0 {
			c.releaseTimeout = d
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Command) { c.tracer = t }
}

// NewCommand creates a Command bound to a backend.
func NewCommand(backend Backend, logger *zap.Logger, opts ...Option) *Command {
	c := &Command{
		backend:        backend,
		logger:         logger.Named("capture"),
		tracer:         observability.Tracer(),
		writer:         NewFileWriter(),
		defaultScheme:  "http",
		releaseTimeout: defaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one capture. Argument problems are reported before the backend is
// touched; once a browser is acquired it is released exactly once, whatever happens
// afterwards.
func (c *Command) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()

	req, err = c.prepare(req)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := c.logger.With(
		zap.String("capture_id", id),
		zap.String("url", req.TargetURL),
		zap.String("backend", c.backend.Name()),
	)

	ctx, span := c.tracer.Start(ctx, "capture",
		trace.WithAttributes(
			attribute.String("capture.id", id),
			attribute.String("capture.url", req.TargetURL),
			attribute.String("capture.backend", c.backend.Name()),
			attribute.String("capture.wait_until", string(req.WaitUntil)),
			attribute.Bool("capture.full_page", req.Shot.FullPage),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.checkPolicy(ctx, req.TargetURL); err != nil {
		return nil, err
	}

	var key string
	if c.cache != nil {
		key = c.CacheKey(req)
		if data, ok := c.lookup(ctx, key, logger); ok {
			if err := c.writer.Write(req.OutputPath, data); err != nil {
				return nil, newError(KindCapture, "write", err)
			}
			logger.Info("Screenshot served from cache.", zap.String("output", req.OutputPath))
			return &Result{ID: id, OutputPath: req.OutputPath, Bytes: len(data), CacheHit: true, Duration: time.Since(start)}, nil
		}
	}

	data, err := c.shoot(ctx, req, logger)
	if err != nil {
		logger.Debug("Capture failed.", zap.Error(err))
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data); err != nil {
			logger.Warn("Could not store screenshot in cache.", zap.Error(err))
		}
	}

	res = &Result{ID: id, OutputPath: req.OutputPath, Bytes: len(data), Duration: time.Since(start)}
	span.SetAttributes(attribute.Int("capture.bytes", res.Bytes))
	logger.Info("Screenshot saved.",
		zap.String("output", res.OutputPath),
		zap.Int("bytes", res.Bytes),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// prepare validates the request and fills in derived defaults.
func (c *Command) prepare(req Request) (Request, error) {
	if req.TargetURL == "" {
		return req, UsageError(ErrMissingURL)
	}
	if req.OutputPath == "" {
		return req, UsageError(ErrMissingOutput)
	}

	target, err := NormalizeURL(req.TargetURL, c.defaultScheme)
	if err != nil {
		return req, UsageError(err)
	}
	req.TargetURL = target

	output, err := NormalizeOutputPath(req.OutputPath)
	if err != nil {
		return req, UsageError(err)
	}
	req.OutputPath = output

	if req.WaitUntil == "" {
		req.WaitUntil = WaitNetworkIdle2
	}
	if req.IdleTime <= 0 {
		req.IdleTime = DefaultIdleTime
	}
	if req.Shot.Format == "" {
		req.Shot.Format = FormatFromPath(req.OutputPath)
	}
	return req, nil
}

func (c *Command) checkPolicy(ctx context.Context, target string) error {
	if c.policy == nil {
		return nil
	}
	return c.stage(ctx, "policy", func(ctx context.Context) error {
		allowed, err := c.policy.Allowed(ctx, target)
		if err != nil {
			return newError(KindNavigation, "robots", err)
		}
		if !allowed {
			return newError(KindNavigation, "robots", ErrDisallowed)
		}
		return nil
	})
}

func (c *Command) lookup(ctx context.Context, key string, logger *zap.Logger) ([]byte, bool) {
	data, err := c.cache.Get(ctx, key)
	switch {
	case err == nil && len(data) > 0:
		return data, true
	case err == nil, errors.Is(err, cache.ErrCacheMiss):
		logger.Debug("Cache miss.", zap.String("key", key))
	default:
		logger.Warn("Cache lookup failed; capturing live.", zap.Error(err))
	}
	return nil, false
}

// shoot runs the acquire, open, navigate, capture and write steps. The browser is
// released on every path out of this function.
func (c *Command) shoot(ctx context.Context, req Request, logger *zap.Logger) ([]byte, error) {
	var browser Browser
	err := c.stage(ctx, "acquire", func(ctx context.Context) error {
		var err error
		browser, err = c.backend.Acquire(ctx, req.Launch)
		return err
	})
	if err != nil {
		return nil, newError(KindAcquisition, "acquire", err)
	}
	defer c.release(ctx, browser, logger)
	logger.Debug("Browser acquired.")

	var page Page
	err = c.stage(ctx, "open", func(ctx context.Context) error {
		var err error
		page, err = browser.NewPage(ctx, req.Viewport)
		return err
	})
	if err != nil {
		return nil, newError(KindAcquisition, "open", err)
	}

	err = c.stage(ctx, "navigate", func(ctx context.Context) error {
		navCtx := ctx
		if req.NavigationTimeout > 0 {
			var cancel context.CancelFunc
			navCtx, cancel = context.WithTimeout(ctx, req.NavigationTimeout)
			defer cancel()
		}
		err := page.Navigate(navCtx, req.TargetURL, NavigateOptions{
			WaitUntil: req.WaitUntil,
			IdleTime:  req.IdleTime,
			FullPage:  req.Shot.FullPage,
		})
		if err != nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("timed out after %s waiting for %s: %w", req.NavigationTimeout, req.WaitUntil, err)
		}
		return err
	})
	if err != nil {
		return nil, newError(KindNavigation, "navigate", err)
	}
	logger.Debug("Navigation finished.", zap.String("wait_until", string(req.WaitUntil)))

	var data []byte
	err = c.stage(ctx, "capture", func(ctx context.Context) error {
		var err error
		data, err = page.Capture(ctx, req.Shot)
		if err == nil && len(data) == 0 {
			err = errors.New("backend returned an empty image")
		}
		return err
	})
	if err != nil {
		return nil, newError(KindCapture, "capture", err)
	}

	if err := c.writer.Write(req.OutputPath, data); err != nil {
		return nil, newError(KindCapture, "write", err)
	}
	return data, nil
}

// release frees the browser with a context that outlives cancellation of ctx, so
// an interrupted run still shuts the browser down.
func (c *Command) release(ctx context.Context, browser Browser, logger *zap.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.releaseTimeout)
	defer cancel()

	_ = c.stage(releaseCtx, "release", func(ctx context.Context) error {
		if err := browser.Release(ctx); err != nil {
			logger.Warn("Failed to release browser instance.", zap.Error(err))
			return err
		}
		logger.Debug("Browser released.")
		return nil
	})
}

func (c *Command) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "capture."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// CacheKey identifies the image req would produce with this command's backend.
// The output path is not part of the key.
func (c *Command) CacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%t|%s|%d|%dx%d@%g|%q|%q",
		c.backend.Name(),
		req.TargetURL,
		req.WaitUntil,
		req.IdleTime,
		req.Shot.FullPage,
		req.Shot.Format,
		req.Shot.Quality,
		req.Viewport.Width, req.Viewport.Height, req.Viewport.Scale,
		req.Launch.UserAgent,
		req.Launch.Args,
	)
	return hex.EncodeToString(h.Sum(nil))
}
