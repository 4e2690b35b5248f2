// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/browser/cdpdriver"
	"github.com/xkilldash9x/capture-cli/internal/browser/remote"
	"github.com/xkilldash9x/capture-cli/internal/browser/roddriver"
	"github.com/xkilldash9x/capture-cli/internal/cache"
	"github.com/xkilldash9x/capture-cli/internal/capture"
	"github.com/xkilldash9x/capture-cli/internal/config"
	"github.com/xkilldash9x/capture-cli/internal/network"
	"github.com/xkilldash9x/capture-cli/internal/robots"
)

// ComponentFactory creates the set of components needed for a capture.
// cmd depends on this interface so the command logic can be tested without a browser.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the backend, the optional cache and robots policy, and the
// capture command. Nothing is launched here; browsers start inside Command.Run.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	components := &Components{logger: logger}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Debug("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Backend
	backend, err := NewBackend(cfg, logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	logger.Debug("Browser backend selected.", zap.String("backend", backend.Name()))

	opts := []capture.Option{
		capture.WithDefaultScheme(cfg.Capture.DefaultScheme),
		capture.WithReleaseTimeout(cfg.Capture.ReleaseTimeout),
	}

	// 2. Capture cache
	if cfg.Cache.Enabled {
		store, err := cache.Open(ctx, cfg.Cache, logger)
		if err != nil {
			// The cache is an optimisation; run without it.
			logger.Warn("Capture cache unavailable, continuing without it.", zap.Error(err))
		} else {
			components.Cache = store
			opts = append(opts, capture.WithCache(store))
		}
	}

	// 3. Robots policy
	if cfg.Capture.RespectRobots {
		client := network.NewClient(newClientConfig(cfg, logger))
		agent := cfg.Browser.UserAgent
		if agent == "" {
			agent = network.DefaultUserAgent
		}
		opts = append(opts, capture.WithPolicy(robots.NewChecker(client, agent, logger)))
		logger.Debug("robots.txt policy enabled.", zap.String("agent", agent))
	}

	components.Command = capture.NewCommand(backend, logger, opts...)
	return components, nil
}

// NewBackend returns the backend named by browser.backend.
func NewBackend(cfg *config.Config, logger *zap.Logger) (capture.Backend, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Browser.Backend)); name {
	case "", config.BackendChromedp:
		return cdpdriver.New(logger), nil
	case config.BackendRod:
		return roddriver.New(logger), nil
	case config.BackendRemote:
		if cfg.Remote.BaseURL == "" {
			return nil, fmt.Errorf("remote.base_url is required for the remote backend")
		}
		clientCfg := newClientConfig(cfg, logger)
		if cfg.Remote.Timeout > 0 {
			clientCfg.RequestTimeout = cfg.Remote.Timeout
		}
		return remote.New(cfg.Remote.BaseURL, network.NewClient(clientCfg), logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Browser.Backend)
	}
}

func newClientConfig(cfg *config.Config, logger *zap.Logger) *network.ClientConfig {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.IgnoreTLSErrors = cfg.Browser.IgnoreTLSErrors
	clientCfg.Logger = logger.Named("httpclient")
	if cfg.Browser.UserAgent != "" {
		clientCfg.UserAgent = cfg.Browser.UserAgent
	}
	return clientCfg
}

// NewRequest turns the configuration and the command line arguments into a
// capture request. Argument validation itself happens in Command.Run.
func NewRequest(cfg *config.Config, targetURL, outputPath string) (capture.Request, error) {
	wait, err := capture.ParseWaitCondition(cfg.Capture.WaitUntil)
	if err != nil {
		return capture.Request{}, capture.UsageError(err)
	}
	format, err := capture.ParseFormat(cfg.Capture.Format, outputPath)
	if err != nil {
		return capture.Request{}, capture.UsageError(err)
	}

	return capture.Request{
		TargetURL:  targetURL,
		OutputPath: outputPath,
		Launch: capture.LaunchOptions{
			Headless:        cfg.Browser.Headless,
			DisableSandbox:  cfg.Browser.DisableSandbox,
			DisableGPU:      cfg.Browser.DisableGPU,
			IgnoreTLSErrors: cfg.Browser.IgnoreTLSErrors,
			ExecPath:        cfg.Browser.ExecPath,
			UserAgent:       cfg.Browser.UserAgent,
			Args:            cfg.Browser.Args,
		},
		Viewport: capture.Viewport{
			Width:  cfg.Browser.Width,
			Height: cfg.Browser.Height,
			Scale:  cfg.Browser.Scale,
		},
		WaitUntil:         wait,
		IdleTime:          cfg.Capture.IdleTime,
		NavigationTimeout: cfg.Capture.NavigationTimeout,
		Shot: capture.ShotOptions{
			FullPage: cfg.Capture.FullPage,
			Format:   format,
			Quality:  cfg.Capture.Quality,
		},
	}, nil
}
