// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/capture"
	"github.com/xkilldash9x/capture-cli/internal/config"
	"github.com/xkilldash9x/capture-cli/internal/observability"
	"github.com/xkilldash9x/capture-cli/internal/service"
)

const tracingShutdownTimeout = 5 * time.Second

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"backend":        "browser.backend",
	"headless":       "browser.headless",
	"no-sandbox":     "browser.disable_sandbox",
	"width":          "browser.width",
	"height":         "browser.height",
	"wait-until":     "capture.wait_until",
	"full-page":      "capture.full_page",
	"timeout":        "capture.navigation_timeout",
	"format":         "capture.format",
	"quality":        "capture.quality",
	"require-output": "capture.require_output",
	"respect-robots": "capture.respect_robots",
}

// rootState is the per-command state shared between the pre-run hook and RunE.
type rootState struct {
	cfgFile string
	verbose bool
	v       *viper.Viper
	cfg     *config.Config
}

// NewRootCommand creates the capture command wired to the production component factory.
func NewRootCommand() *cobra.Command {
	return newRootCommand(service.NewComponentFactory())
}

func newRootCommand(factory service.ComponentFactory) *cobra.Command {
	state := &rootState{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "capture <url> [output]",
		Short: "Capture a screenshot of a web page.",
		Long: `Capture loads a URL in a browser, waits for the page to settle and saves a
screenshot. The output defaults to capture.default_output unless
--require-output is set.`,
		Version: Version,
		// Arguments are validated in RunE so that every problem surfaces as a usage error.
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), state.cfg, factory, args)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&state.cfgFile, "config", "c", "", "config file (default is ./capture.yaml)")
	pf.BoolVarP(&state.verbose, "verbose", "v", false, "enable debug logging")

	f := cmd.Flags()
	f.String("backend", config.BackendChromedp, "browser backend: chromedp, rod or remote")
	f.Bool("headless", true, "run the browser without a window")
	f.Bool("no-sandbox", false, "disable the browser sandbox")
	f.Int("width", 800, "viewport width in CSS pixels")
	f.Int("height", 600, "viewport height in CSS pixels")
	f.String("wait-until", string(capture.WaitNetworkIdle2), "load, domcontentloaded, networkidle0 or networkidle2")
	f.Bool("full-page", true, "capture the whole scrollable page")
	f.Duration("timeout", 30*time.Second, "navigation timeout")
	f.String("format", "", "png, jpeg or webp (default: from the output extension)")
	f.Int("quality", 90, "jpeg/webp quality (0-100)")
	f.Bool("require-output", false, "fail when no output path is given")
	f.Bool("respect-robots", false, "refuse URLs disallowed by robots.txt")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// load reads the configuration and initializes logging. Precedence is flags,
// then environment, then the config file, then defaults.
func (s *rootState) load(cmd *cobra.Command) error {
	if err := initializeConfig(s.v, s.cfgFile); err != nil {
		return err
	}

	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := s.v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}
	if s.verbose {
		s.v.Set("logger.level", "debug")
	}

	cfg, err := config.NewConfigFromViper(s.v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "warn", Format: "console", ServiceName: "capture"})
		return capture.UsageError(err)
	}
	s.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Debug("Starting capture-cli", zap.String("version", Version))
	return nil
}

// initializeConfig reads the .env file, the config file and CAPTURE_* environment variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	// A missing .env file is normal.
	_ = godotenv.Load()

	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("capture")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func runCapture(ctx context.Context, cfg *config.Config, factory service.ComponentFactory, args []string) error {
	targetURL, outputPath, err := resolveArgs(cfg, args)
	if err != nil {
		return err
	}

	req, err := service.NewRequest(cfg, targetURL, outputPath)
	if err != nil {
		return err
	}

	logger := observability.GetLogger()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Warn("Tracing disabled.", zap.Error(err))
	} else {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracingShutdownTimeout)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("Failed to flush traces.", zap.Error(err))
			}
		}()
	}

	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize capture components: %w", err)
	}
	defer components.Shutdown()

	res, err := components.Command.Run(ctx, req)
	if err != nil {
		return err
	}
	logger.Debug("Capture complete.",
		zap.String("capture_id", res.ID),
		zap.String("output", res.OutputPath),
		zap.Bool("cache_hit", res.CacheHit),
	)
	return nil
}

// resolveArgs maps the positional arguments onto a target URL and output path.
func resolveArgs(cfg *config.Config, args []string) (string, string, error) {
	switch len(args) {
	case 0:
		return "", "", capture.UsageError(capture.ErrMissingURL)
	case 1:
		if cfg.Capture.RequireOutput {
			return "", "", capture.UsageError(capture.ErrMissingOutput)
		}
		return args[0], cfg.Capture.DefaultOutput, nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", capture.UsageError(fmt.Errorf("expected at most 2 arguments, got %d", len(args)))
	}
}

// Execute runs the capture command with the given signal aware context and
// writes any failure to stderr as a single line.
func Execute(ctx context.Context) error {
	return execute(ctx, NewRootCommand(), os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) error {
	root.SetArgs(args)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", strings.ReplaceAll(err.Error(), "\n", " "))
	}
	return err
}
