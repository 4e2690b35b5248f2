package capture

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// WaitCondition decides when a navigation is considered finished.
type WaitCondition string

const (
	WaitLoad             WaitCondition = "load"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	// WaitNetworkIdle0 waits until no request has been in flight for the idle period.
	WaitNetworkIdle0 WaitCondition = "networkidle0"
	// WaitNetworkIdle2 waits until at most two requests have been in flight for the idle period.
	WaitNetworkIdle2 WaitCondition = "networkidle2"
)

// DefaultIdleTime is the quiet period used by the network-idle conditions.
const DefaultIdleTime = 500 * time.Millisecond

// ParseWaitCondition converts a configuration value to a WaitCondition.
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch w := WaitCondition(strings.ToLower(strings.TrimSpace(s))); w {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle0, WaitNetworkIdle2:
		return w, nil
	case "":
		return WaitNetworkIdle2, nil
	default:
		return "", fmt.Errorf("unknown wait condition %q", s)
	}
}

// MaxInflight returns the number of requests allowed in flight while the network
// is still considered idle. It is -1 for conditions that are not network based.
func (w WaitCondition) MaxInflight() int {
	switch w {
	case WaitNetworkIdle0:
		return 0
	case WaitNetworkIdle2:
		return 2
	default:
		return -1
	}
}

// Format is the encoding of the produced image.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat converts a configuration value to a Format. An empty value infers the
// format from the output path extension.
func ParseFormat(s, outputPath string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatFromPath(outputPath), nil
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unknown image format %q", s)
	}
}

// FormatFromPath infers the image format from a file extension, defaulting to PNG.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

// LaunchOptions are the backend flags used when acquiring a browser instance.
type LaunchOptions struct {
	Headless        bool
	DisableSandbox  bool
	DisableGPU      bool
	IgnoreTLSErrors bool
	ExecPath        string
	UserAgent       string
	// Args holds extra command line switches, "--name" or "--name=value".
	Args []string
}

// Flag is a single browser command line switch.
type Flag struct {
	Name  string
	Value string
	// HasValue distinguishes "--name=" from "--name".
	HasValue bool
}

// ExtraFlags parses Args into switches with the leading dashes removed.
func (o LaunchOptions) ExtraFlags() []Flag {
	flags := make([]Flag, 0, len(o.Args))
	for _, arg := range o.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		name, value, found := strings.Cut(arg, "=")
		flags = append(flags, Flag{Name: name, Value: value, HasValue: found})
	}
	return flags
}

// Viewport is the emulated window of the page.
type Viewport struct {
	Width  int
	Height int
	// Scale is the device scale factor; zero means 1.
	Scale float64
}

// ShotOptions control how the rendered page is captured.
type ShotOptions struct {
	// FullPage captures the whole scrollable content instead of the viewport.
	FullPage bool
	Format   Format
	// Quality applies to lossy formats only.
	Quality int
}

// Request is a single capture invocation.
type Request struct {
	TargetURL         string
	OutputPath        string
	Launch            LaunchOptions
	Viewport          Viewport
	WaitUntil         WaitCondition
	IdleTime          time.Duration
	NavigationTimeout time.Duration
	Shot              ShotOptions
}

// NavigateOptions is what a Page needs to know to finish a navigation.
type NavigateOptions struct {
	WaitUntil WaitCondition
	IdleTime  time.Duration
	// FullPage selects the variant rendered by services that produce the image
	// while loading the page.
	FullPage bool
}

// Result describes a successful capture.
type Result struct {
	ID         string
	OutputPath string
	Bytes      int
	CacheHit   bool
	Duration   time.Duration
}
