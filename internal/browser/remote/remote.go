// Package remote captures pages through a hosted screenshot service that
// renders a URL given in its request path, in the style of image.thum.io.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/capture"
	"github.com/xkilldash9x/capture-cli/internal/network"
)

const Name = "remote"

// maxImageSize bounds the response body read from the service.
const maxImageSize = 64 << 20

var ErrUnsupportedFormat = errors.New("the remote backend only produces png images")

// Backend talks to the screenshot service at baseURL. No local process is
// started, so Acquire and Release only manage the HTTP client's connections.
type Backend struct {
	baseURL string
	client  *network.Client
	logger  *zap.Logger
}

func New(baseURL string, client *network.Client, logger *zap.Logger) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("remote"),
	}
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Acquire(ctx context.Context, _ capture.LaunchOptions) (capture.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{backend: b}, nil
}

type session struct {
	backend *Backend
}

func (s *session) NewPage(ctx context.Context, viewport capture.Viewport) (capture.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &page{backend: s.backend, viewport: viewport}, nil
}

func (s *session) Release(context.Context) error {
	s.backend.client.CloseIdleConnections()
	return nil
}

// page fetches the rendered image on Navigate, since the service loads and
// renders the target in one request. Capture hands out the fetched bytes.
type page struct {
	backend  *Backend
	viewport capture.Viewport
	image    []byte
}

// Navigate asks the service to load and render url. Failures here are
// navigation failures and are bounded by the navigation timeout in ctx.
func (p *page) Navigate(ctx context.Context, url string, opts capture.NavigateOptions) error {
	data, err := p.backend.fetch(ctx, url, p.viewport, opts.FullPage)
	if err != nil {
		return err
	}
	p.image = data
	return nil
}

func (p *page) Capture(ctx context.Context, opts capture.ShotOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Format != "" && opts.Format != capture.FormatPNG {
		return nil, ErrUnsupportedFormat
	}
	if p.image == nil {
		return nil, errors.New("capture called before navigate")
	}
	return p.image, nil
}

func (b *Backend) fetch(ctx context.Context, target string, viewport capture.Viewport, fullPage bool) ([]byte, error) {
	endpoint := b.endpoint(target, viewport, fullPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build service request: %w", err)
	}

	b.logger.Debug("Requesting screenshot from service.", zap.String("endpoint", endpoint))
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screenshot service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, network.StatusError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("could not read screenshot: %w", err)
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("screenshot service returned %s instead of an image", ct)
	}
	return data, nil
}

// endpoint builds {base}/get/width/{w}/[crop/{h}|fullpage]/png/{target}.
func (b *Backend) endpoint(target string, viewport capture.Viewport, fullPage bool) string {
	var sb strings.Builder
	sb.WriteString(b.baseURL)
	sb.WriteString("/get")
	if viewport.Width > 0 {
		sb.WriteString("/width/")
		sb.WriteString(strconv.Itoa(viewport.Width))
	}
	if fullPage {
		sb.WriteString("/fullpage")
	} else if viewport.Height > 0 {
		sb.WriteString("/crop/")
		sb.WriteString(strconv.Itoa(viewport.Height))
	}
	sb.WriteString("/png/")
	sb.WriteString(target)
	return sb.String()
}
