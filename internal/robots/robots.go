// Package robots decides whether a URL may be captured according to the
// target site's robots.txt.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jimsmart/grobotstxt"
	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/network"
)

const maxRobotsSize = 512 << 10

// Checker fetches robots.txt for each target and evaluates it for one user agent.
type Checker struct {
	client    *network.Client
	userAgent string
	logger    *zap.Logger
}

func NewChecker(client *network.Client, userAgent string, logger *zap.Logger) *Checker {
	return &Checker{client: client, userAgent: userAgent, logger: logger.Named("robots")}
}

// Allowed reports whether targetURL may be fetched. A missing robots.txt (any
// 4xx) allows everything and a 5xx disallows everything. URLs without a host
// are always allowed.
func (c *Checker) Allowed(ctx context.Context, targetURL string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url %q: %w", targetURL, err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return true, nil
	}

	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to fetch %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		c.logger.Warn("robots.txt unavailable, treating site as disallowed.", zap.String("url", robotsURL), zap.Int("status", resp.StatusCode))
		return false, nil
	case resp.StatusCode >= 400:
		c.logger.Debug("robots.txt not found.", zap.String("url", robotsURL), zap.Int("status", resp.StatusCode))
		return true, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return false, network.StatusError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", robotsURL, err)
	}

	allowed := grobotstxt.AgentAllowed(string(body), c.userAgent, targetURL)
	if !allowed {
		c.logger.Info("Skipping URL because of robots.txt.", zap.String("url", targetURL), zap.String("agent", c.userAgent))
	}
	return allowed, nil
}
