package capture

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/net/idna"
)

// schemes that carry no host and are passed through untouched.
var opaqueSchemes = []string{"about:", "data:", "file:", "chrome:"}

// NormalizeURL trims raw, prefixes defaultScheme when no scheme is present and
// converts an internationalized host to its ASCII form.
func NormalizeURL(raw, defaultScheme string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}

	lower := strings.ToLower(raw)
	for _, s := range opaqueSchemes {
		if strings.HasPrefix(lower, s) {
			return raw, nil
		}
	}

	if !hasScheme(raw) {
		if defaultScheme == "" {
			defaultScheme = "http"
		}
		raw = defaultScheme + "://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	if !isASCII(u.Hostname()) {
		host, err := idna.Lookup.ToASCII(u.Hostname())
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", u.Hostname(), err)
		}
		if port := u.Port(); port != "" {
			host = host + ":" + port
		}
		u.Host = host
	}

	return u.String(), nil
}

// hasScheme reports whether raw starts with "scheme://". A "://" later in the
// string, e.g. inside a query parameter, does not count.
func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i <= 0 {
		return false
	}
	for j, r := range raw[:i] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case j > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// NormalizeOutputPath trims the path and expands a leading "~".
func NormalizeOutputPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrMissingOutput
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("could not expand output path %q: %w", p, err)
	}
	return expanded, nil
}
