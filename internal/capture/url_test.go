package capture_test

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/capture-cli/internal/capture"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		scheme  string
		want    string
		wantErr string
	}{
		{name: "bare host gets default scheme", raw: "example.com", scheme: "http", want: "http://example.com"},
		{name: "configured scheme", raw: "example.com/a?b=c", scheme: "https", want: "https://example.com/a?b=c"},
		{name: "empty scheme falls back to http", raw: "example.com", want: "http://example.com"},
		{name: "protocol relative", raw: "//example.com/x", scheme: "https", want: "https://example.com/x"},
		{name: "explicit https kept", raw: "https://example.com/path", scheme: "http", want: "https://example.com/path"},
		{name: "whitespace trimmed", raw: "  https://example.com  ", want: "https://example.com"},
		{name: "port kept", raw: "localhost:8080/status", scheme: "http", want: "http://localhost:8080/status"},
		{name: "url inside query string", raw: "example.com/login?next=https://example.com/home", scheme: "http", want: "http://example.com/login?next=https://example.com/home"},
		{name: "url inside query with port", raw: "localhost:3000/?u=http://a.example", scheme: "http", want: "http://localhost:3000/?u=http://a.example"},
		{name: "idn host", raw: "https://bücher.example/", want: "https://xn--bcher-kva.example/"},
		{name: "idn host with port", raw: "http://bücher.example:8443/", want: "http://xn--bcher-kva.example:8443/"},
		{name: "ipv6 literal", raw: "http://[::1]:9000/", want: "http://[::1]:9000/"},
		{name: "about blank passes through", raw: "about:blank", want: "about:blank"},
		{name: "data url passes through", raw: "data:text/html,<h1>hi</h1>", want: "data:text/html,<h1>hi</h1>"},
		{name: "empty", raw: "", wantErr: "target url is required"},
		{name: "unsupported scheme", raw: "ftp://example.com", wantErr: "unsupported url scheme"},
		{name: "no host", raw: "http:///path", wantErr: "has no host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := capture.NormalizeURL(tt.raw, tt.scheme)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeOutputPath(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := capture.NormalizeOutputPath("   ")
		assert.ErrorIs(t, err, capture.ErrMissingOutput)
	})

	t.Run("relative path untouched", func(t *testing.T) {
		got, err := capture.NormalizeOutputPath(" out/shot.png ")
		require.NoError(t, err)
		assert.Equal(t, "out/shot.png", got)
	})

	t.Run("home directory expanded", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skip("no home directory available")
		}
		got, err := capture.NormalizeOutputPath("~/shot.png")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "shot.png"), got)
	})
}
