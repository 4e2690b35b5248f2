// File: internal/network/compression.go
package network

import (
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on requests that do not set their own.
const acceptEncoding = "br, gzip, deflate"

var brotliReaderPool = sync.Pool{
	New: func() interface{} {
		return brotli.NewReader(nil)
	},
}

// decompressingTransport negotiates compression and decodes br, gzip and
// deflate response bodies. The wrapped transport must have DisableCompression set.
type decompressingTransport struct {
	next http.RoundTripper
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return resp, nil
}

// decodedBody closes the decoder and the original body together.
type decodedBody struct {
	io.Reader
	closeDecoder func() error
	original     io.ReadCloser
}

func (b *decodedBody) Close() error {
	var err1 error
	if b.closeDecoder != nil {
		err1 = b.closeDecoder()
		b.closeDecoder = nil
	}
	return errors.Join(err1, b.original.Close())
}

// decompressResponse wraps resp.Body according to Content-Encoding. Layers are
// decoded in reverse order of application.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		body := &decodedBody{original: resp.Body}

		switch enc := strings.ToLower(strings.TrimSpace(encodings[i])); enc {
		case "gzip":
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip: %w", err)
			}
			body.Reader, body.closeDecoder = zr, zr.Close
		case "deflate":
			zr, err := zlib.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate: %w", err)
			}
			body.Reader, body.closeDecoder = zr, zr.Close
		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli: %w", err)
			}
			body.Reader = br
			body.closeDecoder = func() error {
				brotliReaderPool.Put(br)
				return nil
			}
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding %q", enc)
		}
		resp.Body = body
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
