// Package fetcher downloads remote resources with a per-request timeout and
// classifies failures as timeout, HTTP status or network errors.
package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/hashing"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

const (
	DefaultUserAgent = "geoip-rsc/1.0"

	// MaxBodySize caps a single download.
	MaxBodySize = 256 << 20
)

type Fetcher struct {
	client    *http.Client
	userAgent string
}

func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client, userAgent: DefaultUserAgent}
}

// Download is a fetched body together with its MD5 checksum.
type Download struct {
	Data     []byte
	Checksum string
}

// Fetch performs a GET of url bounded by timeout and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	d, err := f.FetchWithChecksum(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	return d.Data, nil
}

// FetchWithChecksum is Fetch that also computes the body's MD5 while reading.
func (f *Fetcher) FetchWithChecksum(ctx context.Context, url string, timeout time.Duration) (*Download, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewNetworkError(url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	log.Debugf("Fetching %s (timeout %s)", url, timeout)
	started := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, errors.NewHTTPStatusError(url, resp.StatusCode)
	}

	bodyProxy := hashing.NewMD5ReaderProxy(io.LimitReader(resp.Body, MaxBodySize+1))
	data, err := io.ReadAll(bodyProxy)
	if err != nil {
		return nil, classify(ctx, url, err)
	}
	if len(data) > MaxBodySize {
		return nil, errors.NewNetworkError(url, fmt.Errorf("response exceeds %d bytes", MaxBodySize))
	}

	sum, err := bodyProxy.GetChecksum()
	if err != nil {
		return nil, errors.NewInternalError("failed to compute checksum", err)
	}

	log.Debugf("Fetched %s: %d bytes in %s", url, len(data), time.Since(started).Round(time.Millisecond))
	return &Download{Data: data, Checksum: sum}, nil
}

func classify(ctx context.Context, url string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewFetchTimeoutError(url, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewFetchTimeoutError(url, err)
	}
	return errors.NewNetworkError(url, err)
}
