// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options tunes the shared outbound client.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	MaxBytes     int64
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithOptions(Options{Timeout: timeout})
}

func NewClientWithOptions(opts Options) *Client {
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.MaxRedirects > 0 {
		limit := opts.MaxRedirects
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	}
	return &Client{
		httpClient: hc,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBytes,
	}
}

// HTTPClient exposes the underlying client for SDKs that take one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.Do(req)
}

// ReadBody reads at most MaxBytes of the response body.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if c.maxBytes > 0 {
		r = io.LimitReader(resp.Body, c.maxBytes)
	}
	return io.ReadAll(r)
}
