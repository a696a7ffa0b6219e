// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Client is the single transport every backend call goes through. The
// timeout is an overall per-request bound; there is no retry at this layer.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// NewClientWithTransport is used by tests that need a custom RoundTripper.
func NewClientWithTransport(timeout time.Duration, userAgent string, rt http.RoundTripper) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
		userAgent: userAgent,
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// IsTimeout reports whether err came from the client timeout or a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
