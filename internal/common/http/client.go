// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client is a thin wrapper carrying the per-call deadline for outbound
// API requests. The timeout covers the full round trip including reading
// the response body.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
