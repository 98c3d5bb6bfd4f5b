// Package httpclient provides shared HTTP client constructors.
package httpclient

import (
	"net/http"
	"time"
)

// DefaultTimeout is used when no explicit timeout is configured.
const DefaultTimeout = 30 * time.Second

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}
