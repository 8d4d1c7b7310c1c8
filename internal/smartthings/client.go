package smartthings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultAPIBase is the SmartThings REST API base URL
	DefaultAPIBase = "https://api.smartthings.com/v1"

	defaultTimeout = 30 * time.Second
)

// ErrTransport marks connection, TLS and local IO failures as opposed to
// HTTP-level errors, which are reported as *APIError.
var ErrTransport = errors.New("transport error")

// APIError is a non-2xx response from the SmartThings API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, body)
}

// IsUnauthorized reports whether err is an HTTP 401 from the API
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client issues authenticated requests and file downloads against the
// SmartThings REST API
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client. A zero timeout selects the default.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// JSON sends a request with an optional JSON body and bearer token and
// returns the status code and response body. Transport failures wrap
// ErrTransport; non-2xx responses are returned as (status, body, nil) so
// callers decide how to classify them.
func (c *Client) JSON(ctx context.Context, method, rawURL, token string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

// Form posts a form-encoded body without a bearer token. Used for the OAuth
// token endpoint.
func (c *Client) Form(ctx context.Context, rawURL string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	return resp.StatusCode, respBody, nil
}

// Download fetches url into destPath. The write goes through a temp file in
// the destination directory; on any failure the temp file is removed so a
// failed download never leaves a partial file at destPath. Pre-signed CDN
// URLs are fetched without the bearer header.
func (c *Client) Download(ctx context.Context, rawURL, token, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" && !isPreSignedURL(rawURL) {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// isPreSignedURL detects S3/Azure/CDN URLs that carry their own credentials;
// sending a bearer header to those endpoints gets the request rejected
func isPreSignedURL(rawURL string) bool {
	return strings.Contains(rawURL, "X-Amz-") ||
		strings.Contains(rawURL, "?token=") ||
		strings.Contains(rawURL, "sig=")
}
