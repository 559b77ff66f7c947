package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// maxRedirects caps how many redirects a single fetch may follow.
const maxRedirects = 10

// Client wraps net/http with crawl-friendly defaults: a redirect cap,
// connection reuse, standard headers, and first-byte timing.
type Client struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// Response is a fully-read HTTP response with timing information.
type Response struct {
	StatusCode   int
	Headers      http.Header
	Body         []byte
	ContentType  string
	FinalURL     string // After following redirects
	TTFB         time.Duration
	DownloadTime time.Duration
}

// NewClient creates an HTTP client for crawling.
func NewClient(userAgent string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		headers:   make(map[string]string),
	}
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(name, value string) {
	c.headers[name] = value
}

// Get performs a GET request and reads the whole body. The returned
// FinalURL reflects the post-redirect location.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	r := &Response{
		StatusCode:   resp.StatusCode,
		Headers:      resp.Header,
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		FinalURL:     resp.Request.URL.String(),
		DownloadTime: time.Since(start),
	}
	if !firstByte.IsZero() {
		r.TTFB = firstByte.Sub(start)
	}
	return r, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
