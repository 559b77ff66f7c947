// Package fetcher performs single-URL fetches with bounded retries and
// exponential backoff. Transport failures are retried; HTTP responses are
// reported with their status code, not classified as failures, except that
// 5xx responses consume the retry budget and 4xx responses never retry.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Outcome is the result of one dispatched fetch, produced exactly once per
// item. URL is always the originally requested URL; FinalURL reflects the
// post-redirect location.
type Outcome struct {
	URL          string
	StatusCode   int // 0 when no response was ever received
	Body         []byte
	Headers      map[string]string
	ContentType  string
	FinalURL     string
	Error        string // Non-empty only after the retry budget is exhausted on transport failures
	Attempts     int
	TTFB         time.Duration
	DownloadTime time.Duration
}

// IsSuccess reports whether the fetch produced a usable 200 response.
func (o *Outcome) IsSuccess() bool {
	return o.StatusCode == 200 && o.Error == ""
}

// IsHTML reports whether the response content type is HTML.
func (o *Outcome) IsHTML() bool {
	ct := strings.ToLower(o.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// IsPDF reports whether the response content type is PDF.
func (o *Outcome) IsPDF() bool {
	return strings.Contains(strings.ToLower(o.ContentType), "application/pdf")
}

// Fetcher retries transient failures with exponential backoff. It is
// stateless across calls apart from its configuration.
type Fetcher struct {
	client      *Client
	retries     int
	backoffUnit time.Duration
}

// New creates a fetcher performing up to retries+1 attempts per URL,
// sleeping 2^attempt backoff units between attempts.
func New(client *Client, retries int, backoffUnit time.Duration) *Fetcher {
	if backoffUnit <= 0 {
		backoffUnit = time.Second
	}
	return &Fetcher{client: client, retries: retries, backoffUnit: backoffUnit}
}

// Fetch retrieves url, retrying connection errors, timeouts and 5xx
// responses until the budget runs out. 4xx responses return immediately:
// they are valid, final responses, not transport failures. After the budget
// is exhausted on transport failures the outcome carries status code 0 and
// a non-empty Error.
func (f *Fetcher) Fetch(ctx context.Context, url string) *Outcome {
	var lastErr string
	var lastResp *Response
	attempts := 0

	for attempt := 0; attempt <= f.retries; attempt++ {
		attempts++
		resp, err := f.client.Get(ctx, url)
		if err != nil {
			lastErr = classifyTransportError(err)
			slog.Warn("Fetch attempt failed", "url", url, "attempt", attempt+1, "max_attempts", f.retries+1, "error", err)
			if ctx.Err() != nil {
				break
			}
		} else {
			lastResp = resp
			if resp.StatusCode >= 500 {
				lastErr = ""
				slog.Warn("Server error response", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
			} else {
				return f.outcome(url, resp, attempt+1, "")
			}
		}

		if attempt < f.retries && !f.backoff(ctx, attempt) {
			break
		}
	}

	if lastResp != nil {
		// Exhausted the budget on 5xx responses; report the final one as-is.
		return f.outcome(url, lastResp, attempts, "")
	}

	slog.Error("Fetch failed", "url", url, "attempts", attempts, "error", lastErr)
	return &Outcome{
		URL:      url,
		FinalURL: url,
		Error:    lastErr,
		Attempts: attempts,
	}
}

func (f *Fetcher) outcome(url string, resp *Response, attempts int, errText string) *Outcome {
	headers := make(map[string]string, len(resp.Headers))
	for name, values := range resp.Headers {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	return &Outcome{
		URL:          url,
		StatusCode:   resp.StatusCode,
		Body:         resp.Body,
		Headers:      headers,
		ContentType:  resp.ContentType,
		FinalURL:     resp.FinalURL,
		Error:        errText,
		Attempts:     attempts,
		TTFB:         resp.TTFB,
		DownloadTime: resp.DownloadTime,
	}
}

// backoff sleeps 2^attempt backoff units, or returns false if the context
// ends first.
func (f *Fetcher) backoff(ctx context.Context, attempt int) bool {
	delay := f.backoffUnit * (1 << attempt)
	slog.Debug("Backing off before retry", "delay", delay, "attempt", attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func classifyTransportError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "Client.Timeout"):
		return fmt.Sprintf("timeout: %v", err)
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return fmt.Sprintf("connection error: %v", err)
	default:
		return fmt.Sprintf("request error: %v", err)
	}
}
