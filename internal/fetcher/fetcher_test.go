package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T, retries int, backoffUnit time.Duration) *Fetcher {
	t.Helper()
	client := NewClient("TestAgent/1.0", 5*time.Second)
	t.Cleanup(client.Close)
	return New(client, retries, backoffUnit)
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer server.Close()

	f := newTestFetcher(t, 3, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL+"/page")

	if !out.IsSuccess() {
		t.Fatalf("outcome = %+v, want success", out)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if out.URL != server.URL+"/page" {
		t.Errorf("URL = %q", out.URL)
	}
	if !out.IsHTML() {
		t.Errorf("ContentType = %q, want HTML", out.ContentType)
	}
	if !strings.Contains(string(out.Body), "ok") {
		t.Errorf("Body = %q", out.Body)
	}
	if out.TTFB <= 0 || out.DownloadTime <= 0 {
		t.Errorf("timings not recorded: ttfb=%v download=%v", out.TTFB, out.DownloadTime)
	}
}

func TestFetchClientErrorNoRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher(t, 3, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL)

	if out.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", out.StatusCode)
	}
	if out.Error != "" {
		t.Errorf("Error = %q, want empty for a valid HTTP response", out.Error)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "recovered")
	}))
	defer server.Close()

	f := newTestFetcher(t, 3, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL)

	if out.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200 after recovery", out.StatusCode)
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
}

func TestFetchServerErrorBudgetExhausted(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(t, 2, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL)

	if out.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want the final 500", out.StatusCode)
	}
	if out.Error != "" {
		t.Errorf("Error = %q, want empty when a response was received", out.Error)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want retries+1 = 3", got)
	}
}

func TestFetchTransportErrorExhausted(t *testing.T) {
	// Grab an address with nothing listening on it.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := newTestFetcher(t, 2, time.Millisecond)
	out := f.Fetch(context.Background(), url)

	if out.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 with no response", out.StatusCode)
	}
	if out.Error == "" {
		t.Error("Error empty after exhausting the retry budget")
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
	if out.FinalURL != url {
		t.Errorf("FinalURL = %q, want the requested URL", out.FinalURL)
	}
}

func TestFetchBackoffGrowsExponentially(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	unit := 20 * time.Millisecond
	f := newTestFetcher(t, 2, unit)

	start := time.Now()
	_ = f.Fetch(context.Background(), url)
	elapsed := time.Since(start)

	// Two backoffs of 1 and 2 units between the three attempts.
	if elapsed < 3*unit {
		t.Errorf("elapsed = %v, want at least %v of cumulative backoff", elapsed, 3*unit)
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})

	f := newTestFetcher(t, 0, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL+"/old")

	if out.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", out.StatusCode)
	}
	if out.URL != server.URL+"/old" {
		t.Errorf("URL = %q, want the original URL", out.URL)
	}
	if out.FinalURL != server.URL+"/new" {
		t.Errorf("FinalURL = %q, want the redirect target", out.FinalURL)
	}
}

func TestFetchRedirectLoopGivesUp(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})

	f := newTestFetcher(t, 0, time.Millisecond)
	out := f.Fetch(context.Background(), server.URL+"/a")

	if out.IsSuccess() {
		t.Errorf("redirect loop reported success: %+v", out)
	}
}

func TestFetchCancelledContextStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, 5, time.Second)
	start := time.Now()
	out := f.Fetch(ctx, url)

	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancelled fetch kept backing off")
	}
	if out.Error == "" {
		t.Error("Error empty for a fetch that never got a response")
	}
}

func TestOutcomeContentTypeHelpers(t *testing.T) {
	tests := []struct {
		ct       string
		wantHTML bool
		wantPDF  bool
	}{
		{"text/html", true, false},
		{"text/html; charset=utf-8", true, false},
		{"application/xhtml+xml", true, false},
		{"application/pdf", false, true},
		{"Application/PDF", false, true},
		{"application/json", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		o := &Outcome{ContentType: tt.ct}
		if o.IsHTML() != tt.wantHTML {
			t.Errorf("IsHTML(%q) = %v", tt.ct, o.IsHTML())
		}
		if o.IsPDF() != tt.wantPDF {
			t.Errorf("IsPDF(%q) = %v", tt.ct, o.IsPDF())
		}
	}
}
