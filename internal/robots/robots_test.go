package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hfujita/laneway/internal/fetcher"
)

func newAgentForServer(t *testing.T, respect bool) (*Agent, *http.ServeMux, string) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := fetcher.NewClient("TestBot/1.0", 5*time.Second)
	t.Cleanup(client.Close)

	return NewAgent(client, "TestBot/1.0", respect), mux, server.URL
}

func TestDisallowedPath(t *testing.T) {
	agent, mux, base := newAgentForServer(t, true)
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})

	ctx := context.Background()
	if agent.Allowed(ctx, base+"/private/page") {
		t.Error("disallowed path was allowed")
	}
	if !agent.Allowed(ctx, base+"/public/page") {
		t.Error("unrelated path was blocked")
	}
}

func TestMissingRobotsAllowsAll(t *testing.T) {
	agent, _, base := newAgentForServer(t, true)

	if !agent.Allowed(context.Background(), base+"/anything") {
		t.Error("404 robots.txt blocked a fetch")
	}
}

func TestUnreachableHostFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	client := fetcher.NewClient("TestBot/1.0", time.Second)
	defer client.Close()
	agent := NewAgent(client, "TestBot/1.0", true)

	if !agent.Allowed(context.Background(), base+"/page") {
		t.Error("unreachable robots.txt blocked a fetch")
	}
}

func TestRulesCachedPerHost(t *testing.T) {
	agent, mux, base := newAgentForServer(t, true)

	var hits atomic.Int32
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "User-agent: *\nDisallow: /blocked\n")
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		agent.Allowed(ctx, fmt.Sprintf("%s/page/%d", base, i))
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestCacheExpires(t *testing.T) {
	agent, mux, base := newAgentForServer(t, true)
	agent.ttl = 10 * time.Millisecond

	var hits atomic.Int32
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "User-agent: *\n")
	})

	ctx := context.Background()
	agent.Allowed(ctx, base+"/a")
	time.Sleep(20 * time.Millisecond)
	agent.Allowed(ctx, base+"/b")

	if got := hits.Load(); got != 2 {
		t.Errorf("robots.txt fetched %d times after TTL expiry, want 2", got)
	}
}

func TestRespectDisabled(t *testing.T) {
	agent, mux, base := newAgentForServer(t, false)

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		t.Error("robots.txt fetched with respect disabled")
	})

	if !agent.Allowed(context.Background(), base+"/anything") {
		t.Error("fetch blocked with respect disabled")
	}
}

func TestAgentSpecificGroup(t *testing.T) {
	agent, mux, base := newAgentForServer(t, true)
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: TestBot\nDisallow: /only-testbot\n\nUser-agent: *\nDisallow:\n")
	})

	ctx := context.Background()
	if agent.Allowed(ctx, base+"/only-testbot/page") {
		t.Error("agent-specific disallow ignored")
	}
	if !agent.Allowed(ctx, base+"/other") {
		t.Error("allowed path blocked")
	}
}

func TestMalformedURL(t *testing.T) {
	agent, _, _ := newAgentForServer(t, true)

	if agent.Allowed(context.Background(), "::bogus::") {
		t.Error("malformed URL allowed")
	}
}
