package frontier

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a raw URL for dedup and lane assignment.
// The scheme and host are lowercased, the fragment is dropped, and default
// ports are stripped. Only absolute http and https URLs are accepted.
// It returns the normalized URL, the lane key (host including any explicit
// port), and the bare hostname used for allow-list matching.
func Normalize(raw string) (normalized, laneKey, hostname string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", "", "", fmt.Errorf("missing host in %q", raw)
	}

	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	return u.String(), u.Host, u.Hostname(), nil
}
