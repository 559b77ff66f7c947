// Package dedupe detects duplicate page content by hash, independently of
// the URL-level dedup the frontier performs. The first URL observed for a
// given content hash wins; later URLs with identical content are reported
// as duplicates of it.
package dedupe

import (
	"crypto/sha256"
	"fmt"
	"sync"
)

// Deduper tracks content hashes seen during a run.
type Deduper struct {
	mu        sync.Mutex
	hashToURL map[string]string
}

// New creates an empty deduper.
func New() *Deduper {
	return &Deduper{hashToURL: make(map[string]string)}
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// IsDuplicate reports whether content was already seen and, if so, the URL
// it was first seen at. Unseen content is recorded under url.
func (d *Deduper) IsDuplicate(content []byte, url string) (bool, string) {
	return d.IsDuplicateHash(Hash(content), url)
}

// IsDuplicateHash is IsDuplicate for a precomputed hash.
func (d *Deduper) IsDuplicateHash(hash, url string) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if original, ok := d.hashToURL[hash]; ok {
		return true, original
	}
	d.hashToURL[hash] = url
	return false, ""
}

// Len returns how many distinct content hashes have been recorded.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hashToURL)
}
