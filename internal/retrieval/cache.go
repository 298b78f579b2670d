package retrieval

import "sync"

// IndexCache remembers which notes_hash was most recently indexed so the
// retriever can skip re-embedding unchanged notes.
type IndexCache struct {
	mu      sync.Mutex
	current string
}

// IsCurrent reports whether hash is the most recently indexed notes_hash.
func (c *IndexCache) IsCurrent(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return hash != "" && c.current == hash
}

// MarkIndexed records hash as indexed.
func (c *IndexCache) MarkIndexed(hash string) {
	c.mu.Lock()
	c.current = hash
	c.mu.Unlock()
}

// Invalidate forgets the indexed hash, forcing the next retrieval to index.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	c.current = ""
	c.mu.Unlock()
}

// Current returns the indexed hash, or "" if none.
func (c *IndexCache) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
