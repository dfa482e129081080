package corpus

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Corpus maps audio file identifiers to transcripts. The map held by a Corpus
// is an immutable snapshot: searches load it once and iterate it freely
// without locking, while every mutation builds a fresh map and installs it
// with an atomic pointer swap. An in-flight search therefore sees either the
// old corpus or the new one, never a half-updated mixture.
type Corpus struct {
	mu       sync.Mutex // serializes writers; readers go through snapshot only
	snapshot atomic.Pointer[map[string]*Transcript]
}

// New returns an empty corpus.
func New() *Corpus {
	c := &Corpus{}
	m := map[string]*Transcript{}
	c.snapshot.Store(&m)
	return c
}

// Snapshot returns the current immutable file->transcript map. Callers must
// not modify it.
func (c *Corpus) Snapshot() map[string]*Transcript {
	return *c.snapshot.Load()
}

// Get returns the transcript for file, if present.
func (c *Corpus) Get(file string) (*Transcript, bool) {
	t, ok := c.Snapshot()[file]
	return t, ok
}

// Set installs (or replaces) the transcript for file.
func (c *Corpus) Set(file string, t *Transcript) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.copySnapshotLocked()
	next[file] = t
	c.snapshot.Store(&next)
}

// Delete removes the transcript for file, if present.
func (c *Corpus) Delete(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.copySnapshotLocked()
	delete(next, file)
	c.snapshot.Store(&next)
}

// Replace swaps the whole corpus for m, e.g. after loading a persisted index.
func (c *Corpus) Replace(m map[string]*Transcript) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(map[string]*Transcript, len(m))
	for file, t := range m {
		next[file] = t
	}
	c.snapshot.Store(&next)
}

// Files returns the indexed file identifiers in sorted order.
func (c *Corpus) Files() []string {
	snap := c.Snapshot()
	files := make([]string, 0, len(snap))
	for file := range snap {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// Len returns the number of indexed files.
func (c *Corpus) Len() int {
	return len(c.Snapshot())
}

// TokenCount returns the total number of word spans across all transcripts.
func (c *Corpus) TokenCount() int {
	n := 0
	for _, t := range c.Snapshot() {
		n += t.Len()
	}
	return n
}

func (c *Corpus) copySnapshotLocked() map[string]*Transcript {
	cur := *c.snapshot.Load()
	next := make(map[string]*Transcript, len(cur)+1)
	for file, t := range cur {
		next[file] = t
	}
	return next
}
