package ocr

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Cache memoizes an OCR backend's recognized text keyed by a BLAKE2b-256
// hash of the screenshot bytes that produced it, so re-checking the same
// frame within (or across) runs never re-invokes an external OCR call for
// image bytes it has already seen.
type Cache struct {
	mu      sync.RWMutex
	entries map[[32]byte]string
}

var (
	sharedOnce  sync.Once
	sharedCache *Cache
)

// SharedCache returns the process-wide OCR cache, lazily initializing it on
// first use.
func SharedCache() *Cache {
	sharedOnce.Do(func() {
		sharedCache = &Cache{entries: make(map[[32]byte]string)}
	})
	return sharedCache
}

// Get returns the cached recognized text for screenshot, if present.
func (c *Cache) Get(screenshot []byte) (string, bool) {
	key := blake2b.Sum256(screenshot)
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[key]
	return text, ok
}

// Put stores recognized text for screenshot.
func (c *Cache) Put(screenshot []byte, text string) {
	key := blake2b.Sum256(screenshot)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = text
}
