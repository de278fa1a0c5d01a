package batch

import "sync"

// existenceCache remembers which tabs have already been verified to exist,
// keyed by "<spreadsheetID>_<sheetName>". Entries live for the lifetime of
// the owning BatchWriter and are never evicted; a tab deleted out-of-band
// stays cached as existing, which is an accepted staleness risk.
type existenceCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newExistenceCache() *existenceCache {
	return &existenceCache{seen: make(map[string]struct{})}
}

func cacheKey(spreadsheetID, sheetName string) string {
	return spreadsheetID + "_" + sheetName
}

func (c *existenceCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[key]
	return ok
}

func (c *existenceCache) add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = struct{}{}
}

func (c *existenceCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
