package querycache

import (
	"fmt"
	"testing"
)

// checkInvariants verifies that the byte accounting matches the entries and
// that the cache is within budget.
func checkInvariants(t *testing.T, c *Cache) {
	t.Helper()
	if err := verify(c); err != nil {
		t.Fatal(err)
	}
}

func verify(c *Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum int64
	for _, key := range c.index.Keys() {
		e, ok := c.index.Peek(key)
		if !ok {
			return fmt.Errorf("key %s listed but not present", key)
		}
		sum += e.size
	}
	if sum != c.size {
		return fmt.Errorf("size = %d, sum of entries = %d", c.size, sum)
	}
	if c.size > c.limit {
		return fmt.Errorf("size %d exceeds limit %d", c.size, c.limit)
	}
	return nil
}
