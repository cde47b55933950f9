package schema

import (
	"strings"
	"sync"

	"github.com/sqlitely-dev/core/grammar"
)

// Cache is the categorized, case-insensitive schema store spec.md §4.2
// describes: one mapping per category from lower-cased name to Item, plus
// an all-names set for uniqueness checks during rename/clone.
type Cache struct {
	mu       sync.RWMutex
	byCat    map[grammar.Category]map[string]*Item // lower(name) -> item
	allNames map[string]grammar.Category
	stale    bool
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		byCat: map[grammar.Category]map[string]*Item{
			grammar.CategoryTable:   {},
			grammar.CategoryView:    {},
			grammar.CategoryIndex:   {},
			grammar.CategoryTrigger: {},
		},
		allNames: map[string]grammar.Category{},
	}
}

// Put inserts or replaces item, keyed case-insensitively by its Name.
func (c *Cache) Put(item *Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(item.Name)
	c.byCat[item.Category][key] = item
	c.allNames[key] = item.Category
}

// Remove deletes the item for (category, name), if present.
func (c *Cache) Remove(category grammar.Category, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(name)
	delete(c.byCat[category], key)
	delete(c.allNames, key)
}

// Get looks up one item by category and case-insensitive name.
func (c *Cache) Get(category grammar.Category, name string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.byCat[category][strings.ToLower(name)]
	return it, ok
}

// FindAnyCategory looks up an item by name alone, searching every
// category — used when resolving a bare dependency name found in
// __tables__, which doesn't indicate table vs. view.
func (c *Cache) FindAnyCategory(name string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := strings.ToLower(name)
	cat, ok := c.allNames[key]
	if !ok {
		return nil, false
	}
	it, ok := c.byCat[cat][key]
	return it, ok
}

// NameExists reports whether any category already has an item with this
// name (case-insensitive), the uniqueness check spec.md §4.2 calls for
// during rename/clone.
func (c *Cache) NameExists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.allNames[strings.ToLower(name)]
	return ok
}

// Category returns a snapshot of one category's items, keyed by their
// case-preserved name.
func (c *Cache) Category(category grammar.Category) map[string]*Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*Item, len(c.byCat[category]))
	for _, it := range c.byCat[category] {
		out[it.Name] = it
	}
	return out
}

// All returns every item across every category.
func (c *Cache) All() []*Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Item
	for _, m := range c.byCat {
		for _, it := range m {
			out = append(out, it)
		}
	}
	return out
}

// MarkStale flags the cache as needing a re-scan (spec.md §4.2 invariant
// c: a DDL-altering executeaction marks the cache stale).
func (c *Cache) MarkStale() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Stale reports whether the cache needs a re-scan.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// ClearStale resets the stale flag after a re-scan completes.
func (c *Cache) ClearStale() {
	c.mu.Lock()
	c.stale = false
	c.mu.Unlock()
}

// ComputeDependents walks every item's forward Dependencies and populates
// the reverse Dependents sets. It is called once after a full scan (or
// re-scan); unparseable items contribute no forward edges and so remain
// leaves, per spec.md §9's Open Question resolution.
func (c *Cache) ComputeDependents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.byCat {
		for _, it := range m {
			it.Dependents = map[string]struct{}{}
		}
	}
	for _, m := range c.byCat {
		for _, it := range m {
			for dep := range it.Dependencies {
				if target, ok := c.allNames[dep]; ok {
					if tgt, ok := c.byCat[target][dep]; ok {
						tgt.Dependents[strings.ToLower(it.Name)] = struct{}{}
					}
				}
			}
		}
	}
}
