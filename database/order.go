package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlitely-dev/core/grammar"
	"github.com/sqlitely-dev/core/schema"
)

// GetSQL regenerates canonical CREATE SQL. With name set, it returns one
// item; with category set and name empty, it returns every item of that
// category in dependency order; with both empty, it returns the whole
// schema ordered tables, then indexes, then triggers, then views (each
// view after whatever tables/views it selects from).
func (d *Database) GetSQL(category grammar.Category, name string) (string, error) {
	cache := d.GetCache()
	if name != "" {
		item, ok := cache.Get(category, name)
		if !ok {
			return "", fmt.Errorf("%s %q not found", category, name)
		}
		return renderItem(item), nil
	}

	var items []*schema.Item
	if category != "" {
		for _, it := range cache.Category(category) {
			items = append(items, it)
		}
		items = topoSort(items)
	} else {
		items = fullSchemaOrder(cache)
	}

	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(renderItem(it))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func renderItem(it *schema.Item) string {
	if it.Meta != nil {
		return grammar.Generate(it.Meta, "  ")
	}
	return it.SQL
}

func sortByName(items []*schema.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}

// fullSchemaOrder lays out the entire schema in the order a restore script
// needs: every table (alphabetical, no inter-table ordering concern since
// CREATE TABLE never depends on another table existing yet), then indexes,
// then triggers, then views topologically sorted on their SELECT's table
// references.
func fullSchemaOrder(c *schema.Cache) []*schema.Item {
	var tables, indexes, triggers, views []*schema.Item
	for _, it := range c.Category(grammar.CategoryTable) {
		tables = append(tables, it)
	}
	for _, it := range c.Category(grammar.CategoryIndex) {
		indexes = append(indexes, it)
	}
	for _, it := range c.Category(grammar.CategoryTrigger) {
		triggers = append(triggers, it)
	}
	for _, it := range c.Category(grammar.CategoryView) {
		views = append(views, it)
	}
	sortByName(tables)
	sortByName(indexes)
	sortByName(triggers)
	views = topoSort(views)

	out := make([]*schema.Item, 0, len(tables)+len(indexes)+len(triggers)+len(views))
	out = append(out, tables...)
	out = append(out, indexes...)
	out = append(out, triggers...)
	out = append(out, views...)
	return out
}

// topoSort orders items so that every item comes after the items (within
// the same set) it depends on, via Meta.Tables. Deterministic: candidates
// at each step are visited in name order.
func topoSort(items []*schema.Item) []*schema.Item {
	index := make(map[string]*schema.Item, len(items))
	for _, it := range items {
		index[strings.ToLower(it.Name)] = it
	}
	visited := make(map[string]bool, len(items))
	out := make([]*schema.Item, 0, len(items))

	var visit func(it *schema.Item)
	visit = func(it *schema.Item) {
		key := strings.ToLower(it.Name)
		if visited[key] {
			return
		}
		visited[key] = true
		if it.Meta != nil {
			deps := append([]string(nil), it.Meta.Tables...)
			sort.Strings(deps)
			for _, dep := range deps {
				if other, ok := index[dep]; ok {
					visit(other)
				}
			}
		}
		out = append(out, it)
	}

	names := make([]string, 0, len(index))
	for k := range index {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		visit(index[n])
	}
	return out
}
