package schema

import (
	"strings"

	"github.com/sqlitely-dev/core/grammar"
)

// GetRelated returns the related items of (category, name), partitioned
// by category, per spec.md §4.2:
//   - own restricts the result to items considered children: an index
//     belongs to its table, a trigger belongs to its target table/view.
//   - data additionally includes data-level relations: other tables that
//     reference this one through a foreign key.
//   - clone additionally pulls in the own-child set regardless of own,
//     since those are the items that must be cloned alongside a copy.
func GetRelated(c *Cache, category grammar.Category, name string, own, data, clone bool) map[grammar.Category]map[string]*Item {
	result := map[grammar.Category]map[string]*Item{}
	add := func(it *Item) {
		if result[it.Category] == nil {
			result[it.Category] = map[string]*Item{}
		}
		result[it.Category][it.Name] = it
	}

	item, ok := c.Get(category, name)
	if !ok {
		return result
	}

	for depName := range item.Dependents {
		dep, ok := c.FindAnyCategory(depName)
		if !ok {
			continue
		}
		isChild := isOwnRelation(dep, item.Name)
		switch {
		case own:
			if isChild {
				add(dep)
			}
		case dep.Category == grammar.CategoryTable:
			if data {
				add(dep)
			}
		default:
			add(dep)
		}
	}

	if clone {
		for depName := range item.Dependents {
			dep, ok := c.FindAnyCategory(depName)
			if ok && isOwnRelation(dep, item.Name) {
				add(dep)
			}
		}
	}

	return result
}

func isOwnRelation(dep *Item, ownerName string) bool {
	if dep.Meta == nil {
		return false
	}
	switch dep.Category {
	case grammar.CategoryIndex:
		return dep.Meta.Index != nil && strings.EqualFold(dep.Meta.Index.Table, ownerName)
	case grammar.CategoryTrigger:
		return dep.Meta.Trigger != nil && strings.EqualFold(dep.Meta.Trigger.Table, ownerName)
	}
	return false
}
