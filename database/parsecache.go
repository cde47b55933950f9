package database

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sqlitely-dev/core/grammar"
)

// ParseCache memoizes grammar.Parse by SQL text, bounded at
// Config.MaxParseCache entries. Each Database creates one when it is
// opened. Schema scans (schema.Scan, behind PopulateSchema) call
// grammar.Parse directly and do not go through this cache, so repeated
// scans re-parse every item's CREATE text.
type ParseCache struct {
	lru *lru.Cache[string, *cachedParse]
}

type cachedParse struct {
	meta *grammar.Meta
	err  error
}

// NewParseCache returns a ParseCache holding at most size entries (size <=
// 0 is treated as 1, the smallest usable LRU).
func NewParseCache(size int) (*ParseCache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[string, *cachedParse](size)
	if err != nil {
		return nil, err
	}
	return &ParseCache{lru: c}, nil
}

// Parse returns the memoized grammar.Parse result for sqlText, parsing and
// caching it on a miss.
func (p *ParseCache) Parse(sqlText string) (*grammar.Meta, error) {
	if cached, ok := p.lru.Get(sqlText); ok {
		return cached.meta, cached.err
	}
	m, err := grammar.Parse(sqlText, grammar.ParseOptions{})
	p.lru.Add(sqlText, &cachedParse{meta: m, err: err})
	return m, err
}
