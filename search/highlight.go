package search

import (
	"fmt"
	"strings"
)

// wordsAndPhrases flattens every non-negated word/phrase term in query
// (recursing through OR/AND groups) into the literal strings the
// highlighter should look for. Keyword and negated terms never
// highlight.
func wordsAndPhrases(query *Query) []string {
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		if n.Negated {
			return
		}
		switch n.Kind {
		case NodeWord:
			out = append(out, n.Word)
		case NodePhrase:
			out = append(out, n.Phrase)
		case NodeOr, NodeAnd:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	for _, t := range query.Terms {
		walk(t)
	}
	return out
}

// HighlightRow computes per-column highlight spans for one result row by
// re-scanning each cell's stringified value against pattern.
func HighlightRow(values []any, pattern []string) [][]Span {
	out := make([][]Span, len(values))
	for i, v := range values {
		out[i] = findSpans(stringify(v), pattern)
	}
	return out
}

// findSpans returns every (start, end) byte range in haystack where one
// of pattern's terms matches, case-insensitively, honoring '*' as a
// wildcard matching any run of characters. Overlapping/duplicate matches
// are not merged; scenario tests only assert non-empty coverage of the
// matched term.
func findSpans(haystack string, pattern []string) []Span {
	if haystack == "" || len(pattern) == 0 {
		return nil
	}
	lowerHay := strings.ToLower(haystack)
	var spans []Span
	for _, term := range pattern {
		if term == "" {
			continue
		}
		spans = append(spans, matchTerm(lowerHay, strings.ToLower(term))...)
	}
	return spans
}

// matchTerm finds every occurrence of term in hay, where '*' in term
// matches any run of characters (including none).
func matchTerm(hay, term string) []Span {
	if !strings.Contains(term, "*") {
		var spans []Span
		start := 0
		for {
			idx := strings.Index(hay[start:], term)
			if idx < 0 {
				break
			}
			abs := start + idx
			spans = append(spans, Span{Start: abs, End: abs + len(term)})
			start = abs + len(term)
			if len(term) == 0 {
				start++
			}
		}
		return spans
	}

	segments := strings.Split(term, "*")
	var spans []Span
	for start := 0; start <= len(hay); start++ {
		end, ok := matchSegmentsFrom(hay, start, segments)
		if ok {
			spans = append(spans, Span{Start: start, End: end})
		}
	}
	return spans
}

// matchSegmentsFrom greedily matches segments (joined by wildcard gaps)
// starting at pos, returning the end offset of the full match.
func matchSegmentsFrom(hay string, pos int, segments []string) (int, bool) {
	cursor := pos
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		idx := strings.Index(hay[cursor:], seg)
		if i == 0 {
			if !strings.HasPrefix(hay[cursor:], seg) {
				return 0, false
			}
			cursor += len(seg)
			continue
		}
		if idx < 0 {
			return 0, false
		}
		cursor += idx + len(seg)
	}
	return cursor, true
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
