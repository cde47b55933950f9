package search

import (
	"strings"

	"github.com/sqlitely-dev/core/grammar"
)

func searchParseError(msg string) error {
	return &grammar.ParseError{Message: msg}
}

// Parse compiles raw into a Query tree following the grammar in
// spec.md §4.4: whitespace-separated words, quoted phrases, parenthesized
// groups, literal-"OR" disjunctions, leading "-" negation, and
// table:/view:/column:/date: keywords. The empty query is rejected.
func Parse(raw string) (*Query, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, searchParseError("empty search query")
	}
	p := &parser{toks: tokenize(trimmed)}
	terms, err := p.parseSequence(false)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, searchParseError("unexpected token " + p.toks[p.pos])
	}
	if len(terms) == 0 {
		return nil, searchParseError("empty search query")
	}
	return &Query{Terms: terms}, nil
}

// tokenize splits raw into words, quoted phrases (kept with their quotes),
// and standalone "(" / ")" tokens.
func tokenize(raw string) []string {
	r := []rune(raw)
	var toks []string
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		case c == '"':
			j := i + 1
			for j < len(r) && r[j] != '"' {
				j++
			}
			if j < len(r) {
				j++
			}
			toks = append(toks, string(r[i:j]))
			i = j
		default:
			j := i
			for j < len(r) && r[j] != ' ' && r[j] != '\t' && r[j] != '\n' && r[j] != '\r' && r[j] != '(' && r[j] != ')' {
				j++
			}
			toks = append(toks, string(r[i:j]))
			i = j
		}
	}
	return toks
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

// parseSequence parses a run of OR-chains until ")" (inGroup) or input end.
func (p *parser) parseSequence(inGroup bool) ([]*Node, error) {
	var out []*Node
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		if tok == ")" {
			if inGroup {
				break
			}
			return nil, searchParseError("unexpected )")
		}
		term, err := p.parseOrChain()
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

func (p *parser) parseOrChain() (*Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	alts := []*Node{first}
	for {
		tok, ok := p.peek()
		if !ok || tok != "OR" {
			break
		}
		p.pos++
		next, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return &Node{Kind: NodeOr, Children: alts}, nil
}

func (p *parser) parsePrimary() (*Node, error) {
	raw, ok := p.peek()
	if !ok {
		return nil, searchParseError("unexpected end of query")
	}

	if raw == "(" {
		p.pos++
		children, err := p.parseSequence(true)
		if err != nil {
			return nil, err
		}
		next, ok := p.peek()
		if !ok || next != ")" {
			return nil, searchParseError("unterminated group")
		}
		p.pos++
		if len(children) == 0 {
			return nil, searchParseError("empty group")
		}
		return &Node{Kind: NodeAnd, Children: children}, nil
	}

	if raw == "-" {
		p.pos++
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		inner.Negated = !inner.Negated
		return inner, nil
	}

	p.pos++
	tok := raw
	negated := false
	if len(tok) > 1 && strings.HasPrefix(tok, "-") {
		negated = true
		tok = tok[1:]
	}

	if strings.HasPrefix(tok, `"`) {
		return &Node{Kind: NodePhrase, Phrase: unquotePhrase(tok), Negated: negated}, nil
	}
	if key, val, ok := splitKeywordBody(tok); ok {
		return &Node{Kind: NodeKeyword, KeywordKey: key, KeywordValue: val, Negated: negated}, nil
	}
	if tok == "OR" {
		return nil, searchParseError("unexpected OR")
	}
	return &Node{Kind: NodeWord, Word: tok, Negated: negated}, nil
}

func unquotePhrase(tok string) string {
	if len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
		return tok[1 : len(tok)-1]
	}
	return strings.Trim(tok, `"`)
}

func splitKeywordBody(tok string) (KeywordKey, string, bool) {
	idx := strings.Index(tok, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := KeywordKey(strings.ToLower(tok[:idx]))
	switch key {
	case KeyTable, KeyView, KeyColumn, KeyDate:
	default:
		return "", "", false
	}
	value := unquotePhrase(tok[idx+1:])
	return key, value, true
}

// ParseFallback implements spec.md §4.4's lenient best-effort tokenizer,
// used when Parse rejects malformed input: split on whitespace, extract
// -?(table|view|column|date):value keywords, and treat the rest as plain
// words ANDed together. It never fails.
func ParseFallback(raw string) *Query {
	fields := strings.Fields(raw)
	var terms []*Node
	for _, f := range fields {
		negated := false
		tok := f
		if len(tok) > 1 && strings.HasPrefix(tok, "-") {
			negated = true
			tok = tok[1:]
		}
		if key, val, ok := splitKeywordBody(tok); ok {
			terms = append(terms, &Node{Kind: NodeKeyword, KeywordKey: key, KeywordValue: val, Negated: negated})
			continue
		}
		if tok == "" {
			continue
		}
		terms = append(terms, &Node{Kind: NodeWord, Word: tok, Negated: negated})
	}
	return &Query{Terms: terms}
}

// ParseLenient tries Parse first and falls back to ParseFallback on
// failure, matching spec.md §4.4's fallback contract.
func ParseLenient(raw string) (*Query, error) {
	q, err := Parse(raw)
	if err == nil {
		return q, nil
	}
	fb := ParseFallback(raw)
	if len(fb.Terms) == 0 {
		return nil, err
	}
	return fb, nil
}
