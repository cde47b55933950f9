package grammar

import "strings"

// cursor walks the significant (non-trivia) tokens of a stream while
// retaining access to the full stream for raw-text reconstruction.
type cursor struct {
	toks []Token // full stream, trivia included
	sig  []int   // indices into toks of non-trivia tokens
	pos  int      // position into sig
}

func newCursor(toks []Token) *cursor {
	c := &cursor{toks: toks}
	for i, t := range toks {
		if !t.IsTrivia() && t.Kind != KindEOF {
			c.sig = append(c.sig, i)
		}
	}
	return c
}

func (c *cursor) atEnd() bool { return c.pos >= len(c.sig) }

func (c *cursor) cur() Token {
	if c.atEnd() {
		return Token{Kind: KindEOF}
	}
	return c.toks[c.sig[c.pos]]
}

// curTokIndex returns the index into the full token stream of the current
// significant token, or len(toks) at end of input.
func (c *cursor) curTokIndex() int {
	if c.atEnd() {
		return len(c.toks)
	}
	return c.sig[c.pos]
}

func (c *cursor) peekN(n int) Token {
	if c.pos+n >= len(c.sig) {
		return Token{Kind: KindEOF}
	}
	return c.toks[c.sig[c.pos+n]]
}

func (c *cursor) advance() Token {
	t := c.cur()
	c.pos++
	return t
}

func (c *cursor) isKeyword(kw string) bool {
	t := c.cur()
	return t.Kind == KindIdent && strings.EqualFold(t.Value, kw)
}

func (c *cursor) isKeywordAt(n int, kw string) bool {
	t := c.peekN(n)
	return t.Kind == KindIdent && strings.EqualFold(t.Value, kw)
}

func (c *cursor) eatKeyword(kw string) bool {
	if c.isKeyword(kw) {
		c.advance()
		return true
	}
	return false
}

func (c *cursor) expectKeyword(kw string) error {
	if !c.eatKeyword(kw) {
		t := c.cur()
		return errf(t.Line, t.Column, "expected keyword %q, got %q", kw, t.Raw)
	}
	return nil
}

func (c *cursor) isPunct(p string) bool {
	t := c.cur()
	return t.Kind == KindPunct && t.Raw == p
}

func (c *cursor) eatPunct(p string) bool {
	if c.isPunct(p) {
		c.advance()
		return true
	}
	return false
}

func (c *cursor) expectPunct(p string) error {
	if !c.eatPunct(p) {
		t := c.cur()
		return errf(t.Line, t.Column, "expected %q, got %q", p, t.Raw)
	}
	return nil
}

// isName reports whether the current token can serve as an identifier:
// a bare word (that the caller is responsible for checking isn't being
// misused as a keyword in a name position) or a quoted form.
func (c *cursor) isName() bool {
	t := c.cur()
	return t.Kind == KindIdent || t.Kind == KindQuoted
}

func (c *cursor) parseName() (string, error) {
	t := c.cur()
	if !c.isName() {
		return "", errf(t.Line, t.Column, "expected identifier, got %q", t.Raw)
	}
	c.advance()
	return t.Value, nil
}

// parseQualifiedName parses [schema.]name and returns them separately;
// schema is empty when no qualifier was present.
func (c *cursor) parseQualifiedName() (schemaName, name string, err error) {
	name, err = c.parseName()
	if err != nil {
		return "", "", err
	}
	if c.eatPunct(".") {
		schemaName = name
		name, err = c.parseName()
		if err != nil {
			return "", "", err
		}
	}
	return schemaName, name, nil
}

// rawBetween renders the full-stream token range [start, end) back to text,
// preserving original whitespace and comments, then trims the result.
func (c *cursor) rawBetween(start, end int) string {
	if start >= end || start < 0 || end > len(c.toks) {
		return ""
	}
	var sb strings.Builder
	for _, t := range c.toks[start:end] {
		sb.WriteString(t.Raw)
	}
	return strings.TrimSpace(sb.String())
}

// captureExpr consumes tokens, tracking parenthesis depth, until it finds
// (at depth 0) one of the stop keywords or stop punctuation marks, or runs
// out of input. It returns the raw source text it consumed (not including
// the stop token). A leading, fully-enclosing parenthesis pair is kept as
// part of the text (callers that want it stripped do so themselves).
func (c *cursor) captureExpr(stopKeywords, stopPuncts []string) string {
	start := c.curTokIndex()
	depth := 0
	for !c.atEnd() {
		t := c.cur()
		if depth == 0 {
			if t.Kind == KindIdent {
				stop := false
				for _, kw := range stopKeywords {
					if strings.EqualFold(t.Value, kw) {
						stop = true
						break
					}
				}
				if stop {
					break
				}
			}
			if t.Kind == KindPunct {
				stop := false
				for _, p := range stopPuncts {
					if t.Raw == p {
						stop = true
						break
					}
				}
				if stop {
					break
				}
			}
		}
		if t.Kind == KindPunct && t.Raw == "(" {
			depth++
		}
		if t.Kind == KindPunct && t.Raw == ")" {
			if depth == 0 {
				break
			}
			depth--
		}
		c.advance()
	}
	end := c.curTokIndex()
	return c.rawBetween(start, end)
}

// captureBalancedParen consumes a leading '(' and everything up to and
// including its matching ')', returning the inner text (without the
// parens) and advancing past the closing paren. Returns an error if the
// current token is not '('.
func (c *cursor) captureBalancedParen() (string, error) {
	if !c.isPunct("(") {
		t := c.cur()
		return "", errf(t.Line, t.Column, "expected '(', got %q", t.Raw)
	}
	c.advance()
	start := c.curTokIndex()
	depth := 1
	for !c.atEnd() {
		t := c.cur()
		if t.Kind == KindPunct && t.Raw == "(" {
			depth++
		}
		if t.Kind == KindPunct && t.Raw == ")" {
			depth--
			if depth == 0 {
				break
			}
		}
		c.advance()
	}
	end := c.curTokIndex()
	inner := c.rawBetween(start, end)
	if !c.eatPunct(")") {
		t := c.cur()
		return "", errf(t.Line, t.Column, "unterminated parenthesis")
	}
	return inner, nil
}

// splitTopLevel splits a raw comma-separated list into items, respecting
// nested parentheses and quoted strings so commas inside them are not
// treated as separators.
func splitTopLevel(s string, sep rune) []string {
	var out []string
	depth := 0
	var cur strings.Builder
	inStr := rune(0)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inStr != 0:
			cur.WriteRune(r)
			if r == inStr {
				inStr = 0
			}
		case r == '\'' || r == '"' || r == '`':
			inStr = r
			cur.WriteRune(r)
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == sep && depth == 0:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" || len(out) > 0 {
		out = append(out, s)
	}
	return out
}
