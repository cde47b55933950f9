package grammar

import "strings"

// SplitScript splits a multi-statement SQL script into individual
// statements (trailing semicolons stripped, whitespace trimmed, empty
// statements dropped). It tracks BEGIN/END nesting so a trigger's body
// semicolons don't split the CREATE TRIGGER statement that contains them;
// a bare "BEGIN" is only treated as nesting when it isn't the start of a
// BEGIN [DEFERRED|IMMEDIATE|EXCLUSIVE] [TRANSACTION] statement, which
// closes with COMMIT/ROLLBACK rather than END and needs no special
// handling from the splitter.
func SplitScript(sql string) []string {
	toks := Tokenize(sql)
	var stmts []string
	depth := 0
	start := 0
	for i, t := range toks {
		if t.Kind == KindIdent && strings.EqualFold(t.Value, "BEGIN") && beginsTriggerBody(toks, i) {
			depth++
		}
		if t.Kind == KindIdent && strings.EqualFold(t.Value, "END") && depth > 0 {
			depth--
		}
		if t.Kind == KindPunct && t.Raw == ";" && depth == 0 {
			if s := strings.TrimSpace(rawRange(toks[start:i])); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(rawRange(toks[start:])); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func beginsTriggerBody(toks []Token, i int) bool {
	next := nextSig(toks, i)
	if next.Kind != KindIdent {
		return next.Kind != KindPunct || next.Raw != ";"
	}
	switch strings.ToUpper(next.Value) {
	case "TRANSACTION", "DEFERRED", "IMMEDIATE", "EXCLUSIVE":
		return false
	}
	return true
}

func rawRange(toks []Token) string {
	var sb strings.Builder
	for _, t := range toks {
		if t.Kind == KindEOF {
			continue
		}
		sb.WriteString(t.Raw)
	}
	return sb.String()
}
