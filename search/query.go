// Package search implements the query-language parser, SQL compiler, and
// streaming executor for full-text search across both row data and schema
// metadata.
package search

// NodeKind tags the variant a Node carries.
type NodeKind string

// Recognized query node kinds.
const (
	NodeWord    NodeKind = "word"
	NodePhrase  NodeKind = "phrase"
	NodeOr      NodeKind = "or"
	NodeAnd     NodeKind = "and" // a parenthesized group
	NodeKeyword NodeKind = "keyword"
)

// KeywordKey enumerates the recognized key:value keyword names.
type KeywordKey string

// Recognized keyword keys.
const (
	KeyTable  KeywordKey = "table"
	KeyView   KeywordKey = "view"
	KeyColumn KeywordKey = "column"
	KeyDate   KeywordKey = "date"
)

// Node is one term of a parsed query: a word, a phrase, an OR-group, a
// parenthesized AND-group, or a key:value keyword. Negated applies to any
// of these (a leading "-").
type Node struct {
	Kind     NodeKind
	Negated  bool
	Word     string
	Phrase   string
	Children []*Node // NodeOr alternatives, or NodeAnd group members

	KeywordKey   KeywordKey
	KeywordValue string
}

// Query is a parsed search query: an implicit AND-sequence of top-level
// terms.
type Query struct {
	Terms []*Node
}
