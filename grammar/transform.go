package grammar

// TransformOptions bundles the edits Transform applies to a statement in
// one pass: a rename, explicit flag overrides (e.g. forcing
// "IF NOT EXISTS" on or off), and an output indent.
type TransformOptions struct {
	Renames *Renames
	Flags   map[string]bool
	Indent  string
}

// Transform parses sql, applies renames and flag overrides, and regenerates
// canonical SQL. It is the single entry point schema/database code uses for
// "give me this statement, but renamed/reflagged" — canonical regeneration
// is the contract (see Non-goals); Transform does not attempt to preserve
// the original statement's exact whitespace or comment placement.
func Transform(sql string, opts TransformOptions) (string, error) {
	m, err := Parse(sql, ParseOptions{Renames: opts.Renames})
	if err != nil {
		return "", err
	}
	if len(opts.Flags) > 0 {
		if m.Flags == nil {
			m.Flags = Flags{}
		}
		for k, v := range opts.Flags {
			m.Flags[k] = v
		}
	}
	return Generate(m, opts.Indent), nil
}
