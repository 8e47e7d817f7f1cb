package buildcontext

import "strings"

// Expr is the dockerfile `# CONTEXT <expr>` small expression language,
// re-architected as an explicit AST rather than parsed-and-eval'd text
// at evaluation time. The textual form stays compatible with existing
// dockerfile comments; ParseExpr turns that text into this tree once.
type Expr interface {
	Eval(c *Context) bool
}

// And is satisfied iff every operand is satisfied.
type And []Expr

func (a And) Eval(c *Context) bool {
	for _, e := range a {
		if !e.Eval(c) {
			return false
		}
	}
	return true
}

// Or is satisfied iff at least one operand is satisfied.
type Or []Expr

func (o Or) Eval(c *Context) bool {
	for _, e := range o {
		if e.Eval(c) {
			return true
		}
	}
	return false
}

// Not negates its operand.
type Not struct{ Expr Expr }

func (n Not) Eval(c *Context) bool {
	return !n.Expr.Eval(c)
}

// Eq is satisfied iff the context value at Path equals Value (string comparison).
type Eq struct {
	Path  string
	Value string
}

func (e Eq) Eval(c *Context) bool {
	return c.GetString(e.Path) == e.Value
}

// In is satisfied iff the context value at Path appears in Values.
type In struct {
	Path   string
	Values []string
}

func (i In) Eval(c *Context) bool {
	v := c.GetString(i.Path)
	for _, candidate := range i.Values {
		if v == candidate {
			return true
		}
	}
	return false
}

// Exists is satisfied iff Path resolves to any value.
type Exists struct{ Path string }

func (e Exists) Eval(c *Context) bool {
	_, ok := c.Get(e.Path)
	return ok
}

// ParseExpr parses the textual # CONTEXT expression language into an Expr
// tree. The text is split at its first " and " before any " or " is
// considered, so "and" binds more loosely than "or": "a or b and c"
// parses as (a or b) and c. No parentheses; case-sensitive paths/values:
//
//	expr       := clause (("and" | "or") clause)*
//	clause     := "not" atom | atom
//	atom       := exists | in | eq
//	exists     := "exists(" path ")"
//	in         := path "in" "[" value ("," value)* "]"
//	eq         := path "==" value
//
// An empty expression is always satisfied (no filtering).
func ParseExpr(text string) Expr {
	text = strings.TrimSpace(text)
	if text == "" {
		return And{}
	}

	if idx := findConnective(text, " and "); idx >= 0 {
		return And{ParseExpr(text[:idx]), ParseExpr(text[idx+len(" and "):])}
	}
	if idx := findConnective(text, " or "); idx >= 0 {
		return Or{ParseExpr(text[:idx]), ParseExpr(text[idx+len(" or "):])}
	}

	if strings.HasPrefix(text, "not ") {
		return Not{Expr: ParseExpr(strings.TrimSpace(text[4:]))}
	}

	if strings.HasPrefix(text, "exists(") && strings.HasSuffix(text, ")") {
		path := strings.TrimSpace(text[len("exists(") : len(text)-1])
		return Exists{Path: path}
	}

	if idx := strings.Index(text, " in "); idx >= 0 {
		path := strings.TrimSpace(text[:idx])
		listText := strings.TrimSpace(text[idx+len(" in "):])
		listText = strings.TrimPrefix(listText, "[")
		listText = strings.TrimSuffix(listText, "]")
		var values []string
		for _, v := range strings.Split(listText, ",") {
			values = append(values, strings.Trim(strings.TrimSpace(v), `"'`))
		}
		return In{Path: path, Values: values}
	}

	if idx := strings.Index(text, "=="); idx >= 0 {
		path := strings.TrimSpace(text[:idx])
		value := strings.Trim(strings.TrimSpace(text[idx+2:]), `"'`)
		return Eq{Path: path, Value: value}
	}

	// Bare path with no operator: treated as an existence check.
	return Exists{Path: text}
}

// findConnective finds the leftmost occurrence of sep. The grammar here
// has no brackets around and/or clauses, so this is a straightforward
// substring search.
func findConnective(text, sep string) int {
	return strings.Index(text, sep)
}
