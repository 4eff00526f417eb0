package pathexpr

import (
	"strconv"
	"strings"
)

// Condition is a predicate tree. Leaves compare one attribute with a
// literal; inner nodes combine two conditions with "and" or "or".
type Condition struct {
	Op    string
	Key   string
	Value string
	Left  *Condition
	Right *Condition
}

// Lookup resolves an attribute of the node under test.
type Lookup func(key string) (string, bool)

// Eval evaluates the condition. A comparison against a missing attribute is
// false; a bare key tests presence.
func (c *Condition) Eval(lookup Lookup) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case "and":
		return c.Left.Eval(lookup) && c.Right.Eval(lookup)
	case "or":
		return c.Left.Eval(lookup) || c.Right.Eval(lookup)
	}
	got, ok := lookup(c.Key)
	if !ok {
		return false
	}
	if c.Op == "" {
		return true
	}
	cmp := compare(got, c.Value)
	switch c.Op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	}
	return false
}

// compare orders two literals numerically when both are numbers and
// lexically otherwise.
func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// String renders the condition so that parsing the text yields the same
// tree. Disjunctions under a conjunction are parenthesized.
func (c *Condition) String() string {
	switch c.Op {
	case "and":
		return c.Left.operand() + " and " + c.Right.operand()
	case "or":
		return c.Left.String() + " or " + c.Right.String()
	case "":
		return c.Key
	}
	return c.Key + c.Op + quoteIfNeeded(c.Value)
}

func (c *Condition) operand() string {
	if c.Op == "or" {
		return "(" + c.String() + ")"
	}
	return c.String()
}

// equalities collects key=value leaves joined only by "and".
func (c *Condition) equalities(into map[string]string) {
	if c == nil {
		return
	}
	switch c.Op {
	case "and":
		c.Left.equalities(into)
		c.Right.equalities(into)
	case "=":
		into[c.Key] = c.Value
	}
}

func and(a, b *Condition) *Condition {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &Condition{Op: "and", Left: a, Right: b}
}

func quoteIfNeeded(v string) string {
	if v == "" || strings.ContainsAny(v, " \t[]()|/\"'=<>!") {
		return strconv.Quote(v)
	}
	return v
}

// parseCondition parses the text between brackets. ok is false when the
// text is not a well-formed condition.
func parseCondition(src string) (*Condition, bool) {
	toks, ok := tokenizeCondition(src)
	if !ok || len(toks) == 0 {
		return nil, false
	}
	p := &condParser{toks: toks}
	c := p.or()
	if c == nil || p.pos != len(p.toks) {
		return nil, false
	}
	return c, true
}

type condToken struct {
	text   string
	op     bool
	quoted bool
	paren  bool
}

func tokenizeCondition(src string) ([]condToken, bool) {
	var toks []condToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"' || c == '\'':
			j := i + 1
			var b strings.Builder
			for j < len(src) && src[j] != c {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				b.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, false
			}
			toks = append(toks, condToken{text: b.String(), quoted: true})
			i = j + 1
		case c == '(' || c == ')':
			toks = append(toks, condToken{text: string(c), paren: true})
			i++
		case c == '=' || c == '<' || c == '>' || c == '!':
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' && c != '=' {
				op += "="
			}
			if op == "!" {
				return nil, false
			}
			toks = append(toks, condToken{text: op, op: true})
			i += len(op)
		default:
			j := i
			for j < len(src) && !strings.ContainsRune(" \t\"'=<>!()", rune(src[j])) {
				j++
			}
			toks = append(toks, condToken{text: src[i:j]})
			i = j
		}
	}
	return toks, true
}

type condParser struct {
	toks []condToken
	pos  int
}

func (p *condParser) keyword(kw string) bool {
	if p.pos < len(p.toks) {
		t := p.toks[p.pos]
		if !t.op && !t.quoted && !t.paren && strings.EqualFold(t.text, kw) {
			p.pos++
			return true
		}
	}
	return false
}

func (p *condParser) or() *Condition {
	left := p.and()
	for left != nil && p.keyword("or") {
		right := p.and()
		if right == nil {
			return nil
		}
		left = &Condition{Op: "or", Left: left, Right: right}
	}
	return left
}

func (p *condParser) and() *Condition {
	left := p.comparison()
	for left != nil && p.keyword("and") {
		right := p.comparison()
		if right == nil {
			return nil
		}
		left = &Condition{Op: "and", Left: left, Right: right}
	}
	return left
}

func (p *condParser) comparison() *Condition {
	if p.pos >= len(p.toks) {
		return nil
	}
	key := p.toks[p.pos]
	if key.paren && key.text == "(" {
		p.pos++
		c := p.or()
		if c == nil || p.pos >= len(p.toks) || p.toks[p.pos].text != ")" || !p.toks[p.pos].paren {
			return nil
		}
		p.pos++
		return c
	}
	if key.op || key.quoted || key.paren {
		return nil
	}
	p.pos++
	if p.pos >= len(p.toks) || !p.toks[p.pos].op {
		return &Condition{Key: key.text}
	}
	op := p.toks[p.pos].text
	p.pos++
	if p.pos >= len(p.toks) || p.toks[p.pos].op || p.toks[p.pos].paren {
		return nil
	}
	val := p.toks[p.pos]
	p.pos++
	return &Condition{Op: op, Key: key.text, Value: val.text}
}
