package pathexpr

import (
	"strconv"
	"strings"
)

// Range is a half-open slice [Start, End) applied to the merged match list.
// A missing bound means "from the beginning" or "to the end".
type Range struct {
	Start    int  `json:"start"`
	End      int  `json:"end"`
	HasStart bool `json:"hasStart"`
	HasEnd   bool `json:"hasEnd"`
}

// Bounds clamps the range to a list of length n.
func (r Range) Bounds(n int) (lo, hi int) {
	lo, hi = 0, n
	if r.HasStart {
		lo = min(max(r.Start, 0), n)
	}
	if r.HasEnd {
		hi = min(max(r.End, 0), n)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (r Range) String() string {
	var b strings.Builder
	b.WriteByte('{')
	if r.HasStart {
		b.WriteString(strconv.Itoa(r.Start))
	}
	b.WriteByte(':')
	if r.HasEnd {
		b.WriteString(strconv.Itoa(r.End))
	}
	b.WriteByte('}')
	return b.String()
}

// Expression is a parsed path expression: union alternatives plus an
// optional range over their merged matches.
type Expression struct {
	Source string `json:"source"`
	Range  *Range `json:"range,omitempty"`
	Paths  []Path `json:"paths"`
}

// String renders the normalized form of the expression.
func (e *Expression) String() string {
	parts := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		parts[i] = p.String()
	}
	s := strings.Join(parts, "|")
	if e.Range != nil {
		s = e.Range.String() + s
	}
	return s
}

// Parse parses source. It never fails: empty input yields an expression
// without paths and malformed parts are dropped or kept as plain fields.
func Parse(source string) *Expression {
	e := &Expression{Source: source}
	s := strings.TrimSpace(source)
	if s == "" {
		return e
	}
	if strings.HasPrefix(s, "{") {
		if end := strings.IndexByte(s, '}'); end > 0 {
			if r, ok := parseRange(s[1:end]); ok {
				e.Range = &r
			}
			s = strings.TrimSpace(s[end+1:])
		}
	}
	for _, alt := range splitTop(s, '|') {
		p := parsePath(strings.TrimSpace(alt))
		if len(p.Components) > 0 {
			e.Paths = append(e.Paths, p)
		}
	}
	return e
}

func parseRange(s string) (Range, bool) {
	s = strings.TrimSpace(s)
	lo, hi, hasColon := strings.Cut(s, ":")
	var r Range
	if lo = strings.TrimSpace(lo); lo != "" {
		n, err := strconv.Atoi(lo)
		if err != nil {
			return Range{}, false
		}
		r.Start, r.HasStart = n, true
	}
	if !hasColon {
		if !r.HasStart {
			return Range{}, false
		}
		r.End, r.HasEnd = r.Start+1, true
		return r, true
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		n, err := strconv.Atoi(hi)
		if err != nil {
			return Range{}, false
		}
		r.End, r.HasEnd = n, true
	}
	return r, true
}

// splitTop splits s on sep outside brackets and quotes.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			if depth > 0 {
				quote = c
			}
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func parsePath(s string) Path {
	var p Path
	if strings.HasPrefix(s, "/") {
		p.Rooted = true
		s = strings.TrimPrefix(s, "//")
		s = strings.TrimPrefix(s, "/")
	}
	if s == "" {
		return p
	}
	segs := splitTop(s, '/')
	for i, seg := range segs {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			// a//b is a/.../b; a trailing slash adds nothing.
			if i == len(segs)-1 {
				continue
			}
			seg = DeepWildcard
		}
		p.Components = append(p.Components, parseSegment(seg, len(p.Components)))
	}
	return p
}

var operationKeywords = map[string]bool{"query": true, "mutation": true, "subscription": true}

var definitionKeywords = map[string]bool{
	"type": true, "input": true, "enum": true, "scalar": true,
	"interface": true, "union": true, "schema": true, "directive": true,
}

func parseSegment(seg string, position int) Component {
	name, cond, malformed := splitPredicates(seg)
	c := Component{Position: position, Value: name, Condition: cond, Malformed: malformed}
	if cond != nil {
		c.Attributes = map[string]string{}
		cond.equalities(c.Attributes)
	}
	switch {
	case name == DeepWildcard:
		c.Kind = Field
	case strings.HasPrefix(name, DeepWildcard):
		c.Kind = Fragment
		c.Spread = true
		c.Value = strings.TrimSpace(name[len(DeepWildcard):])
	case strings.HasPrefix(name, "@") && len(name) > 1:
		c.Kind = Directive
		c.Value = name[1:]
	case strings.HasPrefix(name, "$") && len(name) > 1:
		c.Kind = Variable
		c.Value = name[1:]
	case position == 0 && operationKeywords[name]:
		c.Kind, c.Keyword, c.Value = Operation, name, Wildcard
	case position == 0 && name == "fragment":
		c.Kind, c.Keyword, c.Value = Fragment, name, Wildcard
	case position == 0 && definitionKeywords[name]:
		c.Kind, c.Keyword, c.Value = Definition, name, Wildcard
	default:
		if c.Value == "" {
			c.Value = Wildcard
		}
		c.Kind = kindFromAttributes(c.Attributes)
		if c.Kind == Fragment && c.Attributes["type"] == "spread" {
			c.Spread = true
		}
	}
	return c
}

func kindFromAttributes(attrs map[string]string) Kind {
	switch attrs["type"] {
	case "arg":
		return Argument
	case "var":
		return Variable
	case "direc":
		return Directive
	case "frag", "spread":
		return Fragment
	case "op":
		return Operation
	case "type", "schema":
		return Definition
	}
	if _, ok := attrs["alias"]; ok {
		return Alias
	}
	return Field
}

// splitPredicates separates a segment into its name and the conjunction of
// its bracketed predicates. Unterminated or unparsable predicates are
// dropped and reported as malformed.
func splitPredicates(seg string) (string, *Condition, bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, false
	}
	name := strings.TrimSpace(seg[:open])
	rest := seg[open:]
	var cond *Condition
	malformed := false
	for rest != "" {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != '[' {
			malformed = true
			break
		}
		end := closingBracket(rest)
		if end < 0 {
			malformed = true
			break
		}
		c, ok := parseCondition(rest[1:end])
		if ok {
			cond = and(cond, c)
		} else {
			malformed = true
		}
		rest = rest[end+1:]
	}
	return name, cond, malformed
}

func closingBracket(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ']':
			return i
		}
	}
	return -1
}
