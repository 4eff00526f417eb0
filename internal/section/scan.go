package section

import "unicode/utf8"

var definitionKeywords = map[string]bool{
	"query": true, "mutation": true, "subscription": true, "fragment": true,
	"schema": true, "scalar": true, "type": true, "interface": true,
	"union": true, "enum": true, "input": true, "directive": true, "extend": true,
}

// bodiless definitions never own a brace block; a `{` after them starts an
// anonymous query.
var bodiless = map[Type]bool{Scalar: true, Union: true, Directive: true}

// Scan splits text into its top-level definitions in document order.
// Tokens that cannot start a definition are skipped.
func Scan(text string) []*Section {
	l := &lexer{src: text}
	cur := cursor{line: 1, col: 1}
	ordinals := map[[2]string]int{}
	var out []*Section
	for {
		tok := l.next()
		if tok.kind == tokEOF {
			break
		}
		start := tok.start
		if tok.kind == tokString {
			tok = l.next()
		}
		s := l.header(tok)
		if s == nil {
			continue
		}
		s.Start = start
		s.End = l.body(s.Type)
		s.Text = text[s.Start:s.End]
		cur.advance(text, s.Start)
		s.RuneStart, s.Line, s.Column = cur.runes, cur.line, cur.col
		k := [2]string{string(s.Type), s.Name}
		s.Ordinal = ordinals[k]
		ordinals[k]++
		out = append(out, s)
	}
	return out
}

// header reads the keyword and name of a definition starting at tok.
func (l *lexer) header(tok token) *Section {
	switch tok.kind {
	case tokPunct:
		if l.text(tok) != "{" {
			return nil
		}
		l.pos = tok.start
		return &Section{Type: Operation, Operation: "query"}
	case tokName:
	default:
		return nil
	}
	kw := l.text(tok)
	extension := false
	if kw == "extend" {
		nt := l.next()
		if nt.kind != tokName {
			l.pos = nt.start
			return nil
		}
		kw = l.text(nt)
		extension = true
	}
	t, ok := TypeForKeyword(kw)
	if !ok {
		return nil
	}
	s := &Section{Type: t, Extension: extension}
	switch t {
	case Operation:
		s.Operation = kw
		s.Name = l.optionalName()
	case Schema:
	case Directive:
		save := l.pos
		if at := l.next(); at.kind == tokPunct && l.text(at) == "@" {
			s.Name = l.optionalName()
		} else {
			l.pos = save
		}
	default:
		s.Name = l.optionalName()
	}
	return s
}

func (l *lexer) optionalName() string {
	save := l.pos
	tok := l.next()
	if tok.kind != tokName {
		l.pos = save
		return ""
	}
	return l.text(tok)
}

// body consumes the rest of a definition of type t and returns its end
// offset. The lexer is left positioned at the start of the next definition.
func (l *lexer) body(t Type) int {
	end := l.pos
	depth := 0
	for {
		save := l.pos
		tok := l.next()
		switch tok.kind {
		case tokEOF:
			return end
		case tokString:
			if depth == 0 {
				l.pos = save
				return end
			}
		case tokName:
			if depth == 0 && definitionKeywords[l.text(tok)] {
				l.pos = save
				return end
			}
		case tokPunct:
			switch l.text(tok) {
			case "(", "[":
				depth++
			case ")", "]":
				if depth > 0 {
					depth--
				}
			case "{":
				if depth == 0 {
					if bodiless[t] {
						l.pos = save
						return end
					}
					l.skipBlock()
					return l.pos
				}
			}
		}
		end = tok.end
	}
}

// skipBlock consumes tokens up to the brace closing an already consumed `{`.
func (l *lexer) skipBlock() {
	depth := 1
	for depth > 0 {
		tok := l.next()
		if tok.kind == tokEOF {
			return
		}
		if tok.kind != tokPunct {
			continue
		}
		switch l.text(tok) {
		case "{":
			depth++
		case "}":
			depth--
		}
	}
}

// spreads lists fragment names referenced by `...Name` in src, in order of
// first appearance.
func spreads(src string) []string {
	l := &lexer{src: src}
	seen := map[string]bool{}
	var names []string
	for {
		tok := l.next()
		if tok.kind == tokEOF {
			return names
		}
		if tok.kind != tokSpread {
			continue
		}
		save := l.pos
		nt := l.next()
		if nt.kind != tokName || l.text(nt) == "on" {
			l.pos = save
			continue
		}
		name := l.text(nt)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
}

// cursor tracks rune offset, line and column the way the GraphQL lexer
// counts them: \r\n is one line break, a lone \r is one too.
type cursor struct {
	pos   int
	runes int
	line  int
	col   int
}

func (c *cursor) advance(text string, to int) {
	for c.pos < to {
		r, size := utf8.DecodeRuneInString(text[c.pos:])
		c.pos += size
		c.runes++
		switch r {
		case '\n':
			c.line++
			c.col = 1
		case '\r':
			if c.pos < len(text) && text[c.pos] == '\n' {
				c.pos++
				c.runes++
			}
			c.line++
			c.col = 1
		default:
			c.col++
		}
	}
}
