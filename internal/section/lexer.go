package section

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokName
	tokNumber
	tokString
	tokPunct
	tokSpread
)

type token struct {
	kind       tokenKind
	start, end int
}

// lexer produces just enough GraphQL tokens to find definition boundaries.
// Unknown bytes become single-byte punctuators so scanning never fails.
type lexer struct {
	src string
	pos int
}

func (l *lexer) text(t token) string { return l.src[t.start:t.end] }

func (l *lexer) next() token {
	l.skipIgnored()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, start: len(l.src), end: len(l.src)}
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '"':
		l.skipString()
		return token{kind: tokString, start: start, end: l.pos}
	case c == '.' && l.hasPrefix("..."):
		l.pos += 3
		return token{kind: tokSpread, start: start, end: l.pos}
	case isNameStart(c):
		l.pos++
		for l.pos < len(l.src) && isNameContinue(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokName, start: start, end: l.pos}
	case c == '-' || isDigit(c):
		l.pos++
		for l.pos < len(l.src) && (isNameContinue(l.src[l.pos]) || l.src[l.pos] == '.' || l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		return token{kind: tokNumber, start: start, end: l.pos}
	default:
		l.pos++
		return token{kind: tokPunct, start: start, end: l.pos}
	}
}

func (l *lexer) hasPrefix(p string) bool {
	return len(l.src)-l.pos >= len(p) && l.src[l.pos:l.pos+len(p)] == p
}

func (l *lexer) skipIgnored() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case ' ', '\t', '\n', '\r', ',':
			l.pos++
		case '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case 0xEF:
			if l.hasPrefix("\xEF\xBB\xBF") {
				l.pos += 3
				continue
			}
			return
		default:
			return
		}
	}
}

// skipString consumes a string or block string starting at l.pos. An
// unterminated string runs to the end of its line (or of input for blocks).
func (l *lexer) skipString() {
	if l.hasPrefix(`"""`) {
		l.pos += 3
		for l.pos < len(l.src) {
			if l.hasPrefix(`\"""`) {
				l.pos += 4
				continue
			}
			if l.hasPrefix(`"""`) {
				l.pos += 3
				return
			}
			l.pos++
		}
		return
	}
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
		case '"':
			l.pos++
			return
		case '\n', '\r':
			return
		default:
			l.pos++
		}
	}
	if l.pos > len(l.src) {
		l.pos = len(l.src)
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameContinue(c byte) bool { return isNameStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
