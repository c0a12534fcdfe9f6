package irtext

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokKind uint8

const (
	tokEOL tokKind = iota
	tokWord
	tokPercent
	tokLParen
	tokRParen
	tokComma
	tokColon
	tokEquals
	tokLBrace
	tokRBrace
)

func (k tokKind) String() string {
	switch k {
	case tokEOL:
		return "end of line"
	case tokWord:
		return "word"
	case tokPercent:
		return "'%'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokColon:
		return "':'"
	case tokEquals:
		return "'='"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	default:
		return "token"
	}
}

type token struct {
	kind tokKind
	text string
	col  int // 1-based byte column
}

// lexLine splits one line into tokens. A ';' starts a comment.
func lexLine(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if r == ';' {
			break
		}
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		if k, ok := punct(r); ok {
			toks = append(toks, token{kind: k, text: line[i : i+size], col: i + 1})
			i += size
			continue
		}
		start := i
		for i < len(line) {
			r, size = utf8.DecodeRuneInString(line[i:])
			if unicode.IsSpace(r) || r == ';' || strings.ContainsRune("%(),:={}", r) {
				break
			}
			i += size
		}
		toks = append(toks, token{kind: tokWord, text: line[start:i], col: start + 1})
	}
	return append(toks, token{kind: tokEOL, col: len(line) + 1})
}

func punct(r rune) (tokKind, bool) {
	switch r {
	case '%':
		return tokPercent, true
	case '(':
		return tokLParen, true
	case ')':
		return tokRParen, true
	case ',':
		return tokComma, true
	case ':':
		return tokColon, true
	case '=':
		return tokEquals, true
	case '{':
		return tokLBrace, true
	case '}':
		return tokRBrace, true
	}
	return 0, false
}
