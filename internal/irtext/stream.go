package irtext

import (
	"strconv"
	"strings"

	"fortio.org/safecast"

	"pcb/internal/ir"
	"pcb/internal/types"
)

// stream walks the tokens of one line.
type stream struct {
	p    *parser
	ln   line
	toks []token
	pos  int
}

func (s *stream) peek() token {
	if s.pos >= len(s.toks) {
		return token{kind: tokEOL, col: len(s.ln.text) + 1}
	}
	return s.toks[s.pos]
}

func (s *stream) next() token {
	t := s.peek()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return t
}

func (s *stream) accept(k tokKind) bool {
	if s.peek().kind == k {
		s.pos++
		return true
	}
	return false
}

func (s *stream) expect(k tokKind, what string) (token, error) {
	t := s.peek()
	if t.kind != k {
		return t, s.p.errorf(s.ln, t.col, "expected %s, found %s", what, describe(t))
	}
	s.pos++
	return t, nil
}

func (s *stream) keyword(word string) error {
	t := s.peek()
	if t.kind != tokWord || t.text != word {
		return s.p.errorf(s.ln, t.col, "expected %q, found %s", word, describe(t))
	}
	s.pos++
	return nil
}

func (s *stream) end() error {
	_, err := s.expect(tokEOL, "end of line")
	return err
}

// number parses a decimal word that must fit an IR index.
func (s *stream) number(what string) (int32, token, error) {
	t, err := s.expect(tokWord, what)
	if err != nil {
		return 0, t, err
	}
	if !isDigits(t.text) {
		return 0, t, s.p.errorf(s.ln, t.col, "expected %s, found %q", what, t.text)
	}
	n, err := parseIndex(t.text)
	if err != nil {
		return 0, t, s.p.wrap(s.ln, t.col, what+" out of range", err)
	}
	return n, t, nil
}

// parseIndex converts an all-digit string to an int32 index.
func parseIndex(digits string) (int32, error) {
	u, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[int32](u)
}

// typ parses "i<width>" or "bool" and interns it.
func (s *stream) typ() (types.TypeID, error) {
	t, err := s.expect(tokWord, "type")
	if err != nil {
		return types.NoTypeID, err
	}
	var desc types.Type
	switch {
	case t.text == "bool":
		desc = types.MakeBool()
	case strings.HasPrefix(t.text, "i") && isDigits(t.text[1:]):
		w, perr := strconv.ParseUint(t.text[1:], 10, 32)
		if perr != nil {
			return types.NoTypeID, s.p.errorf(s.ln, t.col, "bad integer width in %q", t.text)
		}
		desc = types.MakeInt(uint32(w))
	default:
		return types.NoTypeID, s.p.errorf(s.ln, t.col, "unknown type %q", t.text)
	}
	id, err := s.p.c.Intern(desc)
	if err != nil {
		return types.NoTypeID, s.p.wrap(s.ln, t.col, "invalid type", err)
	}
	return id, nil
}

// label parses "bbN" and returns N.
func (s *stream) label() (int32, error) {
	t, err := s.expect(tokWord, "block label")
	if err != nil {
		return 0, err
	}
	digits, ok := strings.CutPrefix(t.text, "bb")
	if !ok || !isDigits(digits) {
		return 0, s.p.errorf(s.ln, t.col, "expected block label, found %q", t.text)
	}
	n, err := parseIndex(digits)
	if err != nil {
		return 0, s.p.wrap(s.ln, t.col, "block number out of range", err)
	}
	return n, nil
}

// ref parses "%N".
func (s *stream) ref() (int32, token, error) {
	pct, err := s.expect(tokPercent, "'%'")
	if err != nil {
		return 0, pct, err
	}
	n, _, err := s.number("value number")
	return n, pct, err
}

// operand resolves "%N" to an already built value of fn. user is the number
// of the value being built.
func (s *stream) operand(fn *ir.Function, user ir.ValueID) (*ir.Value, error) {
	n, t, err := s.ref()
	if err != nil {
		return nil, err
	}
	if ir.ValueID(n) >= user {
		return nil, s.p.errorf(s.ln, t.col, "%%%d used before it is defined", n)
	}
	v := fn.Value(ir.ValueID(n))
	if v == nil {
		return nil, s.p.errorf(s.ln, t.col, "use of undefined value %%%d", n)
	}
	return v, nil
}

// valueLine parses "%N: type = rhs"; the rhs is kept for replay.
func (s *stream) valueLine() (pendingValue, error) {
	n, _, err := s.ref()
	if err != nil {
		return pendingValue{}, err
	}
	if _, err := s.expect(tokColon, "':'"); err != nil {
		return pendingValue{}, err
	}
	typ, err := s.typ()
	if err != nil {
		return pendingValue{}, err
	}
	if _, err := s.expect(tokEquals, "'='"); err != nil {
		return pendingValue{}, err
	}
	if s.peek().kind == tokEOL {
		return pendingValue{}, s.p.errorf(s.ln, s.peek().col, "missing instruction")
	}
	return pendingValue{ln: s.ln, num: ir.ValueID(n), typ: typ, rhs: s.toks[s.pos:]}, nil
}

// termLine parses "branch bbN" or "return %N".
func (s *stream) termLine() (pendingTerm, error) {
	head := s.next()
	t := pendingTerm{ln: s.ln, branch: head.text == "branch"}
	if t.branch {
		t.refCol = s.peek().col
		n, err := s.label()
		if err != nil {
			return t, err
		}
		t.ref = n
	} else {
		n, pct, err := s.ref()
		if err != nil {
			return t, err
		}
		t.ref, t.refCol = n, pct.col
	}
	return t, s.end()
}

func describe(t token) string {
	if t.kind == tokWord {
		return strconv.Quote(t.text)
	}
	return t.kind.String()
}
