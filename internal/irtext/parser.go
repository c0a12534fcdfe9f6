// Package irtext reads the textual form written by ir.Context.Dump back into
// a context, replaying every line through the IR builders.
package irtext

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"pcb/internal/ir"
	"pcb/internal/trace"
	"pcb/internal/types"
)

type line struct {
	no   int
	text string
	toks []token
}

type funcDecl struct {
	fn   *ir.Function
	body []line
}

type pendingValue struct {
	ln    line
	num   ir.ValueID
	block *ir.Block
	typ   types.TypeID
	rhs   []token
}

type pendingTerm struct {
	ln     line
	block  *ir.Block
	branch bool
	ref    int32
	refCol int
}

type parser struct {
	file string
	c    *ir.Context
}

// ParseFile reads and parses the file at path.
func ParseFile(ctx context.Context, path string, optimize bool) (*ir.Context, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, path, src, optimize)
}

// Parse builds a new context from src. file names the input in errors.
// Value numbers and block labels in src must be the ones the builders
// assign; the result dumps back to the same text modulo comments and blank
// lines.
func Parse(ctx context.Context, file string, src []byte, optimize bool) (*ir.Context, error) {
	_, span := trace.Start(ctx, trace.ScopePass, "parse")
	span.WithExtra("file", file)

	p := &parser{file: file, c: ir.NewContext(optimize)}
	decls, err := p.declare(splitLines(string(src)))
	if err == nil {
		for _, d := range decls {
			trace.Point(trace.FromContext(ctx), trace.ScopeFunction, "func:"+d.fn.Name(), "", span.ID())
			if err = p.body(d); err != nil {
				break
			}
		}
	}
	if err != nil {
		span.End("failed")
		p.c.Destroy()
		return nil, err
	}
	span.WithExtra("funcs", strconv.Itoa(p.c.NumFunctions())).End("")
	return p.c, nil
}

func splitLines(src string) []line {
	raw := strings.Split(src, "\n")
	out := make([]line, 0, len(raw))
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		out = append(out, line{no: i + 1, text: text, toks: lexLine(text)})
	}
	return out
}

func (p *parser) errorf(ln line, col int, format string, args ...any) error {
	return &ParseError{File: p.file, Line: ln.no, Col: col, Msg: fmt.Sprintf(format, args...), src: ln.text}
}

func (p *parser) wrap(ln line, col int, msg string, err error) error {
	return &ParseError{File: p.file, Line: ln.no, Col: col, Msg: msg, Err: err, src: ln.text}
}

// declare creates every function from its header so calls may refer to
// functions defined later in the file.
func (p *parser) declare(lines []line) ([]funcDecl, error) {
	var decls []funcDecl
	cur := -1
	for _, ln := range lines {
		first := ln.toks[0]
		switch {
		case first.kind == tokEOL:
			continue
		case cur < 0 && first.kind == tokWord && first.text == "define":
			fn, err := p.header(ln)
			if err != nil {
				return nil, err
			}
			decls = append(decls, funcDecl{fn: fn})
			cur = len(decls) - 1
		case cur < 0:
			return nil, p.errorf(ln, first.col, "expected 'define', found %q", first.text)
		case first.kind == tokRBrace:
			if ln.toks[1].kind != tokEOL {
				return nil, p.errorf(ln, ln.toks[1].col, "unexpected %s after '}'", ln.toks[1].kind)
			}
			cur = -1
		default:
			decls[cur].body = append(decls[cur].body, ln)
		}
	}
	if cur >= 0 {
		return nil, p.errorf(lines[len(lines)-1], 1, "function %s is missing its closing '}'", decls[cur].fn.Name())
	}
	return decls, nil
}

// header parses "define name(t, ...) -> t {".
func (p *parser) header(ln line) (*ir.Function, error) {
	s := &stream{p: p, ln: ln, toks: ln.toks[1:]}
	nameTok, err := s.expect(tokWord, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var inputs []types.TypeID
	if !s.accept(tokRParen) {
		for {
			t, err := s.typ()
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, t)
			if s.accept(tokRParen) {
				break
			}
			if _, err := s.expect(tokComma, "',' or ')'"); err != nil {
				return nil, err
			}
		}
	}
	if err := s.keyword("->"); err != nil {
		return nil, err
	}
	out, err := s.typ()
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	if err := s.end(); err != nil {
		return nil, err
	}
	fn, err := p.c.AddFunction(norm.NFC.String(nameTok.text), types.NewFuncType(out, inputs...))
	if err != nil {
		return nil, p.wrap(ln, nameTok.col, "cannot declare function", err)
	}
	return fn, nil
}

// body collects a function's lines, then replays values in numbering order
// and finally sets the terminators.
func (p *parser) body(d funcDecl) error {
	var (
		values []pendingValue
		terms  []pendingTerm
		cur    *ir.Block
		closed = map[ir.BlockID]bool{}
	)
	for _, ln := range d.body {
		s := &stream{p: p, ln: ln, toks: ln.toks}
		first := ln.toks[0]
		switch {
		case first.kind == tokWord && strings.HasPrefix(first.text, "bb") && ln.toks[1].kind == tokColon:
			n, err := s.label()
			if err != nil {
				return err
			}
			if _, err := s.expect(tokColon, "':'"); err != nil {
				return err
			}
			if err := s.end(); err != nil {
				return err
			}
			if int(n) != d.fn.NumBlocks() {
				return p.errorf(ln, first.col, "block bb%d out of order, expected bb%d", n, d.fn.NumBlocks())
			}
			b, err := d.fn.AddBlock()
			if err != nil {
				return p.wrap(ln, first.col, "cannot add block", err)
			}
			cur = b
		case cur == nil:
			return p.errorf(ln, first.col, "instruction outside of a block")
		case closed[cur.ID()]:
			return p.errorf(ln, first.col, "instruction after the terminator of %s", cur)
		case first.kind == tokPercent:
			v, err := s.valueLine()
			if err != nil {
				return err
			}
			v.block = cur
			values = append(values, v)
		case first.kind == tokWord && (first.text == "branch" || first.text == "return"):
			t, err := s.termLine()
			if err != nil {
				return err
			}
			t.block = cur
			terms = append(terms, t)
			closed[cur.ID()] = true
		default:
			return p.errorf(ln, first.col, "unexpected %q", first.text)
		}
	}

	slices.SortStableFunc(values, func(a, b pendingValue) int { return int(a.num) - int(b.num) })
	for _, v := range values {
		if err := p.replay(d.fn, v); err != nil {
			return err
		}
	}
	for _, t := range terms {
		if err := p.terminate(d.fn, t); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) replay(fn *ir.Function, pv pendingValue) error {
	numCol := pv.ln.toks[0].col
	if want := ir.ValueID(fn.NumValues()); pv.num != want {
		return p.errorf(pv.ln, numCol, "value %%%d out of sequence, expected %%%d", pv.num, want)
	}
	s := &stream{p: p, ln: pv.ln, toks: pv.rhs}
	head := pv.rhs[0]
	var (
		v   *ir.Value
		err error
	)
	switch {
	case head.kind == tokWord && head.text == "call":
		v, err = p.replayCall(fn, pv, s)
	case head.kind == tokWord && isDigits(head.text):
		lit, perr := strconv.ParseUint(head.text, 10, 64)
		if perr != nil {
			return p.errorf(pv.ln, head.col, "bad integer literal %q", head.text)
		}
		s.next()
		if err := s.end(); err != nil {
			return err
		}
		v, err = pv.block.BuildConstInt(pv.typ, lit)
	case head.kind == tokWord:
		kind, ok := ir.OperatorByMnemonic(head.text)
		if !ok {
			return p.errorf(pv.ln, head.col, "unknown opcode %q", head.text)
		}
		s.next()
		lhs, lerr := s.operand(fn, pv.num)
		if lerr != nil {
			return lerr
		}
		rhs, rerr := s.operand(fn, pv.num)
		if rerr != nil {
			return rerr
		}
		if err := s.end(); err != nil {
			return err
		}
		v, err = pv.block.BuildBinary(kind, lhs, rhs)
	default:
		return p.errorf(pv.ln, head.col, "expected an instruction, found %s", head.kind)
	}
	if err != nil {
		return p.wrap(pv.ln, head.col, "invalid instruction", err)
	}
	if v.Type() != pv.typ {
		return p.errorf(pv.ln, numCol, "%s declared as %s but has type %s",
			v, p.c.TypeName(pv.typ), p.c.TypeName(v.Type()))
	}
	return nil
}

func (p *parser) replayCall(fn *ir.Function, pv pendingValue, s *stream) (*ir.Value, error) {
	s.next()
	nameTok, err := s.expect(tokWord, "callee name")
	if err != nil {
		return nil, err
	}
	callee := p.c.FunctionByName(nameTok.text)
	if callee == nil {
		return nil, p.errorf(pv.ln, nameTok.col, "call to undefined function %q", nameTok.text)
	}
	if _, err := s.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []*ir.Value
	if !s.accept(tokRParen) {
		for {
			arg, err := s.operand(fn, pv.num)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if s.accept(tokRParen) {
				break
			}
			if _, err := s.expect(tokComma, "',' or ')'"); err != nil {
				return nil, err
			}
		}
	}
	if err := s.end(); err != nil {
		return nil, err
	}
	return pv.block.BuildCall(callee, args...)
}

func (p *parser) terminate(fn *ir.Function, t pendingTerm) error {
	if t.branch {
		target := fn.Block(ir.BlockID(t.ref))
		if target == nil {
			return p.errorf(t.ln, t.refCol, "branch to undefined block bb%d", t.ref)
		}
		if err := t.block.BuildBranch(target); err != nil {
			return p.wrap(t.ln, t.ln.toks[0].col, "invalid branch", err)
		}
		return nil
	}
	v := fn.Value(ir.ValueID(t.ref))
	if v == nil {
		return p.errorf(t.ln, t.refCol, "return of undefined value %%%d", t.ref)
	}
	if err := t.block.BuildReturn(v); err != nil {
		return p.wrap(t.ln, t.ln.toks[0].col, "invalid return", err)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
