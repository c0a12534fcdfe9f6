package irtext

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ParseError points at the offending line and column of the input.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
	Err  error // builder error, when the line was rejected by the IR
	src  string
}

func (e *ParseError) Error() string {
	name := e.File
	if name == "" {
		name = "<input>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s:%d:%d: %s: %v", name, e.Line, e.Col, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Line, e.Col, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Snippet renders the source line with a caret under the error column.
func (e *ParseError) Snippet() string {
	if e.src == "" {
		return ""
	}
	prefix := e.src
	if e.Col-1 <= len(prefix) && e.Col > 0 {
		prefix = prefix[:e.Col-1]
	}
	pad := runewidth.StringWidth(strings.ReplaceAll(prefix, "\t", "    "))
	return fmt.Sprintf("%s\n%s^", strings.ReplaceAll(e.src, "\t", "    "), strings.Repeat(" ", pad))
}
