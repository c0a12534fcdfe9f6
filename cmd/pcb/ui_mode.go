package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the --ui setting.
type uiMode uint8

const (
	uiAuto uiMode = iota
	uiOn
	uiOff
)

func parseUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiAuto, nil
	case "on":
		return uiOn, nil
	case "off":
		return uiOff, nil
	default:
		return uiAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// progressView decides whether build shows the live progress view. Quiet
// output and verbose module dumps both need the plain path; in auto mode
// the view also needs stdout to be a terminal.
type progressView struct {
	mode    uiMode
	quiet   bool
	verbose bool
	tty     func() bool
}

func (v progressView) enabled() bool {
	if v.quiet || v.verbose || v.mode == uiOff {
		return false
	}
	if v.mode == uiOn {
		return true
	}
	if v.tty == nil {
		return isTerminal(os.Stdout)
	}
	return v.tty()
}
