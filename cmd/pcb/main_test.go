package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"pcb/internal/backend/llvm"
	"pcb/internal/buildpipeline"
	"pcb/internal/ir"
)

const splitExampleDump = `define foo() -> i32 {
bb0:
  %0: i32 = 0
  return %0
}

define main() -> i32 {
bb0:
  %0: i32 = call foo()
  branch bb1
bb1:
  %1: i32 = call foo()
  return %0
}
`

func TestBuildExample(t *testing.T) {
	c := ir.NewContext(false)
	defer c.Destroy()
	if err := buildExample(c, true); err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != splitExampleDump {
		t.Fatalf("unexpected dump:\n%s", got)
	}
	if err := ir.Validate(c); err != nil {
		t.Fatalf("example is incomplete: %v", err)
	}
}

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, manifestName), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"ok", "[package]\nname = \"demo\"\n[build]\nfiles = [\"*.pcb\"]\nemit = \"llvm\"\n", ""},
		{"no name", "[package]\n[build]\nfiles = [\"a.pcb\"]\n", "[package].name"},
		{"no files", "[package]\nname = \"demo\"\n", "[build].files"},
		{"bad emit", "[package]\nname = \"demo\"\n[build]\nfiles = [\"a.pcb\"]\nemit = \"wasm\"\n", "[build].emit"},
		{"unknown key", "[package]\nname = \"demo\"\nauthor = \"x\"\n[build]\nfiles = [\"a.pcb\"]\n", "unknown key"},
		{"bad toml", "[package\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.body)
			_, err := loadManifestFile(filepath.Join(dir, manifestName))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"demo\"\n[build]\nfiles = [\"a.pcb\"]\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	path, ok, err := findManifest(nested)
	if err != nil || !ok {
		t.Fatalf("found=%v err=%v", ok, err)
	}
	want, _ := filepath.Abs(filepath.Join(root, manifestName))
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func newBuildCmd(t *testing.T, set map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "build"}
	addBuildFlags(cmd)
	for name, value := range set {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatal(err)
		}
	}
	return cmd
}

func TestBuildRequestFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `[package]
name = "demo"

[build]
files = ["src/*.pcb"]
out_dir = "out"
optimize = true
emit = "asm"
jobs = 3
`)
	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o750); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.pcb", "b.pcb"} {
		if err := os.WriteFile(filepath.Join(src, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)

	cmd := newBuildCmd(t, map[string]string{"jobs": "1"})
	flags, err := readBuildFlags(cmd)
	if err != nil {
		t.Fatal(err)
	}
	req, base, err := buildRequest(cmd, flags, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Files) != 2 || filepath.Base(req.Files[0]) != "a.pcb" {
		t.Fatalf("files = %v", req.Files)
	}
	if !req.Optimize || req.Emit != llvm.OutputAssembly {
		t.Fatalf("manifest values ignored: %+v", req)
	}
	if req.Jobs != 1 {
		t.Fatalf("explicit --jobs must win, got %d", req.Jobs)
	}
	if formatPathForOutput(base, req.OutDir) != "out" {
		t.Fatalf("out dir = %q (base %q)", req.OutDir, base)
	}
}

func TestBuildRequestFromArgs(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := newBuildCmd(t, map[string]string{"emit-llvm": "true"})
	flags, err := readBuildFlags(cmd)
	if err != nil {
		t.Fatal(err)
	}
	req, _, err := buildRequest(cmd, flags, []string{"x.pcb"})
	if err != nil {
		t.Fatal(err)
	}
	if req.OutDir != "." || req.Emit != llvm.OutputLLVM || req.Optimize {
		t.Fatalf("unexpected request %+v", req)
	}

	if _, _, err := buildRequest(cmd, flags, nil); err == nil || !strings.Contains(err.Error(), "no pcb.toml") {
		t.Fatalf("expected missing manifest error, got %v", err)
	}
}

func TestCheckToolchain(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-clang")
	llvmOnly := &buildpipeline.Request{Emit: llvm.OutputLLVM, Clang: missing}
	if err := checkToolchain(llvmOnly); err != nil {
		t.Fatalf("textual output must not need clang: %v", err)
	}
	for _, kind := range []llvm.OutputKind{llvm.OutputObject, llvm.OutputAssembly} {
		req := &buildpipeline.Request{Emit: kind, Clang: missing}
		if err := checkToolchain(req); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("%s: expected missing clang error, got %v", kind, err)
		}
	}
}

func TestParseUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiAuto, "ON": uiOn, " off ": uiOff} {
		got, err := parseUIMode(in)
		if err != nil || got != want {
			t.Errorf("parseUIMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseUIMode("sometimes"); err == nil {
		t.Error("expected error")
	}
}

func TestProgressViewEnabled(t *testing.T) {
	tty := func() bool { return true }
	pipe := func() bool { return false }
	tests := []struct {
		name string
		view progressView
		want bool
	}{
		{"auto on terminal", progressView{mode: uiAuto, tty: tty}, true},
		{"auto on pipe", progressView{mode: uiAuto, tty: pipe}, false},
		{"forced on", progressView{mode: uiOn, tty: pipe}, true},
		{"forced off", progressView{mode: uiOff, tty: tty}, false},
		{"quiet wins", progressView{mode: uiOn, quiet: true, tty: tty}, false},
		{"verbose wins", progressView{mode: uiOn, verbose: true, tty: tty}, false},
	}
	for _, tt := range tests {
		if got := tt.view.enabled(); got != tt.want {
			t.Errorf("%s: enabled() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
