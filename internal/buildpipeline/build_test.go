package buildpipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pcb/internal/backend/llvm"
	"pcb/internal/buildpipeline"
	"pcb/internal/cache"
	"pcb/internal/ir"
	"pcb/internal/testkit"
)

const openSrc = `define open() -> i32 {
bb0:
  %0: i32 = 1
}
`

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	events []buildpipeline.Event
}

func (r *recorder) OnEvent(ev buildpipeline.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last(file string) buildpipeline.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ev buildpipeline.Event
	for _, e := range r.events {
		if e.File == file {
			ev = e
		}
	}
	return ev
}

func TestBuildEmitsLLVM(t *testing.T) {
	dir := t.TempDir()
	foo := writeFile(t, dir, "foo.pcb", testkit.FooMainDump)
	arith := writeFile(t, dir, "arith.pcb", testkit.ArithDump)
	out := filepath.Join(dir, "out")

	rec := &recorder{}
	res, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{
		Files:    []string{foo, arith},
		OutDir:   out,
		Emit:     llvm.OutputLLVM,
		Jobs:     2,
		Progress: rec,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Files) != 2 || res.Files[0].File != foo || res.Files[1].File != arith {
		t.Fatalf("results out of input order: %+v", res.Files)
	}
	data, err := os.ReadFile(filepath.Join(out, "foo.ll"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "call i32 @foo()") {
		t.Fatalf("unexpected module:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(out, "arith.ll")); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{foo, arith} {
		ev := rec.last(f)
		if ev.Stage != buildpipeline.StageLower || ev.Status != buildpipeline.StatusDone {
			t.Fatalf("%s: last event %+v", f, ev)
		}
	}
	for _, stage := range buildpipeline.Stages {
		if !res.Timings.Has(stage) {
			t.Fatalf("no timing for %s", stage)
		}
	}
}

func TestBuildContinuesPastFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.pcb", testkit.FooMainDump)
	bad := writeFile(t, dir, "open.pcb", openSrc)

	rec := &recorder{}
	res, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{
		Files:    []string{bad, good},
		OutDir:   dir,
		Emit:     llvm.OutputLLVM,
		Progress: rec,
	})
	if !errors.Is(err, ir.ErrUnterminatedBlock) {
		t.Fatalf("expected ErrUnterminatedBlock, got %v", err)
	}
	if !strings.Contains(err.Error(), "open.pcb") {
		t.Fatalf("error does not name the file: %v", err)
	}
	if res.Files[1].Err != nil {
		t.Fatalf("good file failed: %v", res.Files[1].Err)
	}
	if ev := rec.last(bad); ev.Stage != buildpipeline.StageValidate || ev.Status != buildpipeline.StatusError {
		t.Fatalf("bad file last event %+v", ev)
	}
	if _, err := os.Stat(filepath.Join(dir, "open.ll")); !os.IsNotExist(err) {
		t.Fatalf("artifact written for invalid file: %v", err)
	}
}

func TestBuildUsesCache(t *testing.T) {
	dir := t.TempDir()
	dc, err := cache.OpenDir(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	src := writeFile(t, dir, "arith.pcb", testkit.ArithDump)
	req := &buildpipeline.Request{
		Files:  []string{src},
		OutDir: filepath.Join(dir, "out"),
		Emit:   llvm.OutputLLVM,
		Cache:  dc,
	}
	first, err := buildpipeline.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first.Files[0].CacheHit {
		t.Fatal("first build cannot hit the cache")
	}
	want, _ := os.ReadFile(first.Files[0].Output)

	second, err := buildpipeline.Build(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Files[0].CacheHit {
		t.Fatal("second build missed the cache")
	}
	got, _ := os.ReadFile(second.Files[0].Output)
	if string(got) != string(want) {
		t.Fatalf("cached build differs:\n%s\nvs\n%s", got, want)
	}
}

func TestBuildRejectsClashingOutputs(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "foo.pcb", testkit.FooMainDump)
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	b := writeFile(t, sub, "foo.pcb", testkit.FooMainDump)
	_, err := buildpipeline.Build(context.Background(), &buildpipeline.Request{
		Files:  []string{a, b},
		OutDir: dir,
		Emit:   llvm.OutputLLVM,
	})
	if err == nil || !strings.Contains(err.Error(), "both build") {
		t.Fatalf("expected clash error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "foo.pcb", testkit.FooMainDump)
	c, hit, err := buildpipeline.Load(context.Background(), src, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hit || !c.Optimize() {
		t.Fatalf("hit=%v optimize=%v", hit, c.Optimize())
	}
	if c.String() != testkit.FooMainDump {
		t.Fatalf("unexpected dump:\n%s", c.String())
	}
	if _, _, err := buildpipeline.Load(context.Background(), filepath.Join(dir, "missing.pcb"), false, nil); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		file string
		kind llvm.OutputKind
		want string
	}{
		{"src/foo.pcb", llvm.OutputObject, filepath.Join("out", "foo.o")},
		{"foo", llvm.OutputAssembly, filepath.Join("out", "foo.s")},
		{"a/b.c.pcb", llvm.OutputLLVM, filepath.Join("out", "b.c.ll")},
	}
	for _, tt := range tests {
		if got := buildpipeline.OutputPath("out", tt.file, tt.kind); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
