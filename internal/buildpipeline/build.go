// Package buildpipeline runs text IR files through parse, validate and
// lower, in parallel, reporting progress per file.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pcb/internal/backend/llvm"
	"pcb/internal/cache"
	"pcb/internal/ir"
	"pcb/internal/trace"
)

// Request configures a build.
type Request struct {
	Files    []string
	OutDir   string
	Emit     llvm.OutputKind
	Optimize bool
	// Verbose dumps each LLVM module to Stderr before emitting.
	Verbose bool
	// Jobs bounds concurrent files; GOMAXPROCS when <= 0.
	Jobs int
	// Cache is consulted during parse when non-nil.
	Cache         *cache.DiskCache
	Progress      ProgressSink
	Clang         string
	PrintCommands bool
	Stdout        io.Writer
	Stderr        io.Writer
}

// FileResult is the outcome for one input file.
type FileResult struct {
	File     string
	Output   string
	CacheHit bool
	Err      error
}

// Result captures per-file outcomes in input order and stage timings.
type Result struct {
	Files   []FileResult
	Timings *Timings
}

// OutputPath names the artifact for file under outDir.
func OutputPath(outDir, file string, kind llvm.OutputKind) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var ext string
	switch kind {
	case llvm.OutputLLVM:
		ext = ".ll"
	case llvm.OutputAssembly:
		ext = ".s"
	default:
		ext = ".o"
	}
	return filepath.Join(outDir, base+ext)
}

// Build processes every file. A failing file does not stop the others; the
// returned error joins every per-file failure. Cancelling ctx stops files
// that have not started.
func Build(ctx context.Context, req *Request) (Result, error) {
	result := Result{Timings: &Timings{}}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if len(req.Files) == 0 {
		return result, fmt.Errorf("no input files")
	}
	if err := checkOutputNames(req); err != nil {
		return result, err
	}
	if req.OutDir != "" {
		if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
			return result, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	ctx, span := trace.Start(ctx, trace.ScopeDriver, "build")
	defer span.End("")

	emitQueued(req.Progress, req.Files)
	result.Files = make([]FileResult, len(req.Files))

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Files)))
	for i, file := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				result.Files[i] = FileResult{File: file, Err: err}
				emit(req.Progress, file, StageParse, StatusError, err, 0)
				return err
			}
			result.Files[i] = buildFile(gctx, req, file, result.Timings)
			return nil
		})
	}
	waitErr := g.Wait()

	var errs []error
	for _, fr := range result.Files {
		if fr.Err != nil && !errors.Is(fr.Err, context.Canceled) {
			errs = append(errs, fmt.Errorf("%s: %w", fr.File, fr.Err))
		}
	}
	if waitErr != nil {
		errs = append(errs, waitErr)
	}
	return result, errors.Join(errs...)
}

func checkOutputNames(req *Request) error {
	seen := make(map[string]string, len(req.Files))
	for _, file := range req.Files {
		out := OutputPath(req.OutDir, file, req.Emit)
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%s and %s both build %s", prev, file, out)
		}
		seen[out] = file
	}
	return nil
}

func buildFile(ctx context.Context, req *Request, file string, timings *Timings) FileResult {
	res := FileResult{File: file, Output: OutputPath(req.OutDir, file, req.Emit)}
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "file")
	span.WithExtra("file", file)
	defer span.End("")

	// Parse stage.
	start := time.Now()
	emit(req.Progress, file, StageParse, StatusWorking, nil, 0)
	c, hit, err := Load(ctx, file, req.Optimize, req.Cache)
	elapsed := time.Since(start)
	timings.Add(StageParse, elapsed)
	if err != nil {
		res.Err = err
		emit(req.Progress, file, StageParse, StatusError, err, elapsed)
		return res
	}
	res.CacheHit = hit
	status := StatusDone
	if hit {
		status = StatusCached
	}
	emit(req.Progress, file, StageParse, status, nil, elapsed)

	// Validate stage.
	start = time.Now()
	emit(req.Progress, file, StageValidate, StatusWorking, nil, 0)
	_, vspan := trace.Start(ctx, trace.ScopePass, "validate")
	err = ir.Validate(c)
	vspan.End("")
	elapsed = time.Since(start)
	timings.Add(StageValidate, elapsed)
	if err != nil {
		c.Destroy()
		res.Err = err
		emit(req.Progress, file, StageValidate, StatusError, err, elapsed)
		return res
	}
	emit(req.Progress, file, StageValidate, StatusDone, nil, elapsed)

	// Lower stage.
	start = time.Now()
	emit(req.Progress, file, StageLower, StatusWorking, nil, 0)
	kind := req.Emit
	backend := &llvm.Backend{
		Clang:         req.Clang,
		Kind:          &kind,
		PrintCommands: req.PrintCommands,
		Stdout:        req.Stdout,
		Verbose:       req.Stderr,
	}
	err = c.Lower(ctx, backend, res.Output, req.Verbose)
	c.Destroy()
	elapsed = time.Since(start)
	timings.Add(StageLower, elapsed)
	if err != nil {
		res.Err = err
		emit(req.Progress, file, StageLower, StatusError, err, elapsed)
		return res
	}
	emit(req.Progress, file, StageLower, StatusDone, nil, elapsed)
	return res
}
