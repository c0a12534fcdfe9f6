package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pcb/internal/backend/llvm"
	"pcb/internal/buildpipeline"
	"pcb/internal/cache"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [files...]",
	Short: "Lower pcb IR files to objects, assembly or LLVM IR",
	Long: `Build parses each file, checks that every function is complete and
lowers it through LLVM. Without file arguments the files listed in the
nearest pcb.toml are built.`,
	RunE: buildExecution,
}

func init() {
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("out-dir", "o", "", "output directory (default: . or [build].out_dir)")
	cmd.Flags().BoolP("optimize", "O", false, "optimize generated code")
	cmd.Flags().Bool("emit-llvm", false, "write textual LLVM IR (.ll)")
	cmd.Flags().Bool("emit-asm", false, "write assembly (.s)")
	cmd.Flags().Bool("verbose", false, "dump each LLVM module to stderr")
	cmd.Flags().IntP("jobs", "j", 0, "max parallel files (0 = GOMAXPROCS)")
	cmd.Flags().Bool("no-cache", false, "always reparse instead of using the snapshot cache")
	cmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	cmd.Flags().Bool("print-commands", false, "print external commands")
	cmd.Flags().String("clang", "clang", "clang executable")
}

type buildFlags struct {
	outDir        string
	optimize      bool
	emitLLVM      bool
	emitAsm       bool
	verbose       bool
	jobs          int
	noCache       bool
	ui            string
	printCommands bool
	clang         string
}

func readBuildFlags(cmd *cobra.Command) (buildFlags, error) {
	var (
		f    buildFlags
		errs []error
	)
	get := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	flags := cmd.Flags()
	var err error
	f.outDir, err = flags.GetString("out-dir")
	get(err)
	f.optimize, err = flags.GetBool("optimize")
	get(err)
	f.emitLLVM, err = flags.GetBool("emit-llvm")
	get(err)
	f.emitAsm, err = flags.GetBool("emit-asm")
	get(err)
	f.verbose, err = flags.GetBool("verbose")
	get(err)
	f.jobs, err = flags.GetInt("jobs")
	get(err)
	f.noCache, err = flags.GetBool("no-cache")
	get(err)
	f.ui, err = flags.GetString("ui")
	get(err)
	f.printCommands, err = flags.GetBool("print-commands")
	get(err)
	f.clang, err = flags.GetString("clang")
	get(err)
	return f, errors.Join(errs...)
}

func buildExecution(cmd *cobra.Command, args []string) error {
	flags, err := readBuildFlags(cmd)
	if err != nil {
		return err
	}
	if flags.emitLLVM && flags.emitAsm {
		return fmt.Errorf("--emit-llvm and --emit-asm are mutually exclusive")
	}
	if flags.jobs < 0 {
		return fmt.Errorf("--jobs must not be negative")
	}
	mode, err := parseUIMode(flags.ui)
	if err != nil {
		return err
	}
	view := progressView{mode: mode, quiet: quiet(cmd), verbose: flags.verbose}

	req, baseDir, err := buildRequest(cmd, flags, args)
	if err != nil {
		return err
	}

	if err := checkToolchain(req); err != nil {
		return err
	}

	if !flags.noCache {
		dc, err := cache.Open("pcb")
		if err != nil {
			if !quiet(cmd) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: snapshot cache disabled: %v\n", err)
			}
		} else {
			req.Cache = dc
		}
	}

	var res buildpipeline.Result
	if view.enabled() {
		res, err = runBuildWithUI(cmd.Context(), "pcb build", req)
	} else {
		res, err = buildpipeline.Build(cmd.Context(), req)
	}

	timings, _ := cmd.Root().PersistentFlags().GetBool("timings")
	if timings {
		printStageTimings(cmd.OutOrStdout(), res.Timings)
	}
	if !quiet(cmd) {
		for _, fr := range res.Files {
			if fr.Err != nil {
				continue
			}
			suffix := ""
			if fr.CacheHit {
				suffix = " (cached)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %s%s\n", formatPathForOutput(baseDir, fr.Output), suffix)
		}
	}
	return err
}

// checkToolchain fails early when the requested output needs clang and
// clang is missing. Textual LLVM output needs no external tool.
func checkToolchain(req *buildpipeline.Request) error {
	if req.Emit == llvm.OutputLLVM {
		return nil
	}
	return (&llvm.Backend{Clang: req.Clang}).EnsureClang()
}

// buildRequest merges the manifest with the command line; flags the user
// set explicitly win.
func buildRequest(cmd *cobra.Command, flags buildFlags, args []string) (*buildpipeline.Request, string, error) {
	req := &buildpipeline.Request{
		Files:         args,
		OutDir:        flags.outDir,
		Optimize:      flags.optimize,
		Verbose:       flags.verbose,
		Jobs:          flags.jobs,
		Clang:         flags.clang,
		PrintCommands: flags.printCommands,
		Stdout:        cmd.OutOrStdout(),
		Stderr:        cmd.ErrOrStderr(),
	}
	emit := ""
	switch {
	case flags.emitLLVM:
		emit = "llvm"
	case flags.emitAsm:
		emit = "asm"
	}

	baseDir, _ := os.Getwd()
	if len(args) == 0 {
		manifest, found, err := loadProjectManifest(".")
		if err != nil {
			return nil, "", err
		}
		if !found {
			return nil, "", errors.New("no input files and no pcb.toml found\nplease name the files to build, e.g.:\n  pcb build prog.pcb")
		}
		baseDir = manifest.Root
		if req.Files, err = manifest.files(); err != nil {
			return nil, "", err
		}
		changed := cmd.Flags().Changed
		cfg := manifest.Config.Build
		if !changed("out-dir") {
			req.OutDir = manifest.outDir()
		}
		if !changed("optimize") && manifest.defined["optimize"] {
			req.Optimize = cfg.Optimize
		}
		if !changed("jobs") && manifest.defined["jobs"] {
			req.Jobs = cfg.Jobs
		}
		if emit == "" && manifest.defined["emit"] {
			emit = cfg.Emit
		}
	}
	if req.OutDir == "" {
		req.OutDir = "."
	}
	kind, err := llvm.ParseOutputKind(emit)
	if err != nil {
		return nil, "", err
	}
	req.Emit = kind
	return req, baseDir, nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
