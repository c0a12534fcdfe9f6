package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"pcb/internal/backend/llvm"
)

const manifestName = "pcb.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
	// defined records which [build] keys the file sets.
	defined map[string]bool
}

type projectConfig struct {
	Package packageConfig `toml:"package"`
	Build   buildConfig   `toml:"build"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

type buildConfig struct {
	Files    []string `toml:"files"`
	OutDir   string   `toml:"out_dir"`
	Optimize bool     `toml:"optimize"`
	Emit     string   `toml:"emit"`
	Jobs     int      `toml:"jobs"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	path, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := loadManifestFile(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

func loadManifestFile(path string) (*projectManifest, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("build", "files") || len(cfg.Build.Files) == 0 {
		return nil, fmt.Errorf("%s: missing [build].files", path)
	}
	if cfg.Build.Emit != "" {
		if _, err := llvm.ParseOutputKind(cfg.Build.Emit); err != nil {
			return nil, fmt.Errorf("%s: [build].emit: %w", path, err)
		}
	}
	if cfg.Build.Jobs < 0 {
		return nil, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}

	m := &projectManifest{
		Path:    path,
		Root:    filepath.Dir(path),
		Config:  cfg,
		defined: make(map[string]bool),
	}
	for _, key := range []string{"out_dir", "optimize", "emit", "jobs"} {
		m.defined[key] = meta.IsDefined("build", key)
	}
	return m, nil
}

// files resolves [build].files against the manifest directory, expanding
// glob patterns.
func (m *projectManifest) files() ([]string, error) {
	var out []string
	for _, pattern := range m.Config.Build.Files {
		p := filepath.Join(m.Root, filepath.FromSlash(pattern))
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%s: bad pattern %q: %w", m.Path, pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%s: %q matches no files", m.Path, pattern)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (m *projectManifest) outDir() string {
	dir := m.Config.Build.OutDir
	if dir == "" {
		dir = "target"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(m.Root, filepath.FromSlash(dir))
}
