package tsemitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/camgen/internal/gen"
	"github.com/mark3labs/camgen/internal/schema"
)

// File names inside a service directory.
const (
	TypesFile  = "namespaces.ts"
	ClassFile  = "index.ts"
	ReadmeFile = "README.md"
	DemoFile   = "request-demo.ts"
)

// Options controls where and how generated services are written.
type Options struct {
	OutDir  string // required; root directory holding one directory per service
	Demo    bool   // also write request-demo.ts at the root for the first service
	Force   bool   // replace existing service directories and the demo file
	DryRun  bool   // don't write, only plan
	Verbose bool
	Logger  *slog.Logger
}

// Service is one generated service to write.
type Service struct {
	Schema *schema.ServiceSchema
	Output gen.ServiceOutput
	// Dir is the directory under OutDir; derived from the service name when
	// empty.
	Dir string
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
	// Unchanged is set when the file already holds exactly this content.
	Unchanged bool
}

// Result lists the planned files and the resolved service directories.
type Result struct {
	Dirs    []string
	Planned []PlannedFile
}

// Emit renders every service into OutDir.
func Emit(ctx context.Context, services []Service, opts Options) (*Result, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("tsemitter: no services to emit")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("tsemitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "tsemitter")

	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve out dir: %w", err)
	}

	files := map[string][]byte{}
	owned := map[string]bool{}
	var dirs []string
	for _, svc := range services {
		if svc.Schema == nil {
			return nil, fmt.Errorf("tsemitter: nil service schema")
		}
		dir := svc.Dir
		if strings.TrimSpace(dir) == "" {
			dir = DirName(svc.Output.Service)
		}
		dir = filepath.ToSlash(filepath.Clean(dir))
		if dir == "." || strings.HasPrefix(dir, "../") || filepath.IsAbs(dir) {
			return nil, fmt.Errorf("tsemitter: service directory %q escapes the output directory", dir)
		}
		if owned[dir] {
			return nil, fmt.Errorf("tsemitter: two services map to directory %q", dir)
		}
		owned[dir] = true
		dirs = append(dirs, dir)

		files[dir+"/"+TypesFile] = []byte(svc.Output.TypesModuleSource())
		files[dir+"/"+ClassFile] = []byte(svc.Output.ClassModuleSource())
		files[dir+"/"+ReadmeFile] = []byte(gen.ReadmeSource(svc.Schema, svc.Output))
	}
	if opts.Demo {
		files[DemoFile] = []byte(gen.DemoSource(services[0].Output.ClassName, dirs[0]))
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		pf := PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644}
		if cur, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(rel))); err == nil && bytes.Equal(cur, files[rel]) {
			pf.Unchanged = true
		}
		planned = append(planned, pf)
	}
	res := &Result{Dirs: dirs, Planned: planned}

	if opts.DryRun {
		return res, nil
	}
	if err := preflight(abs, dirs, opts); err != nil {
		return nil, err
	}
	for _, pf := range planned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pf.Unchanged {
			logger.Debug("unchanged", slog.String("file", pf.RelPath))
			continue
		}
		if err := writeFile(abs, pf.RelPath, files[pf.RelPath]); err != nil {
			return nil, err
		}
		logger.Debug("wrote", slog.String("file", pf.RelPath), slog.Int("bytes", pf.Size))
	}
	for _, dir := range dirs {
		if err := removeStale(abs, dir, files, logger); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// preflight refuses to touch an existing non-empty service directory or demo
// file unless Force is set.
func preflight(abs string, dirs []string, opts Options) error {
	if opts.Force {
		return nil
	}
	for _, dir := range dirs {
		p := filepath.Join(abs, filepath.FromSlash(dir))
		entries, err := os.ReadDir(p)
		if err == nil && len(entries) > 0 {
			return fmt.Errorf("tsemitter: service directory %q is not empty (use --force to overwrite)", p)
		}
	}
	if opts.Demo {
		p := filepath.Join(abs, DemoFile)
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("tsemitter: %q already exists (use --force to overwrite)", p)
		}
	}
	return nil
}

func writeFile(abs, rel string, content []byte) error {
	p := filepath.Join(abs, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// atomic write via temp file + rename
	tmp := p + ".tmp-" + time.Now().Format("20060102150405")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", rel, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}

// removeStale deletes files left in a service directory by an earlier run
// that this run did not produce.
func removeStale(abs, dir string, files map[string][]byte, logger *slog.Logger) error {
	root := filepath.Join(abs, filepath.FromSlash(dir))
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := files[rel]; ok {
			return nil
		}
		logger.Debug("removing stale file", slog.String("file", rel))
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("remove stale %s: %w", rel, err)
		}
		return nil
	})
}

// DirName derives a service directory name: spaces and slashes become
// dashes and anything outside letters, digits, dash, underscore and dot is
// dropped. An empty result becomes "api".
func DirName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "api"
	}
	return out
}
