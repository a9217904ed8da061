package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/registry"
)

// File is one generated artifact. Path is relative to the output root.
type File struct {
	Path    string
	Content string
}

// Generator is the shared backend contract. Implementations request
// every type spelling through the registry and must be safe to run
// concurrently with other generators against the same (read-only)
// module and registry.
type Generator interface {
	Name() string
	Generate(mod *ir.Module, reg *registry.Registry, moduleName string) ([]File, error)
}

// IOError reports an output artifact that could not be written. The
// core reports it and never retries.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// BackendError wraps a generator failure with the backend name so the
// run can report which backend failed and why.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Defaults returns the four standard backends in stable order.
func Defaults() []Generator {
	return []Generator{
		&CtypesGenerator{},
		&CStubGenerator{},
		&PythonGenerator{},
		&DuneGenerator{},
	}
}

// Result summarizes one completed run.
type Result struct {
	ModuleName string
	Files      []File // in backend order, paths relative to the output root
	Functions  int
	Types      int
}

// Run executes the given backends against one parsed module. Backends
// run concurrently: the registry is read-only by contract at this
// point and every backend writes disjoint paths. The run fails fast on
// the first backend error; no files are written unless every backend
// succeeds. With dryRun set, files are returned but not written.
func Run(ctx context.Context, mod *ir.Module, reg *registry.Registry, moduleName, outDir string, gens []Generator, dryRun bool) (*Result, error) {
	perBackend := make([][]File, len(gens))

	g, ctx := errgroup.WithContext(ctx)
	for i, gen := range gens {
		i, gen := i, gen
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := gen.Generate(mod, reg, moduleName)
			if err != nil {
				return &BackendError{Backend: gen.Name(), Err: err}
			}
			perBackend[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		ModuleName: moduleName,
		Functions:  len(mod.Functions),
		Types:      len(mod.TypeDefs),
	}
	for _, files := range perBackend {
		result.Files = append(result.Files, files...)
	}

	if dryRun {
		return result, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &IOError{Path: outDir, Err: err}
	}
	for _, f := range result.Files {
		if err := writeAtomic(filepath.Join(outDir, f.Path), []byte(f.Content)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// writeAtomic writes content to path through a uniquely named temp
// file in the same directory, fsyncs, and renames it into place. A
// failed write never leaves a truncated or stale artifact behind.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Path: path, Err: err}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &IOError{Path: path, Err: err}
	}
	return nil
}
