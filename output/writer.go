// Package output writes generated binding sources to disk, skipping files
// whose contents did not change and removing files a previous run produced
// that are no longer generated.
package output

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mono/maccore/clog"
	"github.com/mono/maccore/generator"
)

// Options configures a write.
type Options struct {
	// Dir is the output directory. Defaults to the working directory.
	Dir string
	// Jobs bounds concurrent file writes. Defaults to GOMAXPROCS.
	Jobs int
	// Manifest is the manifest file name inside Dir. Defaults to
	// ManifestName; "-" disables the manifest.
	Manifest string
	// SourceList, when set, receives the generated paths one per line.
	SourceList string
}

// Result reports what a write did. Paths are relative to the output
// directory and sorted.
type Result struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

type status int

const (
	statusWritten status = iota
	statusUnchanged
)

// Write stores files under opts.Dir. File contents are final before the
// first write starts, so files are written concurrently.
func Write(ctx context.Context, files []generator.File, opts Options) (*Result, error) {
	log := clog.Ctx(ctx)
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	manifestPath := ""
	old := NewManifest()
	if opts.Manifest != "-" {
		name := opts.Manifest
		if name == "" {
			name = ManifestName
		}
		manifestPath = filepath.Join(dir, name)
		m, err := ReadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		old = m
	}

	sums := make([]string, len(files))
	states := make([]status, len(files))
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		if seen[f.Path] {
			return nil, errors.Errorf("file %s generated twice", f.Path)
		}
		if !filepath.IsLocal(filepath.FromSlash(f.Path)) {
			return nil, errors.Errorf("file %s is outside the output directory", f.Path)
		}
		seen[f.Path] = true
		sums[i] = Sum(f.Content)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			target := filepath.Join(dir, filepath.FromSlash(f.Path))
			if e := old.Lookup(f.Path); e != nil && e.Sum == sums[i] && unchanged(target, sums[i]) {
				states[i] = statusUnchanged
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Errorf("creating directory for %s: %w", f.Path, err)
			}
			if err := os.WriteFile(target, f.Content, 0o644); err != nil {
				return errors.Errorf("writing %s: %w", f.Path, err)
			}
			states[i] = statusWritten
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	next := NewManifest()
	for i, f := range files {
		next.Set(f.Path, sums[i])
		if states[i] == statusUnchanged {
			res.Unchanged = append(res.Unchanged, f.Path)
		} else {
			res.Written = append(res.Written, f.Path)
		}
	}
	for _, e := range old.Entries {
		if seen[e.Path] {
			continue
		}
		err := os.Remove(filepath.Join(dir, filepath.FromSlash(e.Path)))
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Errorf("removing stale %s: %w", e.Path, err)
		}
		log.Debug("removed stale file", "path", e.Path)
		res.Removed = append(res.Removed, e.Path)
	}

	if manifestPath != "" {
		if err := WriteManifest(manifestPath, next); err != nil {
			return nil, err
		}
	}
	if opts.SourceList != "" {
		if err := writeSourceList(opts.SourceList, dir, files); err != nil {
			return nil, err
		}
	}

	sort.Strings(res.Written)
	sort.Strings(res.Unchanged)
	sort.Strings(res.Removed)
	log.Info("wrote bindings",
		"dir", dir,
		"written", len(res.Written),
		"unchanged", len(res.Unchanged),
		"removed", len(res.Removed))
	return res, nil
}

// unchanged reports whether the file at path still has the recorded sum.
func unchanged(path, sum string) bool {
	data, err := os.ReadFile(path)
	return err == nil && Sum(data) == sum
}

func writeSourceList(path, dir string, files []generator.File) error {
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(filepath.Join(dir, filepath.FromSlash(f.Path)))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errors.Errorf("writing source list: %w", err)
	}
	return nil
}
