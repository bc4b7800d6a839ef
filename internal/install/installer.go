// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"sdrprov/internal/archive"
	"sdrprov/internal/catalog"
	"sdrprov/internal/fetch"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/issue"

	"github.com/charmbracelet/log"
)

type (
	// Fetcher resolves an artifact request to a verified local file.
	Fetcher interface {
		Fetch(ctx context.Context, req fetch.Request) (string, error)
	}

	// Registrar records directories on the search path.
	Registrar interface {
		AppendUnique(dir string) (bool, error)
	}

	// Installer installs ToolSpecs from prebuilt archives.
	Installer struct {
		runner   hostexec.Runner
		registry Registrar
		logger   *log.Logger
	}

	// Option configures an Installer during construction.
	Option func(*Installer)
)

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) {
		i.logger = l
	}
}

// New creates an Installer that resolves executables through runner and
// registers binary directories with registry.
func New(runner hostexec.Runner, registry Registrar, opts ...Option) *Installer {
	i := &Installer{
		runner:   runner,
		registry: registry,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Satisfied reports whether every required executable resolves on the
// search path and the target directory exists.
func (i *Installer) Satisfied(spec catalog.ToolSpec) bool {
	if info, err := os.Stat(spec.TargetDir); err != nil || !info.IsDir() {
		return false
	}
	return hostexec.HasAll(i.runner, spec.Executables...)
}

// Provision installs spec unless it is already satisfied. Satisfied tools
// are never fetched. Failures are reported in the returned Outcome.
func (i *Installer) Provision(ctx context.Context, f Fetcher, spec catalog.ToolSpec) Outcome {
	if i.Satisfied(spec) {
		i.logger.Info("tool already present", "tool", spec.Name)
		return Outcome{Tool: spec.Name, Status: StatusAlreadyPresent, BinDirs: i.resolvedDirs(spec)}
	}

	path, err := f.Fetch(ctx, fetch.Request{
		Name:        spec.Name,
		URLs:        spec.URLs,
		Checksums:   spec.Checksums,
		Remediation: spec.Remediation,
	})
	if err != nil {
		return failed(spec, err)
	}

	out, err := i.Install(ctx, spec, path)
	if err != nil {
		return failed(spec, err)
	}
	return out
}

// Install unpacks the archive at archivePath into spec.TargetDir, replacing
// any previous contents, and registers the directories that hold the
// required executables. The archive and the scratch directory are removed
// whatever the result.
func (i *Installer) Install(ctx context.Context, spec catalog.ToolSpec, archivePath string) (_ Outcome, err error) {
	// Downloaded archives are single-use.
	defer func() { _ = os.Remove(archivePath) }()

	if i.Satisfied(spec) {
		return Outcome{Tool: spec.Name, Status: StatusAlreadyPresent, BinDirs: i.resolvedDirs(spec)}, nil
	}

	if err := i.place(ctx, spec, archivePath); err != nil {
		return Outcome{}, issue.NewErrorContext().
			WithOperation("install "+spec.Name).
			WithResource(spec.TargetDir).
			WithSuggestions(spec.Remediation...).
			WithIssue(issue.ToolInstallFailedId).
			Wrap(err).
			BuildError()
	}

	dirs, err := locate(spec)
	if err != nil {
		return Outcome{}, issue.NewErrorContext().
			WithOperation("install "+spec.Name).
			WithResource(spec.TargetDir).
			WithSuggestions(spec.Remediation...).
			WithIssue(issue.ToolInstallFailedId).
			Wrap(err).
			BuildError()
	}

	for _, d := range dirs {
		if _, err := i.registry.AppendUnique(d); err != nil {
			return Outcome{}, fmt.Errorf("registering %s: %w", d, err)
		}
	}
	i.logger.Info("tool installed", "tool", spec.Name, "dir", spec.TargetDir)
	return Outcome{Tool: spec.Name, Status: StatusInstalled, BinDirs: dirs}, nil
}

// place extracts into a scratch directory next to the target and moves the
// payload into a freshly created target.
func (i *Installer) place(ctx context.Context, spec catalog.ToolSpec, archivePath string) error {
	parent := filepath.Dir(spec.TargetDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrExtraction, parent, err)
	}

	scratch, err := os.MkdirTemp(parent, ".sdrprov-extract-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	// Scratch is reclaimed on every path.
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := archive.Extract(ctx, archivePath, scratch); err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	payload := archive.PayloadRoot(scratch, entries)
	if payload != scratch {
		i.logger.Debug("unwrapping single top-level directory", "tool", spec.Name, "dir", filepath.Base(payload))
		if entries, err = os.ReadDir(payload); err != nil {
			return fmt.Errorf("%w: %w", ErrExtraction, err)
		}
	}

	if err := os.RemoveAll(spec.TargetDir); err != nil {
		return fmt.Errorf("%w: removing previous %s: %w", ErrExtraction, spec.TargetDir, err)
	}
	if err := os.MkdirAll(spec.TargetDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	for _, e := range entries {
		from := filepath.Join(payload, e.Name())
		to := filepath.Join(spec.TargetDir, e.Name())
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("%w: moving %s: %w", ErrExtraction, e.Name(), err)
		}
	}
	return nil
}

// resolvedDirs returns the directories the runner resolves spec's
// executables from.
func (i *Installer) resolvedDirs(spec catalog.ToolSpec) []string {
	var dirs []string
	for _, name := range spec.Executables {
		p, err := i.runner.LookPath(name)
		if err != nil {
			continue
		}
		if d := filepath.Dir(p); !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// locate finds every required executable under spec.TargetDir and returns
// the deduplicated set of directories containing them, in executable order.
func locate(spec catalog.ToolSpec) ([]string, error) {
	found := make(map[string]string, len(spec.Executables))
	err := filepath.WalkDir(spec.TargetDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, want := range spec.Executables {
			if _, ok := found[want]; ok || !sameName(d.Name(), want) {
				continue
			}
			if err := ensureExecutable(p, d); err != nil {
				return err
			}
			found[want] = filepath.Dir(p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", spec.TargetDir, err)
	}

	var dirs []string
	for _, want := range spec.Executables {
		dir, ok := found[want]
		if !ok {
			return nil, &BinaryNotFoundError{Tool: spec.Name, Executable: want, Dir: spec.TargetDir}
		}
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func sameName(got, want string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(got, want)
	}
	return got == want
}

// ensureExecutable sets the owner execute bit on Unix when an archive
// dropped it.
func ensureExecutable(p string, d fs.DirEntry) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	if info.Mode()&0o111 != 0 {
		return nil
	}
	return os.Chmod(p, info.Mode().Perm()|0o755)
}

func failed(spec catalog.ToolSpec, err error) Outcome {
	return Outcome{
		Tool:        spec.Name,
		Status:      StatusFailed,
		Err:         err,
		Remediation: spec.Remediation,
	}
}

// IsBinaryNotFound reports whether err stems from a missing executable.
func IsBinaryNotFound(err error) bool {
	var bnf *BinaryNotFoundError
	return errors.As(err, &bnf)
}
