// SPDX-License-Identifier: MPL-2.0

package srcbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"

	"sdrprov/internal/catalog"
	"sdrprov/internal/fetch"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/install"
	"sdrprov/internal/issue"

	"github.com/charmbracelet/log"
)

// Build steps named in StepError.
const (
	StepClone     = "clone"
	StepCheckout  = "checkout"
	StepBootstrap = "bootstrap"
	StepConfigure = "configure"
	StepCompile   = "make"
	StepInstall   = "make install"
	StepVerify    = "verify"
)

type (
	// StepError reports which build step failed and the prerequisite most
	// likely to be missing.
	StepError struct {
		Target string
		Step   string
		Hint   string
		Err    error
	}

	// Builder builds BuildTargets from source.
	Builder struct {
		runner   hostexec.Runner
		cloner   Cloner
		registry install.Registrar
		jobs     int
		goos     string
		logger   *log.Logger
	}

	// Option configures a Builder during construction.
	Option func(*Builder)
)

// bootstrapScripts are tried in order when no configure script exists.
//
//nolint:gochecknoglobals // Fixed priority table.
var bootstrapScripts = []string{"autogen.sh", "bootstrap", "bootstrap.sh"}

// buildDescriptions mark a usable checkout.
//
//nolint:gochecknoglobals // Fixed table.
var buildDescriptions = []string{"configure.ac", "configure.in", "Makefile.am", "CMakeLists.txt"}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Target, e.Step)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Target, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// WithJobs sets the make parallelism. Defaults to the number of CPUs.
func WithJobs(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.jobs = n
		}
	}
}

// WithGOOS overrides the operating system used for host-specific steps.
func WithGOOS(goos string) Option {
	return func(b *Builder) {
		b.goos = goos
	}
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New creates a Builder.
func New(runner hostexec.Runner, cloner Cloner, registry install.Registrar, opts ...Option) *Builder {
	b := &Builder{
		runner:   runner,
		cloner:   cloner,
		registry: registry,
		jobs:     runtime.NumCPU(),
		goos:     runtime.GOOS,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build checks out, bootstraps, configures, compiles and installs target.
// It is skipped when every required executable already resolves.
func (b *Builder) Build(ctx context.Context, target catalog.BuildTarget) install.Outcome {
	if hostexec.HasAll(b.runner, target.Executables...) {
		b.logger.Info("tool already present", "tool", target.Name)
		return install.Outcome{Tool: target.Name, Status: install.StatusAlreadyPresent, BinDirs: b.binDirs(target)}
	}

	if err := b.build(ctx, target); err != nil {
		return install.Outcome{Tool: target.Name, Status: install.StatusFailed, Err: actionable(target, err)}
	}

	bin := filepath.Join(target.Prefix, "bin")
	if info, err := os.Stat(bin); err == nil && info.IsDir() {
		if _, err := b.registry.AppendUnique(bin); err != nil {
			b.logger.Warn("could not register install prefix", "dir", bin, "err", err)
		}
	}

	if missing := hostexec.Missing(b.runner, target.Executables...); len(missing) > 0 {
		err := &StepError{
			Target: target.Name,
			Step:   StepVerify,
			Hint:   "Check that " + bin + " is on your PATH",
			Err:    fmt.Errorf("executables not found after install: %v", missing),
		}
		return install.Outcome{Tool: target.Name, Status: install.StatusFailed, Err: actionable(target, err)}
	}

	b.logger.Info("tool built from source", "tool", target.Name, "prefix", target.Prefix)
	return install.Outcome{Tool: target.Name, Status: install.StatusInstalled, BinDirs: b.binDirs(target)}
}

func (b *Builder) build(ctx context.Context, target catalog.BuildTarget) error {
	dir, err := b.checkout(ctx, target)
	if err != nil {
		return err
	}
	if err := b.bootstrap(ctx, target, dir); err != nil {
		return err
	}

	steps := []struct {
		step string
		cmd  hostexec.Command
		hint string
	}{
		{
			StepConfigure,
			hostexec.Command{Name: "sh", Args: []string{"./configure", "--prefix=" + target.Prefix}, Dir: dir},
			"Install a C compiler, pkg-config and the libusb development headers",
		},
		{
			StepCompile,
			hostexec.Command{Name: "make", Args: []string{"-j" + strconv.Itoa(b.jobs)}, Dir: dir},
			"Install build-essential (gcc and make)",
		},
		{
			StepInstall,
			hostexec.Elevate(hostexec.Command{Name: "make", Args: []string{"install"}, Dir: dir}),
			"Re-run with administrative rights so files can be written to " + target.Prefix,
		},
	}
	for _, s := range steps {
		b.logger.Info("running build step", "tool", target.Name, "step", s.step)
		if _, err := b.runner.Run(ctx, s.cmd); err != nil {
			return &StepError{Target: target.Name, Step: s.step, Hint: s.hint, Err: err}
		}
	}

	if b.goos == "linux" {
		if _, err := b.runner.Run(ctx, hostexec.Elevate(hostexec.Command{Name: "ldconfig"})); err != nil {
			b.logger.Warn("ldconfig failed", "tool", target.Name, "err", err)
		}
	}
	return nil
}

// checkout returns a usable source directory for target.
func (b *Builder) checkout(ctx context.Context, target catalog.BuildTarget) (string, error) {
	dir := target.ClonePath
	primary := target.SourceURL()

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := b.cloneWithFallback(ctx, target, primary); err != nil {
			return "", err
		}
	} else {
		switch err := b.cloner.Update(ctx, dir); {
		case errors.Is(err, ErrNonFastForward):
			b.logger.Warn("source checkout has diverged; building it as is", "tool", target.Name, "dir", dir)
		case err != nil:
			b.logger.Warn("could not update source checkout", "tool", target.Name, "err", err)
		}
	}

	if hasBuildDescription(dir) {
		return dir, nil
	}

	retry := target.MirrorURL
	if retry == "" {
		retry = primary
	}
	b.logger.Warn("checkout has no build files; cloning again", "tool", target.Name, "url", retry)
	if err := os.RemoveAll(dir); err != nil {
		return "", &StepError{Target: target.Name, Step: StepCheckout, Err: err}
	}
	if err := b.cloner.Clone(ctx, retry, dir); err != nil {
		return "", &StepError{
			Target: target.Name,
			Step:   StepClone,
			Hint:   "Check network access to " + retry,
			Err:    &fetch.TransportError{URL: retry, Err: err},
		}
	}
	if !hasBuildDescription(dir) {
		return "", &StepError{
			Target: target.Name,
			Step:   StepCheckout,
			Hint:   "The repository at " + retry + " does not look like an autotools or CMake project",
			Err:    fmt.Errorf("none of %v found in %s", buildDescriptions, dir),
		}
	}
	return dir, nil
}

func (b *Builder) cloneWithFallback(ctx context.Context, target catalog.BuildTarget, primary string) error {
	b.logger.Info("cloning source", "tool", target.Name, "url", primary)
	primaryErr := b.cloner.Clone(ctx, primary, target.ClonePath)
	if primaryErr == nil {
		return nil
	}
	errs := []error{&fetch.TransportError{URL: primary, Err: primaryErr}}
	hint := "Check network access to " + primary

	if target.MirrorURL != "" && target.MirrorURL != primary {
		b.logger.Warn("primary clone failed; trying mirror", "tool", target.Name, "err", primaryErr, "mirror", target.MirrorURL)
		mirrorErr := b.cloner.Clone(ctx, target.MirrorURL, target.ClonePath)
		if mirrorErr == nil {
			return nil
		}
		errs = append(errs, &fetch.TransportError{URL: target.MirrorURL, Err: mirrorErr})
		hint += " or " + target.MirrorURL
	}
	if target.EnvOverride != "" {
		hint += "; set " + target.EnvOverride + " to a reachable repository"
	}
	return &StepError{Target: target.Name, Step: StepClone, Hint: hint, Err: errors.Join(errs...)}
}

// bootstrap generates the configure script when the checkout lacks one.
func (b *Builder) bootstrap(ctx context.Context, target catalog.BuildTarget, dir string) error {
	configure := filepath.Join(dir, "configure")
	if fileExists(configure) {
		return nil
	}

	hint := "Install autoconf, automake, libtool and pkg-config"
	c := hostexec.Command{Name: "autoreconf", Args: []string{"-fi"}, Dir: dir}
	for _, script := range bootstrapScripts {
		if fileExists(filepath.Join(dir, script)) {
			// NOCONFIGURE stops autogen.sh from running configure itself.
			c = hostexec.Command{Name: "sh", Args: []string{script}, Dir: dir, Env: []string{"NOCONFIGURE=1"}}
			break
		}
	}
	if c.Name == "autoreconf" && !hostexec.Has(b.runner, "autoreconf") {
		return &StepError{Target: target.Name, Step: StepBootstrap, Hint: hint, Err: errors.New("autoreconf not found")}
	}

	b.logger.Info("bootstrapping build system", "tool", target.Name, "command", c.String())
	if _, err := b.runner.Run(ctx, c); err != nil {
		return &StepError{Target: target.Name, Step: StepBootstrap, Hint: hint, Err: err}
	}
	if !fileExists(configure) {
		return &StepError{
			Target: target.Name,
			Step:   StepBootstrap,
			Hint:   hint,
			Err:    fmt.Errorf("%s did not produce a configure script", c.String()),
		}
	}
	return nil
}

func (b *Builder) binDirs(target catalog.BuildTarget) []string {
	var dirs []string
	for _, name := range target.Executables {
		if p, err := b.runner.LookPath(name); err == nil {
			if d := filepath.Dir(p); !slices.Contains(dirs, d) {
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

func actionable(target catalog.BuildTarget, err error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build " + target.Name + " from source").
		WithResource(target.ClonePath).
		WithIssue(issue.SourceBuildFailedId)
	var se *StepError
	if errors.As(err, &se) && se.Hint != "" {
		ctx = ctx.WithSuggestion(se.Hint)
	}
	return ctx.Wrap(err).BuildError()
}

func hasBuildDescription(dir string) bool {
	return slices.ContainsFunc(buildDescriptions, func(name string) bool {
		return fileExists(filepath.Join(dir, name))
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
