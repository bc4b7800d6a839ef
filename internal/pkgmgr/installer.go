// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"sdrprov/internal/hostexec"
	"sdrprov/internal/issue"

	"github.com/charmbracelet/log"
)

const (
	// Installed means the manager installed the package during this run.
	Installed Result = iota
	// AlreadyInstalled means the manager reported the package present.
	AlreadyInstalled
	// Skipped means the detected manager has no mapping for the package.
	Skipped
)

// ErrNoPackageManager is returned when no known package manager resolves on
// the host. Callers treat it as a soft failure.
var ErrNoPackageManager = errors.New("no supported package manager found")

type (
	// Result classifies a single package install.
	Result int

	// Installer installs logical packages through the detected manager.
	// Detection and the index refresh happen at most once per Installer.
	Installer struct {
		runner   hostexec.Runner
		goos     string
		profiles []Profile
		logger   *log.Logger

		detected     bool
		profile      Profile
		detectErr    error
		refreshed    bool
		bootstrapped bool
	}

	// Option configures an Installer during construction.
	Option func(*Installer)
)

// String returns a lowercase label for the result.
func (r Result) String() string {
	switch r {
	case Installed:
		return "installed"
	case AlreadyInstalled:
		return "already installed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// WithGOOS overrides the operating system used to filter profiles.
func WithGOOS(goos string) Option {
	return func(i *Installer) {
		i.goos = goos
	}
}

// WithProfiles replaces the built-in profile table.
func WithProfiles(profiles ...Profile) Option {
	return func(i *Installer) {
		i.profiles = profiles
	}
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) {
		i.logger = l
	}
}

// New creates an Installer that runs commands through runner.
func New(runner hostexec.Runner, opts ...Option) *Installer {
	i := &Installer{
		runner:   runner,
		goos:     runtime.GOOS,
		profiles: Profiles(),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Detect returns the first profile for this OS whose executable resolves.
// The answer is cached for the lifetime of the Installer.
func (i *Installer) Detect() (Profile, error) {
	if i.detected {
		return i.profile, i.detectErr
	}
	i.detected = true

	for _, p := range i.profiles {
		if !p.supports(i.goos) {
			continue
		}
		if hostexec.Has(i.runner, p.ID) {
			i.profile = p
			i.logger.Info("detected package manager", "manager", p.ID)
			return p, nil
		}
	}
	i.detectErr = ErrNoPackageManager
	return Profile{}, i.detectErr
}

// Bootstrap runs the detected manager's prerequisites whose checks fail.
// It runs once; later calls return nil.
func (i *Installer) Bootstrap(ctx context.Context) error {
	p, err := i.Detect()
	if err != nil {
		return err
	}
	if i.bootstrapped {
		return nil
	}
	i.bootstrapped = true

	var errs []error
	for _, pre := range p.Prerequisites {
		check, err := p.command(pre.Check, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := i.runner.Run(ctx, check); err == nil {
			continue
		}
		i.logger.Info("installing package manager prerequisite", "manager", p.ID, "prerequisite", pre.Description)
		run, err := p.command(pre.Run, pre.Elevate)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := i.runner.Run(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pre.Description, err))
		}
	}
	return errors.Join(errs...)
}

// Install ensures the logical package is present. Unmapped packages are
// Skipped without error.
func (i *Installer) Install(ctx context.Context, logical string) (Result, error) {
	p, err := i.Detect()
	if err != nil {
		return Skipped, err
	}

	names, ok := p.Resolve(logical)
	if !ok {
		i.logger.Debug("package not available from manager", "package", logical, "manager", p.ID)
		return Skipped, nil
	}

	if i.present(ctx, p, names) {
		i.logger.Debug("package already installed", "package", logical)
		return AlreadyInstalled, nil
	}

	if err := i.refresh(ctx, p); err != nil {
		i.logger.Warn("package index refresh failed", "manager", p.ID, "err", err)
	}

	for _, batch := range p.batches(names) {
		c, err := p.command(p.Install, p.Elevate, batch...)
		if err != nil {
			return Skipped, err
		}
		i.logger.Info("installing package", "package", logical, "names", strings.Join(batch, " "))
		if _, err := i.runner.Run(ctx, c); err != nil {
			return Skipped, issue.NewErrorContext().
				WithOperation("install package "+logical).
				WithResource(p.ID).
				WithIssue(issue.PackageInstallFailedId).
				WithSuggestion(fmt.Sprintf("Install it manually: %s %s", p.Install, strings.Join(names, " "))).
				Wrap(err).
				BuildError()
		}
	}
	return Installed, nil
}

// refresh runs the index refresh at most once, whatever its result.
func (i *Installer) refresh(ctx context.Context, p Profile) error {
	if i.refreshed || p.Refresh == "" {
		return nil
	}
	i.refreshed = true

	c, err := p.command(p.Refresh, p.Elevate)
	if err != nil {
		return err
	}
	i.logger.Info("refreshing package index", "manager", p.ID)
	_, err = i.runner.Run(ctx, c)
	return err
}

func (i *Installer) present(ctx context.Context, p Profile, names PackageNames) bool {
	if p.Query == "" {
		return false
	}
	for _, batch := range p.batches(names) {
		c, err := p.command(p.Query, false, batch...)
		if err != nil {
			return false
		}
		if _, err := i.runner.Run(ctx, c); err != nil {
			return false
		}
	}
	return true
}
