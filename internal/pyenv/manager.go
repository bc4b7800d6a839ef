// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"sdrprov/internal/catalog"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/issue"
	"sdrprov/internal/pkgmgr"

	"github.com/charmbracelet/log"
)

const (
	// ModeActive installs into the environment named by VIRTUAL_ENV.
	ModeActive Mode = iota
	// ModeProject installs into the project-local environment.
	ModeProject
	// ModeUser installs into the interpreter's user site.
	ModeUser
)

var (
	// ErrManifestNotFound is returned when the requirements file is missing.
	ErrManifestNotFound = errors.New("requirements file not found")

	// ErrPipUnavailable is returned when pip cannot be made to work.
	ErrPipUnavailable = errors.New("pip is not available")
)

type (
	// Mode is where requirements are installed.
	Mode int

	// PackageInstaller installs logical OS packages.
	PackageInstaller interface {
		Install(ctx context.Context, logical string) (pkgmgr.Result, error)
	}

	// Report describes a completed environment setup.
	Report struct {
		Mode        Mode
		Interpreter Interpreter
		// Python is the interpreter used for pip.
		Python Interpreter
		// Dir is the environment directory; empty in ModeUser.
		Dir string
	}

	// Manager prepares the Python environment.
	Manager struct {
		runner       hostexec.Runner
		packages     PackageInstaller
		venvDir      string
		requirements string
		goos         string
		getenv       func(string) string
		logger       *log.Logger
	}

	// Option configures a Manager during construction.
	Option func(*Manager)
)

// String returns a lowercase label for the mode.
func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active environment"
	case ModeProject:
		return "project environment"
	case ModeUser:
		return "user site"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// WithVenvDir sets the project-local environment directory.
func WithVenvDir(dir string) Option {
	return func(m *Manager) {
		m.venvDir = dir
	}
}

// WithRequirements sets the requirements file passed to pip.
func WithRequirements(path string) Option {
	return func(m *Manager) {
		m.requirements = path
	}
}

// WithPackageInstaller sets the OS package installer used as the last pip
// fallback.
func WithPackageInstaller(p PackageInstaller) Option {
	return func(m *Manager) {
		m.packages = p
	}
}

// WithGOOS overrides the operating system used for environment layout.
func WithGOOS(goos string) Option {
	return func(m *Manager) {
		m.goos = goos
	}
}

// WithGetenv overrides environment lookup, primarily for tests.
func WithGetenv(fn func(string) string) Option {
	return func(m *Manager) {
		m.getenv = fn
	}
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a Manager.
func New(runner hostexec.Runner, opts ...Option) *Manager {
	m := &Manager{
		runner:       runner,
		venvDir:      ".venv",
		requirements: "requirements.txt",
		goos:         runtime.GOOS,
		getenv:       os.Getenv,
		logger:       log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ensure installs the requirements into the best available environment.
// ErrInterpreterNotFound means the phase was skipped.
func (m *Manager) Ensure(ctx context.Context) (Report, error) {
	interp, err := FindInterpreter(ctx, m.runner, m.goos)
	if err != nil {
		return Report{}, err
	}
	m.logger.Info("using Python interpreter", "path", interp.String(), "version", interp.Version)

	if _, err := os.Stat(m.requirements); err != nil {
		return Report{}, fmt.Errorf("%w: %s", ErrManifestNotFound, m.requirements)
	}

	rep := m.selectEnvironment(ctx, interp)
	m.logger.Info("selected Python environment", "mode", rep.Mode, "dir", rep.Dir)

	if err := m.ensurePip(ctx, rep.Python); err != nil {
		return rep, err
	}

	args := []string{"-m", "pip", "install"}
	if rep.Mode == ModeUser {
		args = append(args, "--user")
	}
	args = append(args, "-r", m.requirements)
	install := rep.Python.Command(args...)
	if _, err := m.runner.Run(ctx, install); err != nil {
		return rep, issue.NewErrorContext().
			WithOperation("install Python requirements").
			WithResource(m.requirements).
			WithIssue(issue.RequirementsInstallFailedId).
			WithSuggestion("Run '" + install.String() + "' manually to see the full pip output").
			Wrap(err).
			BuildError()
	}
	m.logger.Info("installed Python requirements", "file", m.requirements)
	return rep, nil
}

// selectEnvironment prefers an active environment, then the project one,
// then the user site.
func (m *Manager) selectEnvironment(ctx context.Context, interp Interpreter) Report {
	if active := m.getenv("VIRTUAL_ENV"); active != "" {
		py := Interpreter{Path: m.venvPython(active), Version: interp.Version}
		return Report{Mode: ModeActive, Interpreter: interp, Python: py, Dir: active}
	}

	dir, err := filepath.Abs(m.venvDir)
	if err == nil {
		err = m.ensureVenv(ctx, interp, dir)
	}
	if err != nil {
		m.logger.Warn("could not prepare project environment; using user site", "dir", m.venvDir, "err", err)
		return Report{Mode: ModeUser, Interpreter: interp, Python: interp}
	}
	py := Interpreter{Path: m.venvPython(dir), Version: interp.Version}
	return Report{Mode: ModeProject, Interpreter: interp, Python: py, Dir: dir}
}

// ensureVenv reuses a complete environment at dir, or recreates it.
func (m *Manager) ensureVenv(ctx context.Context, interp Interpreter, dir string) error {
	if m.venvComplete(dir) {
		m.logger.Debug("reusing project environment", "dir", dir)
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		m.logger.Warn("project environment is incomplete; recreating it", "dir", dir)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}

	if _, err := m.runner.Run(ctx, interp.Command("-m", "venv", dir)); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	if !m.venvComplete(dir) {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("%s is incomplete after creation", dir)
	}
	return nil
}

func (m *Manager) ensurePip(ctx context.Context, py Interpreter) error {
	check := py.Command("-m", "pip", "--version")
	if _, err := m.runner.Run(ctx, check); err == nil {
		return nil
	}

	m.logger.Info("bootstrapping pip with ensurepip", "python", py.String())
	if _, err := m.runner.Run(ctx, py.Command("-m", "ensurepip", "--upgrade")); err == nil {
		if _, err := m.runner.Run(ctx, check); err == nil {
			return nil
		}
	}

	if m.packages != nil {
		m.logger.Info("installing pip from the OS package manager")
		if _, err := m.packages.Install(ctx, catalog.PkgPythonPip); err != nil {
			m.logger.Warn("could not install pip package", "err", err)
		} else if _, err := m.runner.Run(ctx, check); err == nil {
			return nil
		}
	}

	return issue.NewErrorContext().
		WithOperation("prepare pip").
		WithResource(py.String()).
		WithIssue(issue.RequirementsInstallFailedId).
		WithSuggestions(
			"Install pip for your Python interpreter (e.g. 'apt install python3-pip')",
			"Or run '"+py.String()+" -m ensurepip --upgrade'",
		).
		Wrap(ErrPipUnavailable).
		BuildError()
}

func (m *Manager) venvComplete(dir string) bool {
	for _, p := range []string{m.venvPython(dir), m.venvActivate(dir)} {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

func (m *Manager) venvPython(dir string) string {
	if m.goos == "windows" {
		return filepath.Join(dir, "Scripts", "python.exe")
	}
	return filepath.Join(dir, "bin", "python")
}

func (m *Manager) venvActivate(dir string) string {
	if m.goos == "windows" {
		return filepath.Join(dir, "Scripts", "activate.bat")
	}
	return filepath.Join(dir, "bin", "activate")
}
