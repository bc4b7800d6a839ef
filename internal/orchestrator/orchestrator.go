// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"sdrprov/internal/catalog"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/install"
	"sdrprov/internal/issue"
	"sdrprov/internal/pkgmgr"
	"sdrprov/internal/pyenv"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"
)

// ErrInsufficientPrivilege aborts a run that can neither act as an
// administrator nor elevate through sudo.
var ErrInsufficientPrivilege = errors.New("insufficient privileges")

type (
	// PackageInstaller installs logical OS packages.
	PackageInstaller interface {
		Detect() (pkgmgr.Profile, error)
		Bootstrap(ctx context.Context) error
		Install(ctx context.Context, logical string) (pkgmgr.Result, error)
	}

	// ToolInstaller installs tools from prebuilt archives.
	ToolInstaller interface {
		Satisfied(spec catalog.ToolSpec) bool
		Provision(ctx context.Context, f install.Fetcher, spec catalog.ToolSpec) install.Outcome
	}

	// SourceBuilder builds tools from source.
	SourceBuilder interface {
		Build(ctx context.Context, target catalog.BuildTarget) install.Outcome
	}

	// EnvironmentManager prepares the Python environment.
	EnvironmentManager interface {
		Ensure(ctx context.Context) (pyenv.Report, error)
	}

	// SearchPath persists directories added during the run.
	SearchPath interface {
		Pending() []string
		Commit() error
	}

	// Deps are the components a run drives.
	Deps struct {
		Runner      hostexec.Runner
		Packages    PackageInstaller
		Fetcher     install.Fetcher
		Tools       ToolInstaller
		Builder     SourceBuilder
		Environment EnvironmentManager
		SearchPath  SearchPath
	}

	// Plan is what a run provisions.
	Plan struct {
		Layout   catalog.Layout
		Packages []string
		Tools    []catalog.ToolSpec
		Targets  []catalog.BuildTarget
	}

	// Orchestrator runs provisioning phases in a fixed order.
	Orchestrator struct {
		deps       Deps
		plan       Plan
		goos       string
		privileged func() bool
		runID      string
		logger     *log.Logger
	}

	// Option configures an Orchestrator during construction.
	Option func(*Orchestrator)
)

// DefaultPlan returns the catalog's plan for goos.
func DefaultPlan(goos string, layout catalog.Layout) Plan {
	return Plan{
		Layout:   layout,
		Packages: catalog.Packages(goos),
		Tools:    catalog.Tools(goos, layout),
		Targets:  catalog.BuildTargets(goos, layout),
	}
}

// WithGOOS overrides the operating system used for the privilege rules.
func WithGOOS(goos string) Option {
	return func(o *Orchestrator) {
		o.goos = goos
	}
}

// WithPrivilegeCheck overrides administrator detection.
func WithPrivilegeCheck(fn func() bool) Option {
	return func(o *Orchestrator) {
		o.privileged = fn
	}
}

// WithRunID sets the run identifier used in logs and the summary.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		o.runID = id
	}
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator. Each run gets a random ID unless WithRunID
// is given.
func New(deps Deps, plan Plan, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:       deps,
		plan:       plan,
		goos:       runtime.GOOS,
		privileged: hostexec.IsPrivileged,
		runID:      uuid.NewString(),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("run", o.runID)
	return o
}

// RunID returns the identifier of this orchestrator's run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes every phase once. The returned error is non-nil only when
// the run was aborted; tolerated failures are listed in Summary.Warnings.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	m, err := newMachine()
	if err != nil {
		return nil, fmt.Errorf("building phase machine: %w", err)
	}
	st := &runState{}
	interp := statekit.NewInterpreter(m)
	interp.UpdateContext(func(c **runState) {
		*c = st
	})
	interp.Start()
	defer interp.Stop()

	sum := &Summary{RunID: o.runID}
	abort := func(phase Phase, err error) (*Summary, error) {
		interp.Send(statekit.Event{Type: eventAbort, Payload: phase})
		sum.Phases = st.completed
		o.logger.Error("provisioning aborted", "phase", phase, "err", err)
		return sum, err
	}

	for !interp.Done() {
		phase := Phase(interp.State().Value)
		if err := ctx.Err(); err != nil {
			return abort(phase, err)
		}

		o.logger.Debug("entering phase", "phase", phase)
		if err := o.runPhase(ctx, phase, st, sum); err != nil {
			return abort(phase, err)
		}

		interp.Send(statekit.Event{Type: eventNext, Payload: phase})
		if Phase(interp.State().Value) == phase {
			return abort(phase, fmt.Errorf("phase %s did not complete", phase))
		}
	}

	sum.Phases = st.completed
	o.logSummary(sum)
	return sum, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, phase Phase, st *runState, sum *Summary) error {
	switch phase {
	case PhasePrivilege:
		if err := o.checkPrivilege(); err != nil {
			return err
		}
		st.privileged = true
	case PhaseDirectories:
		o.createDirectories(sum)
	case PhaseBootstrap:
		o.bootstrapPackageManager(ctx, sum)
	case PhasePackages:
		o.installPackages(ctx, sum)
	case PhaseArchives:
		o.installArchives(ctx, sum)
	case PhaseSources:
		o.buildSources(ctx, sum)
	case PhaseEnvironment:
		o.prepareEnvironment(ctx, sum)
	case PhaseCommit:
		o.commitSearchPath(sum)
	case PhaseSummary, PhaseAborted:
	}
	return nil
}

// checkPrivilege passes when running as an administrator, or on Unix when
// sudo is available for the steps that need it.
func (o *Orchestrator) checkPrivilege() error {
	if o.privileged() {
		return nil
	}
	if o.goos != "windows" && hostexec.Has(o.deps.Runner, "sudo") {
		o.logger.Info("not running as root; privileged steps will use sudo")
		return nil
	}

	suggestion := "Re-run as root or install sudo"
	if o.goos == "windows" {
		suggestion = "Re-run from a terminal opened with 'Run as administrator'"
	}
	return issue.NewErrorContext().
		WithOperation("start provisioning").
		WithSuggestion(suggestion).
		WithIssue(issue.PrivilegeRequiredId).
		Wrap(ErrInsufficientPrivilege).
		BuildError()
}

func (o *Orchestrator) createDirectories(sum *Summary) {
	for _, dir := range []string{o.plan.Layout.ToolsDir(), o.plan.Layout.BuildCacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			o.logger.Warn("could not create directory", "dir", dir, "err", err)
			sum.warn(PhaseDirectories, dir, err)
		}
	}
}

func (o *Orchestrator) bootstrapPackageManager(ctx context.Context, sum *Summary) {
	err := o.deps.Packages.Bootstrap(ctx)
	if errors.Is(err, pkgmgr.ErrNoPackageManager) {
		o.logger.Warn("no package manager detected; skipping OS packages")
		sum.warn(PhaseBootstrap, "package manager", issue.NewErrorContext().
			WithOperation("detect a package manager").
			WithIssue(issue.NoPackageManagerId).
			Wrap(err).
			BuildError())
		return
	}
	if err != nil {
		o.logger.Warn("package manager prerequisites failed", "err", err)
		sum.warn(PhaseBootstrap, "package manager prerequisites", err)
	}
	if p, err := o.deps.Packages.Detect(); err == nil {
		sum.Manager = p.ID
	}
}

func (o *Orchestrator) installPackages(ctx context.Context, sum *Summary) {
	if sum.Manager == "" {
		return
	}
	for _, name := range o.plan.Packages {
		res, err := o.deps.Packages.Install(ctx, name)
		sum.Packages = append(sum.Packages, PackageReport{Name: name, Result: res, Err: err})
		if err != nil {
			o.logger.Warn("package install failed", "package", name, "err", err)
			sum.warn(PhasePackages, name, err)
		}
	}
}

func (o *Orchestrator) installArchives(ctx context.Context, sum *Summary) {
	for _, spec := range o.plan.Tools {
		if !spec.HasArchives() {
			continue
		}
		out := o.deps.Tools.Provision(ctx, o.deps.Fetcher, spec)
		sum.setTool(out)
		if !out.OK() {
			o.logger.Warn("archive install failed", "tool", spec.Name, "err", out.Err)
			if spec.BuildTarget == "" {
				sum.warn(PhaseArchives, spec.Name, out.Err)
			}
		}
	}
}

// buildSources builds every tool that has no archive, or whose archive
// install failed, and that names a build target.
func (o *Orchestrator) buildSources(ctx context.Context, sum *Summary) {
	for _, spec := range o.plan.Tools {
		prior, attempted := sum.Tool(spec.Name)
		if attempted && prior.OK() {
			continue
		}
		if spec.BuildTarget == "" {
			continue
		}
		target, ok := catalog.FindBuildTarget(o.plan.Targets, spec.BuildTarget)
		if !ok {
			err := fmt.Errorf("no build target %q for %s", spec.BuildTarget, spec.Name)
			sum.setTool(install.Outcome{Tool: spec.Name, Status: install.StatusFailed, Err: err, Remediation: spec.Remediation})
			sum.warn(PhaseSources, spec.Name, err)
			continue
		}
		if attempted {
			o.logger.Info("falling back to a source build", "tool", spec.Name)
		}

		out := o.deps.Builder.Build(ctx, target)
		out.Tool = spec.Name
		if !out.OK() {
			out.Remediation = spec.Remediation
			o.logger.Warn("source build failed", "tool", spec.Name, "err", out.Err)
			sum.warn(PhaseSources, spec.Name, out.Err)
		}
		sum.setTool(out)
	}
}

func (o *Orchestrator) prepareEnvironment(ctx context.Context, sum *Summary) {
	rep, err := o.deps.Environment.Ensure(ctx)
	sum.Environment = EnvironmentReport{Ran: err == nil, Report: rep, Err: err}
	switch {
	case errors.Is(err, pyenv.ErrInterpreterNotFound):
		o.logger.Warn("no Python interpreter; skipping requirements", "err", err)
		sum.warn(PhaseEnvironment, "python", issue.NewErrorContext().
			WithOperation("find a Python interpreter").
			WithIssue(issue.InterpreterNotFoundId).
			Wrap(err).
			BuildError())
	case err != nil:
		o.logger.Warn("python environment setup failed", "err", err)
		sum.warn(PhaseEnvironment, "python", err)
	}
}

func (o *Orchestrator) commitSearchPath(sum *Summary) {
	pending := o.deps.SearchPath.Pending()
	if err := o.deps.SearchPath.Commit(); err != nil {
		o.logger.Warn("could not persist search path", "err", err)
		sum.warn(PhaseCommit, "PATH", issue.NewErrorContext().
			WithOperation("persist search path").
			WithSuggestions(pending...).
			WithIssue(issue.SearchPathPersistFailedId).
			Wrap(err).
			BuildError())
		return
	}
	sum.PathAdded = pending
}

func (o *Orchestrator) logSummary(sum *Summary) {
	for _, t := range sum.Tools {
		if t.OK() {
			o.logger.Info("tool ready", "tool", t.Tool, "status", t.Status, "dirs", t.BinDirs)
		} else {
			o.logger.Warn("tool unavailable", "tool", t.Tool, "err", t.Err)
		}
	}
	o.logger.Info("provisioning finished", "warnings", len(sum.Warnings))
}
