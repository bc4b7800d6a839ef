// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"

	"sdrprov/internal/hostexec"
	"sdrprov/internal/pyenv"
)

type (
	// ToolStatus reports whether one tool is already usable.
	ToolStatus struct {
		Name      string
		Satisfied bool
		// FromSource is set when the tool can only be built from source.
		FromSource bool
		// Missing lists executables that do not resolve.
		Missing []string
	}

	// CheckReport describes the host without changing it.
	CheckReport struct {
		Privileged     bool
		CanElevate     bool
		Manager        string
		ManagerErr     error
		Tools          []ToolStatus
		Interpreter    pyenv.Interpreter
		InterpreterErr error
	}
)

// Ready reports whether a run would have nothing left to install.
func (r CheckReport) Ready() bool {
	if r.InterpreterErr != nil {
		return false
	}
	for _, t := range r.Tools {
		if !t.Satisfied {
			return false
		}
	}
	return true
}

// Check inspects the host. It runs only read-only probes.
func (o *Orchestrator) Check(ctx context.Context) CheckReport {
	rep := CheckReport{
		Privileged: o.privileged(),
		CanElevate: o.goos != "windows" && hostexec.Has(o.deps.Runner, "sudo"),
	}

	if p, err := o.deps.Packages.Detect(); err != nil {
		rep.ManagerErr = err
	} else {
		rep.Manager = p.ID
	}

	for _, spec := range o.plan.Tools {
		ts := ToolStatus{Name: spec.Name, FromSource: !spec.HasArchives()}
		if spec.HasArchives() {
			ts.Satisfied = o.deps.Tools.Satisfied(spec)
			if !ts.Satisfied {
				ts.Missing = spec.Executables
			}
		} else {
			ts.Missing = hostexec.Missing(o.deps.Runner, spec.Executables...)
			ts.Satisfied = len(ts.Missing) == 0
		}
		rep.Tools = append(rep.Tools, ts)
	}

	rep.Interpreter, rep.InterpreterErr = pyenv.FindInterpreter(ctx, o.deps.Runner, o.goos)
	return rep
}
