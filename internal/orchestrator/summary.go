// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"sdrprov/internal/install"
	"sdrprov/internal/pkgmgr"
	"sdrprov/internal/pyenv"
)

type (
	// Warning is a failure that was tolerated.
	Warning struct {
		Phase   Phase
		Subject string
		Err     error
	}

	// PackageReport is the result of one logical package install.
	PackageReport struct {
		Name   string
		Result pkgmgr.Result
		Err    error
	}

	// EnvironmentReport is the result of the Python environment phase.
	EnvironmentReport struct {
		Ran    bool
		Report pyenv.Report
		Err    error
	}

	// Summary records everything a run did.
	Summary struct {
		RunID string
		// Phases lists the phases that completed, in order.
		Phases      []Phase
		Manager     string
		Packages    []PackageReport
		Tools       []install.Outcome
		Environment EnvironmentReport
		// PathAdded lists directories persisted to the search path.
		PathAdded []string
		Warnings  []Warning
	}
)

func (s *Summary) warn(phase Phase, subject string, err error) {
	s.Warnings = append(s.Warnings, Warning{Phase: phase, Subject: subject, Err: err})
}

// Tool returns the outcome recorded for name.
func (s *Summary) Tool(name string) (install.Outcome, bool) {
	for _, o := range s.Tools {
		if o.Tool == name {
			return o, true
		}
	}
	return install.Outcome{}, false
}

func (s *Summary) setTool(out install.Outcome) {
	for i, o := range s.Tools {
		if o.Tool == out.Tool {
			s.Tools[i] = out
			return
		}
	}
	s.Tools = append(s.Tools, out)
}

// FailedTools returns the outcomes of tools that are not usable.
func (s *Summary) FailedTools() []install.Outcome {
	var out []install.Outcome
	for _, o := range s.Tools {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Clean reports whether the run finished without warnings.
func (s *Summary) Clean() bool { return len(s.Warnings) == 0 }
