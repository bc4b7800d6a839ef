// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"fmt"
)

const (
	// StatusAlreadyPresent means the tool was satisfied before this run
	// touched it.
	StatusAlreadyPresent Status = iota
	// StatusInstalled means the tool was installed during this run.
	StatusInstalled
	// StatusFailed means installation was attempted and did not succeed.
	StatusFailed
)

// ErrExtraction is returned when an archive cannot be unpacked into place.
var ErrExtraction = errors.New("archive extraction failed")

type (
	// Status is the result class of one tool installation.
	Status int

	// Outcome records what happened to one tool.
	Outcome struct {
		Tool   string
		Status Status
		// Err is set when Status is StatusFailed.
		Err error
		// Remediation repeats the tool's manual steps on failure.
		Remediation []string
		// BinDirs are the deduplicated directories holding the required
		// executables.
		BinDirs []string
	}

	// BinaryNotFoundError reports a required executable missing from an
	// installed payload.
	BinaryNotFoundError struct {
		Tool       string
		Executable string
		Dir        string
	}
)

// String returns a lowercase label for the status.
func (s Status) String() string {
	switch s {
	case StatusAlreadyPresent:
		return "already present"
	case StatusInstalled:
		return "installed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// OK reports whether the tool is usable after the run.
func (o Outcome) OK() bool { return o.Status != StatusFailed }

func (e *BinaryNotFoundError) Error() string {
	return fmt.Sprintf("%s: executable %q not found under %s", e.Tool, e.Executable, e.Dir)
}
