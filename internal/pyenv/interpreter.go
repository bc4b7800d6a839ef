// SPDX-License-Identifier: MPL-2.0

package pyenv

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sdrprov/internal/hostexec"

	"golang.org/x/mod/semver"
)

// MinimumVersion is the oldest interpreter accepted.
const MinimumVersion = "v3.8.0"

// ErrInterpreterNotFound is returned when no interpreter satisfying
// MinimumVersion resolves. Callers treat it as a soft failure.
var ErrInterpreterNotFound = errors.New("no suitable Python interpreter found")

//nolint:gochecknoglobals // Compiled once.
var versionPattern = regexp.MustCompile(`Python (\d+)\.(\d+)(?:\.(\d+))?`)

// Interpreter is a resolved Python executable.
type Interpreter struct {
	Path string
	// Args precede every invocation, e.g. "-3" for the Windows launcher.
	Args []string
	// Version is the canonical semver form, e.g. "v3.11.4".
	Version string
}

// Command builds an invocation of the interpreter with args.
func (i Interpreter) Command(args ...string) hostexec.Command {
	return hostexec.Command{Name: i.Path, Args: append(append([]string{}, i.Args...), args...)}
}

func (i Interpreter) String() string {
	return strings.TrimSpace(i.Path + " " + strings.Join(i.Args, " "))
}

type candidate struct {
	name string
	args []string
}

func candidates(goos string) []candidate {
	if goos == "windows" {
		return []candidate{{"py", []string{"-3"}}, {"python", nil}, {"python3", nil}}
	}
	return []candidate{{"python3", nil}, {"python", nil}}
}

// FindInterpreter returns the first candidate that resolves and reports a
// version at or above MinimumVersion.
func FindInterpreter(ctx context.Context, runner hostexec.Runner, goos string) (Interpreter, error) {
	var rejected []string
	for _, c := range candidates(goos) {
		path, err := runner.LookPath(c.name)
		if err != nil {
			continue
		}
		interp := Interpreter{Path: path, Args: c.args}
		res, err := runner.Run(ctx, interp.Command("--version"))
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("%s (%v)", path, err))
			continue
		}
		v, ok := parseVersion(res.Stdout + res.Stderr)
		if !ok {
			rejected = append(rejected, path+" (unrecognised version output)")
			continue
		}
		if semver.Compare(v, MinimumVersion) < 0 {
			rejected = append(rejected, fmt.Sprintf("%s (%s is older than %s)", path, v, MinimumVersion))
			continue
		}
		interp.Version = v
		return interp, nil
	}
	if len(rejected) > 0 {
		return Interpreter{}, fmt.Errorf("%w: rejected %s", ErrInterpreterNotFound, strings.Join(rejected, ", "))
	}
	return Interpreter{}, ErrInterpreterNotFound
}

// parseVersion extracts "vMAJOR.MINOR.PATCH" from interpreter output.
func parseVersion(out string) (string, bool) {
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], m[2], patch)
	return v, semver.IsValid(v)
}
