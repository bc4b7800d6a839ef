// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "sdrprov dev (built from source)") {
		t.Errorf("version output = %q", out)
	}
}

func TestMissingConfigFileExitsNonZero(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"--config", "/nonexistent/sdrprov.cue"},
		{"--config", "/nonexistent/sdrprov.cue", "check"},
	} {
		_, stderr, err := execute(t, args...)

		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 1 {
			t.Fatalf("%v: expected ExitError with code 1, got %v", args, err)
		}
		if !strings.Contains(stderr, "config file not found") {
			t.Errorf("%v: stderr should explain the failure:\n%s", args, stderr)
		}
	}
}

func TestRootRejectsArguments(t *testing.T) {
	t.Parallel()

	if _, _, err := execute(t, "extra"); err == nil {
		t.Error("expected an error for an unexpected argument")
	}
}

//nolint:paralleltest // mutates package version variables
func TestGetVersionString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.3"
	if got := getVersionString(); !strings.Contains(got, "v1.2.3 (commit:") {
		t.Errorf("getVersionString() = %q", got)
	}
}
