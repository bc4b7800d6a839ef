// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"sdrprov/internal/hostexec"
)

type (
	// FakeRunner is a recording hostexec.Runner. Commands are matched
	// against registered handlers by command-line prefix; unmatched commands
	// succeed with empty output. Executables resolve from the Available set
	// or, when SearchDirs is set, from real files inside those directories.
	FakeRunner struct {
		mu         sync.Mutex
		calls      []hostexec.Command
		handlers   []fakeHandler
		available  map[string]string
		SearchDirs func() []string
	}

	// FakeHandler produces the outcome of a matched command.
	FakeHandler func(c hostexec.Command) (hostexec.Result, error)

	fakeHandler struct {
		prefix string
		fn     FakeHandler
	}
)

// NewFakeRunner creates a FakeRunner where names resolve to /fake/bin/<name>.
func NewFakeRunner(names ...string) *FakeRunner {
	f := &FakeRunner{available: make(map[string]string)}
	for _, n := range names {
		f.available[n] = "/fake/bin/" + n
	}
	return f
}

// Provide marks name as resolvable.
func (f *FakeRunner) Provide(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		f.available[n] = "/fake/bin/" + n
	}
}

// Remove marks name as unresolvable.
func (f *FakeRunner) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.available, name)
}

// On registers fn for commands whose rendered command line starts with
// prefix. Later registrations take precedence.
func (f *FakeRunner) On(prefix string, fn FakeHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{prefix: prefix, fn: fn})
}

// Fail makes every command starting with prefix exit with code 1.
func (f *FakeRunner) Fail(prefix string) {
	f.On(prefix, func(c hostexec.Command) (hostexec.Result, error) {
		return hostexec.Result{ExitCode: 1}, &hostexec.ExitError{Command: c.String(), Code: 1}
	})
}

// Run implements hostexec.Runner.
func (f *FakeRunner) Run(_ context.Context, c hostexec.Command) (hostexec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	line := c.String()
	var fn FakeHandler
	for i := len(f.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.handlers[i].prefix) {
			fn = f.handlers[i].fn
			break
		}
	}
	f.mu.Unlock()

	if fn == nil {
		return hostexec.Result{}, nil
	}
	return fn(c)
}

// LookPath implements hostexec.Runner.
func (f *FakeRunner) LookPath(name string) (string, error) {
	f.mu.Lock()
	p, ok := f.available[name]
	search := f.SearchDirs
	f.mu.Unlock()
	if ok {
		return p, nil
	}

	if search != nil {
		for _, dir := range search() {
			for _, candidate := range executableNames(name) {
				full := filepath.Join(dir, candidate)
				if info, err := os.Stat(full); err == nil && !info.IsDir() {
					return full, nil
				}
			}
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns every command run so far, in order.
func (f *FakeRunner) Calls() []hostexec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hostexec.Command{}, f.calls...)
}

// CommandLines returns Calls rendered as strings.
func (f *FakeRunner) CommandLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// CountPrefix returns how many recorded command lines start with prefix.
func (f *FakeRunner) CountPrefix(prefix string) int {
	n := 0
	for _, l := range f.CommandLines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func executableNames(name string) []string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return []string{name + ".exe", name}
	}
	return []string{name}
}
