// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"sdrprov/internal/catalog"
	"sdrprov/internal/hostexec"
	"sdrprov/internal/testutil"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// containerRunner runs commands inside a container as root.
type containerRunner struct {
	c testcontainers.Container
}

func (r containerRunner) Run(ctx context.Context, c hostexec.Command) (hostexec.Result, error) {
	code, out, err := r.c.Exec(ctx, append([]string{c.Name}, c.Args...), tcexec.Multiplexed())
	if err != nil {
		return hostexec.Result{ExitCode: -1}, err
	}
	b, _ := io.ReadAll(out)
	res := hostexec.Result{Stdout: string(b), ExitCode: code}
	if code != 0 {
		return res, &hostexec.ExitError{Command: c.String(), Code: code, Stderr: string(b)}
	}
	return res, nil
}

func (r containerRunner) LookPath(name string) (string, error) {
	res, err := r.Run(context.Background(), hostexec.Command{Name: "which", Args: []string{name}})
	if err != nil {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// checkTestcontainersAvailable reports whether a container provider can be
// reached. Provider lookup may panic without a daemon.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer func() { _ = provider.Close() }()
	return true
}

//nolint:paralleltest // overrides process privilege detection
func TestInstaller_AlpineContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration test: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "alpine:3.20",
			Cmd:   []string{"sleep", "600"},
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping container integration test: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	// Container commands already run as root.
	defer hostexec.SetPrivilegedForTest(true)()

	inst := New(containerRunner{c: ctr}, WithGOOS("linux"))
	p, err := inst.Detect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "apk" {
		t.Fatalf("detected %s, want apk", p.ID)
	}

	for _, pkg := range []string{catalog.PkgPkgConfig, catalog.PkgPythonVenv} {
		res, err := inst.Install(ctx, pkg)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", pkg, err)
		}
		t.Logf("%s: %s", pkg, res)
	}

	res, err := inst.Install(ctx, catalog.PkgPkgConfig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != AlreadyInstalled {
		t.Errorf("second install got %s, want already installed", res)
	}
}
